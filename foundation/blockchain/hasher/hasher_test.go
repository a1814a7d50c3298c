package hasher_test

import (
	"bytes"
	"testing"

	"github.com/ixledger/node/foundation/blockchain/hasher"
)

func TestSum(t *testing.T) {
	a := hasher.Sum([]byte("ledger"), []byte("state"))
	b := hasher.Sum([]byte("ledgerstate"))

	if len(a) != hasher.Size {
		t.Fatalf("expected %d bytes, got %d", hasher.Size, len(a))
	}

	if !bytes.Equal(a, b) {
		t.Fatal("expected parts to hash as their concatenation")
	}

	if bytes.Equal(a, hasher.SumLegacy([]byte("ledgerstate"))) {
		t.Fatal("expected legacy hash to differ from the squared hash")
	}
}

func TestNew(t *testing.T) {
	h := hasher.New()
	h.Write([]byte("ledger"))
	h.Write([]byte("state"))

	if !bytes.Equal(h.Sum(nil), hasher.Sum([]byte("ledgerstate"))) {
		t.Fatal("expected hash.Hash output to match Sum")
	}

	h.Reset()
	if !bytes.Equal(h.Sum(nil), hasher.Sum()) {
		t.Fatal("expected reset hash to match the empty Sum")
	}
}
