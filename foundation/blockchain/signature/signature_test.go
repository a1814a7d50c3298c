package signature_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ixledger/node/foundation/blockchain/signature"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	from     = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"
)

// =============================================================================

func Test_Signing(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	t.Log("Given the need to sign and recover a value.")
	{
		pk, err := crypto.HexToECDSA(pkHexKey)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the private key: %s", failed, err)
		}

		sig, err := signature.Sign(value, pk)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign data: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to sign data.", success)

		if err := signature.Verify(sig); err != nil {
			t.Fatalf("\t%s\tShould be able to verify the signature: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to verify the signature.", success)

		addr, err := signature.Address(value, sig)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to recover the address: %s", failed, err)
		}

		if addr != from {
			t.Logf("\t\tgot: %s", addr)
			t.Logf("\t\texp: %s", from)
			t.Fatalf("\t%s\tShould get back the right address.", failed)
		}
		t.Logf("\t%s\tShould get back the right address.", success)

		key, err := signature.PublicKey(value, sig)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to recover the public key: %s", failed, err)
		}

		if exp := crypto.FromECDSAPub(&pk.PublicKey); string(key) != string(exp) {
			t.Fatalf("\t%s\tShould recover the signing public key.", failed)
		}
		t.Logf("\t%s\tShould recover the signing public key.", success)
	}
}

func Test_Tampering(t *testing.T) {
	value1 := struct{ Name string }{Name: "Bill"}
	value2 := struct{ Name string }{Name: "Jill"}

	t.Log("Given the need to detect a signature used for other data.")
	{
		pk, err := crypto.HexToECDSA(pkHexKey)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the private key: %s", failed, err)
		}

		sig, err := signature.Sign(value1, pk)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign data: %s", failed, err)
		}

		addr, err := signature.Address(value2, sig)
		if err == nil && addr == from {
			t.Fatalf("\t%s\tShould not recover the signer for different data.", failed)
		}
		t.Logf("\t%s\tShould not recover the signer for different data.", success)

		bad := append([]byte(nil), sig...)
		bad[crypto.RecoveryIDOffset] = 0
		if err := signature.Verify(bad); err == nil {
			t.Fatalf("\t%s\tShould reject an Ethereum recovery id.", failed)
		}
		t.Logf("\t%s\tShould reject an Ethereum recovery id.", success)

		if err := signature.Verify(sig[:10]); err == nil {
			t.Fatalf("\t%s\tShould reject a short signature.", failed)
		}
		t.Logf("\t%s\tShould reject a short signature.", success)
	}
}
