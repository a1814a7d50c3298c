package merkle_test

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/ixledger/node/foundation/blockchain/hasher"
	"github.com/ixledger/node/foundation/blockchain/merkle"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// data is a leaf value hashed with the ledger hasher.
type data struct {
	x string
}

func (d data) Hash() ([]byte, error) {
	return hasher.Sum([]byte(d.x)), nil
}

func (d data) Equals(other data) bool {
	return d.x == other.x
}

func values(xs ...string) []data {
	vs := make([]data, len(xs))
	for i, x := range xs {
		vs[i] = data{x: x}
	}
	return vs
}

// =============================================================================

func Test_Root(t *testing.T) {
	t.Log("Given the need to compute a merkle root.")
	{
		vs := values("a", "b", "c")

		tree, err := merkle.NewTree(vs)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to build the tree.", success)

		// An odd leaf is paired with itself.
		ab := hasher.Sum(hasher.Sum([]byte("a")), hasher.Sum([]byte("b")))
		cc := hasher.Sum(hasher.Sum([]byte("c")), hasher.Sum([]byte("c")))
		exp := hasher.Sum(ab, cc)

		if !bytes.Equal(tree.MerkleRoot, exp) {
			t.Logf("\t\tgot: %x", tree.MerkleRoot)
			t.Logf("\t\texp: %x", exp)
			t.Fatalf("\t%s\tShould hash nodes with the ledger hasher.", failed)
		}
		t.Logf("\t%s\tShould hash nodes with the ledger hasher.", success)

		if got := tree.Values(); len(got) != len(vs) {
			t.Fatalf("\t%s\tShould return the values without the duplicate: got %d.", failed, len(got))
		}
		t.Logf("\t%s\tShould return the values without the duplicate.", success)

		other, err := merkle.NewTree(vs, merkle.WithHashStrategy[data](sha256.New))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the tree with a strategy: %v", failed, err)
		}

		if bytes.Equal(other.MerkleRoot, tree.MerkleRoot) {
			t.Fatalf("\t%s\tShould produce a different root with another strategy.", failed)
		}
		t.Logf("\t%s\tShould produce a different root with another strategy.", success)

		if _, err := merkle.NewTree([]data{}); err == nil {
			t.Fatalf("\t%s\tShould refuse to build an empty tree.", failed)
		}
		t.Logf("\t%s\tShould refuse to build an empty tree.", success)
	}
}

func Test_Verify(t *testing.T) {
	t.Log("Given the need to verify the tree and its data.")
	{
		tree, err := merkle.NewTree(values("a", "b", "c", "d", "e"))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
		}

		if err := tree.Verify(); err != nil {
			t.Fatalf("\t%s\tShould verify the tree: %v", failed, err)
		}
		t.Logf("\t%s\tShould verify the tree.", success)

		if err := tree.VerifyData(data{x: "d"}); err != nil {
			t.Fatalf("\t%s\tShould verify data in the tree: %v", failed, err)
		}
		t.Logf("\t%s\tShould verify data in the tree.", success)

		if err := tree.VerifyData(data{x: "z"}); err == nil {
			t.Fatalf("\t%s\tShould not verify data missing from the tree.", failed)
		}
		t.Logf("\t%s\tShould not verify data missing from the tree.", success)

		tree.Root.Hash = []byte("tampered")
		tree.MerkleRoot = tree.Root.Hash
		if err := tree.Verify(); err == nil {
			t.Fatalf("\t%s\tShould detect a tampered root.", failed)
		}
		t.Logf("\t%s\tShould detect a tampered root.", success)
	}
}

func Test_Proof(t *testing.T) {
	t.Log("Given the need to prove a value is in the tree.")
	{
		tree, err := merkle.NewTree(values("a", "b", "c", "d", "e", "f"))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
		}

		for _, v := range values("a", "d", "f") {
			proof, order, err := tree.Proof(v)
			if err != nil {
				t.Fatalf("\t%s\tShould get a proof for %q: %v", failed, v.x, err)
			}

			acc, _ := v.Hash()
			for i, p := range proof {
				switch order[i] {
				case 0:
					acc = hasher.Sum(p, acc)
				default:
					acc = hasher.Sum(acc, p)
				}
			}

			if !bytes.Equal(acc, tree.MerkleRoot) {
				t.Fatalf("\t%s\tShould fold the proof for %q into the root.", failed, v.x)
			}
			t.Logf("\t%s\tShould fold the proof for %q into the root.", success, v.x)
		}

		if _, _, err := tree.Proof(data{x: "z"}); err == nil {
			t.Fatalf("\t%s\tShould not prove a missing value.", failed)
		}
		t.Logf("\t%s\tShould not prove a missing value.", success)
	}
}

func Test_Rebuild(t *testing.T) {
	t.Log("Given the need to rebuild a tree from its leaves.")
	{
		tree, err := merkle.NewTree(values("a", "b", "c"))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
		}

		root := tree.RootHex()
		if err := tree.Rebuild(); err != nil {
			t.Fatalf("\t%s\tShould be able to rebuild the tree: %v", failed, err)
		}

		if tree.RootHex() != root {
			t.Fatalf("\t%s\tShould produce the same root after a rebuild.", failed)
		}
		t.Logf("\t%s\tShould produce the same root after a rebuild.", success)
	}
}
