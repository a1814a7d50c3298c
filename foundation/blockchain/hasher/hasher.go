// Package hasher provides the hash primitive used for every consensus
// checksum the ledger produces. Every node in the network must produce the
// same bytes for the same input, so nothing in here may change without a new
// block version.
package hasher

import (
	"bytes"
	"hash"

	"golang.org/x/crypto/sha3"
)

// Size is the number of bytes in a checksum.
const Size = 32

// blockSize is the rate of SHA3-512 in bytes.
const blockSize = 72

// Sum hashes the concatenation of the parts with SHA3-512, hashes that
// digest a second time and truncates the result to Size bytes.
func Sum(parts ...[]byte) []byte {
	h := sha3.New512()
	for _, p := range parts {
		h.Write(p)
	}

	second := sha3.Sum512(h.Sum(nil))
	return second[:Size]
}

// SumLegacy hashes the concatenation of the parts with a single round of
// SHA3-512 truncated to Size bytes. It is only used to verify account
// checksums of blocks produced before the v2 account encoding.
func SumLegacy(parts ...[]byte) []byte {
	h := sha3.New512()
	for _, p := range parts {
		h.Write(p)
	}

	return h.Sum(nil)[:Size]
}

// =============================================================================

// digest buffers everything written to it and produces Sum over the buffer.
type digest struct {
	buf bytes.Buffer
}

// New returns a hash.Hash that produces the same output as Sum. It is used
// as the hash strategy for merkle trees.
func New() hash.Hash {
	return &digest{}
}

// Write adds more data to the running hash. It never returns an error.
func (d *digest) Write(p []byte) (int, error) {
	return d.buf.Write(p)
}

// Sum appends the current hash to b and returns the resulting slice.
func (d *digest) Sum(b []byte) []byte {
	return append(b, Sum(d.buf.Bytes())...)
}

// Reset resets the hash to its initial state.
func (d *digest) Reset() {
	d.buf.Reset()
}

// Size returns the number of bytes Sum will return.
func (d *digest) Size() int {
	return Size
}

// BlockSize returns the hash's underlying block size.
func (d *digest) BlockSize() int {
	return blockSize
}
