package journal

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrCorrupt is returned when a serialized journal can't be decoded. The
// stream is desynchronized and nothing after the failure can be trusted.
var ErrCorrupt = errors.New("journal: corrupt data")

// maxFieldLength bounds a single length-prefixed field so a corrupt length
// can't make the reader allocate an unbounded slice.
const maxFieldLength = 16 << 20

// =============================================================================

// Writer builds the binary form of journal transactions. Discriminants are
// one byte, integers are 8 byte big endian and byte fields are prefixed
// with their uvarint length.
type Writer struct {
	buf []byte
}

// NewWriter constructs an empty writer.
func NewWriter() *Writer {
	return &Writer{}
}

// PutByte appends a single byte.
func (w *Writer) PutByte(b byte) {
	w.buf = append(w.buf, b)
}

// PutBool appends a boolean as a single byte.
func (w *Writer) PutBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

// PutUint64 appends v as 8 big endian bytes.
func (w *Writer) PutUint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

// PutUvarint appends v as an unsigned varint.
func (w *Writer) PutUvarint(v uint64) {
	w.buf = binary.AppendUvarint(w.buf, v)
}

// PutBytes appends b prefixed by its length. A nil slice and an empty
// slice encode the same way.
func (w *Writer) PutBytes(b []byte) {
	w.buf = binary.AppendUvarint(w.buf, uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// PutString appends s prefixed by its length.
func (w *Writer) PutString(s string) {
	w.PutBytes([]byte(s))
}

// Bytes returns the encoded data.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// =============================================================================

// Reader consumes data produced by a Writer.
type Reader struct {
	data []byte
	off  int
}

// NewReader constructs a reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.off
}

// Byte reads a single byte.
func (r *Reader) Byte() (byte, error) {
	if r.Len() < 1 {
		return 0, errors.Wrapf(ErrCorrupt, "read byte at offset %d", r.off)
	}

	b := r.data[r.off]
	r.off++
	return b, nil
}

// Bool reads a boolean written by PutBool.
func (r *Reader) Bool() (bool, error) {
	b, err := r.Byte()
	if err != nil {
		return false, err
	}

	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}

	return false, errors.Wrapf(ErrCorrupt, "invalid bool %d at offset %d", b, r.off-1)
}

// Uint64 reads 8 big endian bytes.
func (r *Reader) Uint64() (uint64, error) {
	if r.Len() < 8 {
		return 0, errors.Wrapf(ErrCorrupt, "read uint64 at offset %d", r.off)
	}

	v := binary.BigEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v, nil
}

// Uvarint reads an unsigned varint.
func (r *Reader) Uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.off:])
	if n <= 0 {
		return 0, errors.Wrapf(ErrCorrupt, "read uvarint at offset %d", r.off)
	}

	r.off += n
	return v, nil
}

// Bytes reads a length-prefixed field. An empty field is returned as nil
// and the returned slice never aliases the reader's data.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}

	if n > maxFieldLength || n > uint64(r.Len()) {
		return nil, errors.Wrapf(ErrCorrupt, "field length %d at offset %d", n, r.off)
	}

	if n == 0 {
		return nil, nil
	}

	b := make([]byte, n)
	copy(b, r.data[r.off:])
	r.off += int(n)
	return b, nil
}

// Text reads a length-prefixed string.
func (r *Reader) Text() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Fixed reads a length-prefixed field that must be exactly n bytes long.
func (r *Reader) Fixed(n int) ([]byte, error) {
	b, err := r.Bytes()
	if err != nil {
		return nil, err
	}

	if len(b) != n {
		return nil, errors.Wrapf(ErrCorrupt, "field length %d, exp %d", len(b), n)
	}

	return b, nil
}
