package bitpack

import (
	"io"

	"github.com/pkg/errors"
)

// Unpacked stores values as plain uint32s, with no compression at all
type Unpacked []uint32

var _ Vector = (Unpacked)(nil)

// UnpackedVectorBuild copies values into an Unpacked vector
func UnpackedVectorBuild(values []uint32) (Vector, error) {
	return append(Unpacked(nil), values...), nil
}

func (v Unpacked) Len() uint64 {
	return uint64(len(v))
}

func (v Unpacked) Get(ix uint64) (uint32, error) {
	if ix >= uint64(len(v)) {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "index %d, length is %d", ix, len(v))
	}
	return v[ix], nil
}

func (v Unpacked) Bytes() uint64 {
	return uint64(len(v)) * 4
}

func (v Unpacked) WriteTo(w io.Writer) (int64, error) {
	return writeWords(w, v)
}

// ReadUnpacked reads a vector written by Unpacked.WriteTo
func ReadUnpacked(r io.Reader) (Unpacked, int64, error) {
	v, n, err := readWords(r)
	return Unpacked(v), n, err
}
