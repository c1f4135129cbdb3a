package bitpack

import "io"

// VectorBuildFn builds a Vector holding values
type VectorBuildFn func(values []uint32) (Vector, error)

// Vector is an in memory Reader
type Vector interface {
	Reader
	// Bytes reports the resident size of the encoded values
	Bytes() uint64

	// vectors can be serialized
	io.WriterTo
}
