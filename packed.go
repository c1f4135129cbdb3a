// Copyright (c) Facebook, Inc. and its affiliates. All Rights Reserved

package bitpack

import (
	"math/bits"

	"github.com/pkg/errors"
)

const (
	// BlockSize is the number of values packed together into one chunk
	BlockSize = 1024
	// WordBits is the width of the storage words a chunk is made of
	WordBits = 32
	// MaxWidth is the widest supported value width
	MaxWidth = WordBits
)

var (
	// ErrValueOutOfRange is returned when a value does not fit in the
	// requested bit width
	ErrValueOutOfRange = errors.New("value out of range")
	// ErrIndexOutOfRange is returned when an offset or index is past the
	// end of a chunk or buffer
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrInvalidWidth is returned for bit widths outside [1, MaxWidth]
	ErrInvalidWidth = errors.New("invalid bit width")
	// ErrBlockLength is returned when a block does not hold exactly
	// BlockSize values
	ErrBlockLength = errors.New("invalid block length")
	// ErrChunkLength is returned when a packed chunk is not exactly
	// ChunkWords(width) words long
	ErrChunkLength = errors.New("invalid chunk length")
)

// ChunkWords reports the number of words a block packed at width
// occupies.  BlockSize is a multiple of WordBits, so this is exact for
// every width.
func ChunkWords(width uint) int {
	return BlockSize * int(width) / WordBits
}

// MaxBits reports the number of bits needed by the largest value in
// block, zero if every value is zero.
func MaxBits(block []uint32) uint {
	var acc uint32
	for _, v := range block {
		acc |= v
	}
	return uint(bits.Len32(acc))
}

func checkWidth(width uint) error {
	if width == 0 || width > MaxWidth {
		return errors.Wrapf(ErrInvalidWidth, "width %d not in [1, %d]", width, MaxWidth)
	}
	return nil
}

func widthMask(width uint) uint32 {
	// a shift by 32 yields zero, so width 32 gives all ones
	return (uint32(1) << width) - 1
}

// Pack packs a block of exactly BlockSize values into a freshly
// allocated chunk of ChunkWords(width) words.  Every value must fit in
// width bits; nothing is truncated.
//
//	bit k*width                          bit (k+1)*width
//	     V                                      V
//	... | low bits of k, word i | high bits of k, word i+1 | ...
//
// Bits are assigned least significant first within a word, so an
// element straddling a word boundary keeps its low bits at the top of
// the earlier word and its remaining high bits at the bottom of the
// next one.
func Pack(block []uint32, width uint) ([]uint32, error) {
	if err := checkWidth(width); err != nil {
		return nil, err
	}
	if len(block) != BlockSize {
		return nil, errors.Wrapf(ErrBlockLength, "block holds %d values, expected %d", len(block), BlockSize)
	}
	forbidden := ^widthMask(width)
	for k, v := range block {
		if v&forbidden != 0 {
			return nil, errors.Wrapf(ErrValueOutOfRange, "value %d at offset %d needs %d bits, width is %d",
				v, k, bits.Len32(v), width)
		}
	}
	chunk := make([]uint32, ChunkWords(width))
	PackUnchecked(block, width, chunk)
	return chunk, nil
}

// PackUnchecked is the fast path of Pack.  The caller guarantees that
// width is in [1, MaxWidth], that block holds BlockSize values that fit
// in width bits, and that dst is zeroed and ChunkWords(width) long.
// Bits above width are discarded.
func PackUnchecked(block []uint32, width uint, dst []uint32) {
	mask := widthMask(width)
	bitPos := uint(0)
	for _, v := range block {
		v &= mask
		word := bitPos / WordBits
		shift := bitPos % WordBits
		dst[word] |= v << shift
		if shift+width > WordBits {
			dst[word+1] |= v >> (WordBits - shift)
		}
		bitPos += width
	}
}

// UnpackSingle decodes the value at offset from a chunk packed at
// width, touching at most two words of the chunk.
func UnpackSingle(chunk []uint32, width uint, offset uint) (uint32, error) {
	if err := checkWidth(width); err != nil {
		return 0, err
	}
	if offset >= BlockSize {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "offset %d, block size is %d", offset, BlockSize)
	}
	if len(chunk) != ChunkWords(width) {
		return 0, errors.Wrapf(ErrChunkLength, "chunk holds %d words, width %d needs %d",
			len(chunk), width, ChunkWords(width))
	}
	return UnpackSingleUnchecked(chunk, width, offset), nil
}

// UnpackSingleUnchecked is the fast path of UnpackSingle.  The caller
// guarantees that width is in [1, MaxWidth], offset < BlockSize and
// chunk was produced by Pack at the same width.
func UnpackSingleUnchecked(chunk []uint32, width uint, offset uint) uint32 {
	bitPos := offset * width
	word := bitPos / WordBits
	shift := bitPos % WordBits
	var hi uint32
	if shift+width > WordBits {
		hi = chunk[word+1]
	}
	return extract(chunk[word], hi, shift, width)
}

// extract pulls width bits starting at bit shift of lo, continuing into
// hi when the value straddles the word boundary.
func extract(lo, hi uint32, shift, width uint) uint32 {
	v := lo >> shift
	if shift+width > WordBits {
		v |= hi << (WordBits - shift)
	}
	return v & widthMask(width)
}

// Unpack decodes a whole chunk into dst, which must hold at least
// BlockSize values.
func Unpack(chunk []uint32, width uint, dst []uint32) error {
	if err := checkWidth(width); err != nil {
		return err
	}
	if len(chunk) != ChunkWords(width) {
		return errors.Wrapf(ErrChunkLength, "chunk holds %d words, width %d needs %d",
			len(chunk), width, ChunkWords(width))
	}
	if len(dst) < BlockSize {
		return errors.Wrapf(ErrBlockLength, "destination holds %d values, expected %d", len(dst), BlockSize)
	}
	for k := uint(0); k < BlockSize; k++ {
		dst[k] = UnpackSingleUnchecked(chunk, width, k)
	}
	return nil
}
