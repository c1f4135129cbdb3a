// Copyright (c) Facebook, Inc. and its affiliates. All Rights Reserved

package bitpack

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"
	"github.com/bits-and-blooms/bloom/v3"
	"github.com/pkg/errors"
)

// Buffer is a packed array of uint32 values supporting random access.
// Values are packed in chunks of BlockSize, each chunk carrying its own
// bit width, so the width used to decode a chunk is always the width it
// was packed at.  A Buffer is immutable once built and safe for
// concurrent use.
type Buffer struct {
	length  uint64
	widths  []uint8
	offsets []uint64 // word offset of each chunk, plus the total
	words   []uint32
	filters []*bloom.BloomFilter
}

var _ Vector = (*Buffer)(nil)

// NewBuffer packs values according to cfg.  The last chunk is zero
// padded to BlockSize; the padding is never visible through the Buffer.
func NewBuffer(values []uint32, cfg Config) (*Buffer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	chunks := (len(values) + BlockSize - 1) / BlockSize
	b := &Buffer{
		length:  uint64(len(values)),
		widths:  make([]uint8, chunks),
		offsets: make([]uint64, chunks+1),
	}
	if cfg.Width != 0 {
		b.words = make([]uint32, 0, chunks*ChunkWords(cfg.Width))
	}
	if cfg.FalsePositiveRate > 0 {
		b.filters = make([]*bloom.BloomFilter, chunks)
	}

	var padded [BlockSize]uint32
	for c := 0; c < chunks; c++ {
		block := values[c*BlockSize : min(len(values), (c+1)*BlockSize)]
		if len(block) < BlockSize {
			n := copy(padded[:], block)
			clear(padded[n:])
			block = padded[:]
		}
		width := cfg.Width
		if width == 0 {
			width = DetermineWidth(block)
		}
		chunk, err := Pack(block, width)
		if err != nil {
			return nil, errors.Wrapf(err, "packing chunk %d", c)
		}
		b.widths[c] = uint8(width)
		b.words = append(b.words, chunk...)
		b.offsets[c+1] = uint64(len(b.words))
		if b.filters != nil {
			b.filters[c] = newChunkFilter(values[c*BlockSize:min(len(values), (c+1)*BlockSize)], cfg.FalsePositiveRate)
		}
	}
	return b, nil
}

// Len reports the number of values in the buffer
func (b *Buffer) Len() uint64 {
	return b.length
}

// Chunks reports the number of packed chunks
func (b *Buffer) Chunks() int {
	return len(b.widths)
}

// Width reports the bit width chunk c was packed at
func (b *Buffer) Width(c int) uint {
	return uint(b.widths[c])
}

// Uniform reports the width shared by every chunk, if there is one
func (b *Buffer) Uniform() (uint, bool) {
	if len(b.widths) == 0 {
		return 0, false
	}
	for _, w := range b.widths[1:] {
		if w != b.widths[0] {
			return 0, false
		}
	}
	return uint(b.widths[0]), true
}

// Words exposes the concatenated chunks.  It must not be modified.
func (b *Buffer) Words() []uint32 {
	return b.words
}

// Bytes reports the resident size of the packed words
func (b *Buffer) Bytes() uint64 {
	return uint64(len(b.words)) * (WordBits / 8)
}

// Chunk returns a read-only view of chunk id
func (b *Buffer) Chunk(id uint64) ([]uint32, error) {
	if id >= uint64(len(b.widths)) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "chunk %d, buffer holds %d chunks", id, len(b.widths))
	}
	return b.chunk(id), nil
}

func (b *Buffer) chunk(id uint64) []uint32 {
	start, end := b.offsets[id], b.offsets[id+1]
	return b.words[start:end:end]
}

// Get decodes the value at ix without decoding any of its neighbours
func (b *Buffer) Get(ix uint64) (uint32, error) {
	id, offset, err := Locate(ix, b.length)
	if err != nil {
		return 0, err
	}
	return UnpackSingleUnchecked(b.chunk(id), uint(b.widths[id]), offset), nil
}

// Find reports the index of every value equal to v.  Chunks whose width
// cannot hold v, or whose filter rules v out, are not decoded.
func (b *Buffer) Find(v uint32) (*bitset.BitSet, error) {
	found := bitset.New(uint(b.length))
	var scratch [BlockSize]uint32
	for c := range b.widths {
		width := uint(b.widths[c])
		if v&^widthMask(width) != 0 {
			continue
		}
		if b.filters != nil && !b.filters[c].Test(filterKey(v)) {
			continue
		}
		if err := Unpack(b.chunk(uint64(c)), width, scratch[:]); err != nil {
			return nil, errors.Wrapf(err, "decoding chunk %d", c)
		}
		base := uint64(c) * BlockSize
		for k, x := range scratch {
			ix := base + uint64(k)
			if ix >= b.length {
				break
			}
			if x == v {
				found.Set(uint(ix))
			}
		}
	}
	return found, nil
}

// HasFilters reports whether the buffer carries per chunk bloom filters
func (b *Buffer) HasFilters() bool {
	return b.filters != nil
}

func newChunkFilter(values []uint32, fp float64) *bloom.BloomFilter {
	f := bloom.NewWithEstimates(uint(len(values)), fp)
	for _, v := range values {
		f.Add(filterKey(v))
	}
	return f
}

func filterKey(v uint32) []byte {
	var key [4]byte
	binary.LittleEndian.PutUint32(key[:], v)
	return key[:]
}
