// Copyright (c) Facebook, Inc. and its affiliates. All Rights Reserved

package bitpack

import (
	"fmt"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBlock(r *rand.Rand, width uint) []uint32 {
	block := make([]uint32, BlockSize)
	for i := range block {
		block[i] = r.Uint32() & widthMask(width)
	}
	return block
}

func TestBitPacking(t *testing.T) {
	r := rand.New(rand.NewSource(77)) //intentionally fixed seed
	for width := uint(1); width <= MaxWidth; width++ {
		for j := 0; j < 10; j++ {
			block := randomBlock(r, width)
			chunk, err := Pack(block, width)
			require.NoError(t, err)
			require.Len(t, chunk, ChunkWords(width))
			for i := uint(0); i < BlockSize; i++ {
				v, err := UnpackSingle(chunk, width, i)
				require.NoError(t, err)
				if !assert.Equal(t, block[i], v, "failed to read %s from %d at width %d",
					strconv.FormatUint(uint64(block[i]), 2), i, width) {
					for i, x := range chunk {
						fmt.Printf("[%2d] %d) %s\n", width, i, strconv.FormatUint(uint64(x), 2))
					}
					return
				}
			}
		}
	}
}

func TestChunkWords(t *testing.T) {
	for width := uint(1); width <= MaxWidth; width++ {
		assert.Equal(t, BlockSize*int(width)/WordBits, ChunkWords(width))
		assert.Equal(t, 0, BlockSize*int(width)%WordBits, "width %d needs padding", width)
	}
	assert.Equal(t, 320, ChunkWords(10))
}

func TestPackIndexModulo(t *testing.T) {
	block := make([]uint32, BlockSize)
	for i := range block {
		block[i] = uint32(i % 1024)
	}
	chunk, err := Pack(block, 10)
	require.NoError(t, err)
	assert.Len(t, chunk, 320)

	v, err := UnpackSingle(chunk, 10, 500)
	require.NoError(t, err)
	assert.Equal(t, uint32(500), v)
}

func TestUnpackOrderIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for _, width := range []uint{1, 3, 7, 10, 13, 17, 31, 32} {
		block := randomBlock(r, width)
		chunk, err := Pack(block, width)
		require.NoError(t, err)

		ascending := make([]uint32, BlockSize)
		for i := range ascending {
			ascending[i] = UnpackSingleUnchecked(chunk, width, uint(i))
		}
		permuted := make([]uint32, BlockSize)
		for _, i := range r.Perm(BlockSize) {
			permuted[i] = UnpackSingleUnchecked(chunk, width, uint(i))
		}
		assert.Equal(t, ascending, permuted, "width %d", width)
		assert.Equal(t, block, ascending, "width %d", width)
	}
}

func TestUnpackWordBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		width  uint
		offset uint
	}{
		// 3*10 + 10 > 32: bits 30..39 straddle words 0 and 1
		{name: "straddling", width: 10, offset: 3},
		// 16*2 == 32: bits 30..31 end exactly on the boundary
		{name: "ending on boundary", width: 2, offset: 15},
		// bits 32..33 start the next word
		{name: "starting a word", width: 2, offset: 16},
		{name: "single bit last in word", width: 1, offset: 31},
		{name: "single bit first in word", width: 1, offset: 32},
		{name: "full width", width: 32, offset: 5},
		{name: "31 bits straddling", width: 31, offset: 1},
		{name: "last offset", width: 10, offset: BlockSize - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := make([]uint32, BlockSize)
			want := widthMask(tt.width) &^ 1 // not all ones, not zero
			if tt.width == 1 {
				want = 1
			}
			block[tt.offset] = want
			chunk, err := Pack(block, tt.width)
			require.NoError(t, err)

			got, err := UnpackSingle(chunk, tt.width, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			for _, neighbour := range []int{int(tt.offset) - 1, int(tt.offset) + 1} {
				if neighbour < 0 || neighbour >= BlockSize {
					continue
				}
				got, err := UnpackSingle(chunk, tt.width, uint(neighbour))
				require.NoError(t, err)
				assert.Zero(t, got, "neighbour %d picked up bits", neighbour)
			}
		})
	}
}

func TestPackFullWidthIsIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(32))
	block := randomBlock(r, 32)
	chunk, err := Pack(block, 32)
	require.NoError(t, err)
	assert.Equal(t, block, chunk)
}

func TestPackSingleBit(t *testing.T) {
	block := make([]uint32, BlockSize)
	for i := range block {
		block[i] = uint32(i % 3 / 2) // 0 0 1 0 0 1 ...
	}
	chunk, err := Pack(block, 1)
	require.NoError(t, err)
	require.Len(t, chunk, BlockSize/WordBits)
	// bits 2, 5, 8, ... 29 of the first word
	assert.Equal(t, uint32(0b00100100100100100100100100100100), chunk[0])
}

func TestPackRejectsValueOutOfRange(t *testing.T) {
	block := make([]uint32, BlockSize)
	block[700] = 1 << 10
	chunk, err := Pack(block, 10)
	assert.ErrorIs(t, err, ErrValueOutOfRange)
	assert.Nil(t, chunk)

	block[700] = 1<<10 - 1
	_, err = Pack(block, 10)
	assert.NoError(t, err)
}

func TestPackRejectsBadInput(t *testing.T) {
	_, err := Pack(make([]uint32, BlockSize-1), 8)
	assert.ErrorIs(t, err, ErrBlockLength)

	_, err = Pack(make([]uint32, BlockSize), 0)
	assert.ErrorIs(t, err, ErrInvalidWidth)

	_, err = Pack(make([]uint32, BlockSize), 33)
	assert.ErrorIs(t, err, ErrInvalidWidth)
}

func TestUnpackSingleOutOfRange(t *testing.T) {
	chunk, err := Pack(make([]uint32, BlockSize), 10)
	require.NoError(t, err)

	_, err = UnpackSingle(chunk, 10, BlockSize)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = UnpackSingle(chunk, 11, 0)
	assert.ErrorIs(t, err, ErrChunkLength)

	_, err = UnpackSingle(chunk, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidWidth)
}

func TestUnpack(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	for width := uint(1); width <= MaxWidth; width++ {
		block := randomBlock(r, width)
		chunk, err := Pack(block, width)
		require.NoError(t, err)
		out := make([]uint32, BlockSize)
		require.NoError(t, Unpack(chunk, width, out))
		assert.Equal(t, block, out, "width %d", width)
	}
	assert.ErrorIs(t, Unpack(make([]uint32, 320), 10, make([]uint32, 10)), ErrBlockLength)
}

func TestMaxBits(t *testing.T) {
	tests := []struct {
		name  string
		block []uint32
		want  uint
	}{
		{name: "empty", block: nil, want: 0},
		{name: "zeros", block: []uint32{0, 0, 0}, want: 0},
		{name: "one", block: []uint32{0, 1, 0}, want: 1},
		{name: "1023", block: []uint32{500, 1023, 7}, want: 10},
		{name: "1024", block: []uint32{1024}, want: 11},
		{name: "top bit", block: []uint32{1 << 31, 1}, want: 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaxBits(tt.block))
		})
	}
}

func TestPackUncheckedMasks(t *testing.T) {
	block := make([]uint32, BlockSize)
	for i := range block {
		block[i] = 0xffffffff
	}
	dst := make([]uint32, ChunkWords(4))
	PackUnchecked(block, 4, dst)
	for i := uint(0); i < BlockSize; i++ {
		assert.Equal(t, uint32(0xf), UnpackSingleUnchecked(dst, 4, i))
	}
}
