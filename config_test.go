package bitpack

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineWidth(t *testing.T) {
	assert.Equal(t, uint(1), DetermineWidth(nil))
	assert.Equal(t, uint(1), DetermineWidth([]uint32{0, 0}))
	assert.Equal(t, uint(10), DetermineWidth(benchmarkValues()))
}

func TestBytesRequired(t *testing.T) {
	c := Config{Width: 10}
	assert.Equal(t, uint64(64*320*4), c.BytesRequired(64*BlockSize))
	// a partial chunk still takes a whole chunk
	assert.Equal(t, uint64(320*4), c.BytesRequired(1))
	assert.Zero(t, c.BytesRequired(0))

	assert.Equal(t, uint64(BlockSize*4), DefaultConfig.BytesRequired(BlockSize))
}

func TestFalsePositiveRateRange(t *testing.T) {
	values := benchmarkValues()[:BlockSize]
	tests := []struct {
		fp    float64
		valid bool
	}{
		{fp: 0, valid: true},
		{fp: 0.01, valid: true},
		{fp: 0.5, valid: true},
		{fp: 1, valid: false},
		{fp: 1.5, valid: false},
		{fp: 2, valid: false},
		{fp: -0.1, valid: false},
		{fp: math.NaN(), valid: false},
		{fp: math.Inf(1), valid: false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.fp), func(t *testing.T) {
			var b *Buffer
			var err error
			require.NotPanics(t, func() {
				b, err = NewBuffer(values, Config{FalsePositiveRate: tt.fp})
			})
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, tt.fp > 0, b.HasFilters())
				return
			}
			assert.ErrorIs(t, err, ErrInvalidFalsePositiveRate)
			assert.Nil(t, b)
		})
	}
}
