package bitpack

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorsAgree(t *testing.T) {
	values := benchmarkValues()
	builders := map[string]VectorBuildFn{
		"unpacked": UnpackedVectorBuild,
		"packed": func(values []uint32) (Vector, error) {
			return NewBuffer(values, DefaultConfig)
		},
	}
	for _, enc := range SupportedEncodings {
		builders[enc.String()] = CompressedVectorBuilder(enc)
	}
	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			v, err := build(values)
			require.NoError(t, err)
			assert.Equal(t, uint64(len(values)), v.Len())
			for _, ix := range []uint64{0, 500, 500 + 1024, uint64(len(values)) - 1} {
				got, err := v.Get(ix)
				require.NoError(t, err)
				assert.Equal(t, values[ix], got)
			}
			_, err = v.Get(v.Len())
			assert.ErrorIs(t, err, ErrIndexOutOfRange)
		})
	}
}

func TestCompressedVectorRoundTrip(t *testing.T) {
	values := mixedValues(4, 3*BlockSize)
	for _, enc := range SupportedEncodings {
		v, err := NewCompressedVector(values, enc)
		require.NoError(t, err)
		assert.Equal(t, enc, v.Encoding())

		all, err := v.Decompress()
		require.NoError(t, err)
		assert.Equal(t, values, all)

		var buf bytes.Buffer
		n, err := v.WriteTo(&buf)
		require.NoError(t, err)
		nv, m, err := ReadCompressedVector(&buf)
		require.NoError(t, err)
		assert.Equal(t, n, m)
		assert.Equal(t, v, nv)
	}
}

func TestCompressedVectorSmallerThanRaw(t *testing.T) {
	values := benchmarkValues()
	for _, enc := range []Encoding{EncSnappy, EncZstd} {
		v, err := NewCompressedVector(values, enc)
		require.NoError(t, err)
		assert.Less(t, v.Bytes(), uint64(len(values)*4), enc.String())
	}
}

func TestParseEncoding(t *testing.T) {
	for _, enc := range SupportedEncodings {
		got, err := ParseEncoding(enc.String())
		require.NoError(t, err)
		assert.Equal(t, enc, got)
	}
	_, err := ParseEncoding("lz4")
	assert.Error(t, err)

	_, err = NewCompressedVector([]uint32{1}, Encoding(42))
	assert.Error(t, err)
}

func TestZstdCodecShared(t *testing.T) {
	enc, dec, err := zstdCodec()
	require.NoError(t, err)
	require.NotNil(t, enc)
	require.NotNil(t, dec)

	enc2, dec2, err := zstdCodec()
	require.NoError(t, err)
	assert.Same(t, enc, enc2)
	assert.Same(t, dec, dec2)
}
