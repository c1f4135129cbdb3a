package bitpack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Encoding is a general purpose block compressor
type Encoding byte

const (
	EncNone Encoding = iota
	EncSnappy
	EncZstd
)

// SupportedEncodings lists every Encoding a CompressedVector accepts
var SupportedEncodings = []Encoding{EncNone, EncSnappy, EncZstd}

func (e Encoding) String() string {
	switch e {
	case EncNone:
		return "none"
	case EncSnappy:
		return "snappy"
	case EncZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unsupported(%d)", byte(e))
	}
}

// ParseEncoding parses an Encoding name as printed by String
func ParseEncoding(s string) (Encoding, error) {
	for _, e := range SupportedEncodings {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, errors.Errorf("unknown encoding %q", s)
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// zstdCodec builds the shared zstd encoder and decoder on first use.
// Both are safe for concurrent EncodeAll and DecodeAll calls.
func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		if zstdEncoder, zstdErr = zstd.NewWriter(nil); zstdErr != nil {
			zstdErr = errors.Wrap(zstdErr, "building zstd encoder")
			return
		}
		if zstdDecoder, zstdErr = zstd.NewReader(nil); zstdErr != nil {
			zstdErr = errors.Wrap(zstdErr, "building zstd decoder")
		}
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// CompressedVector compresses the whole array as one block.  It is the
// baseline random access is measured against: every Get decompresses
// everything and then indexes the result.
type CompressedVector struct {
	enc    Encoding
	length uint64
	data   []byte
}

var _ Vector = (*CompressedVector)(nil)

// CompressedVectorBuilder returns a VectorBuildFn compressing with enc
func CompressedVectorBuilder(enc Encoding) VectorBuildFn {
	return func(values []uint32) (Vector, error) {
		return NewCompressedVector(values, enc)
	}
}

// NewCompressedVector serializes values as little-endian words and
// compresses them with enc
func NewCompressedVector(values []uint32, enc Encoding) (*CompressedVector, error) {
	raw := encodeWords(values)
	v := &CompressedVector{enc: enc, length: uint64(len(values))}
	switch enc {
	case EncNone:
		v.data = raw
	case EncSnappy:
		var buf bytes.Buffer
		w := snappy.NewBufferedWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, errors.Wrap(err, "snappy compress")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "snappy flush")
		}
		v.data = buf.Bytes()
	case EncZstd:
		encoder, _, err := zstdCodec()
		if err != nil {
			return nil, err
		}
		v.data = encoder.EncodeAll(raw, nil)
	default:
		return nil, errors.Errorf("unsupported encoding %s", enc)
	}
	return v, nil
}

// Encoding reports the compressor in use
func (v *CompressedVector) Encoding() Encoding {
	return v.enc
}

func (v *CompressedVector) Len() uint64 {
	return v.length
}

func (v *CompressedVector) Bytes() uint64 {
	return uint64(len(v.data))
}

// Get decompresses the whole vector and returns the value at ix
func (v *CompressedVector) Get(ix uint64) (uint32, error) {
	if ix >= v.length {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "index %d, length is %d", ix, v.length)
	}
	values, err := v.Decompress()
	if err != nil {
		return 0, err
	}
	return values[ix], nil
}

// Decompress returns every value in the vector
func (v *CompressedVector) Decompress() ([]uint32, error) {
	var raw []byte
	var err error
	switch v.enc {
	case EncNone:
		raw = v.data
	case EncSnappy:
		raw, err = io.ReadAll(snappy.NewReader(bytes.NewReader(v.data)))
	case EncZstd:
		var dec *zstd.Decoder
		if _, dec, err = zstdCodec(); err == nil {
			raw, err = dec.DecodeAll(v.data, nil)
		}
	default:
		err = errors.Errorf("unsupported encoding %s", v.enc)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s decompress", v.enc)
	}
	values, err := decodeWords(raw)
	if err != nil {
		return nil, err
	}
	if uint64(len(values)) != v.length {
		return nil, errors.Errorf("decompressed %d values, expected %d", len(values), v.length)
	}
	return values, nil
}

// WriteTo writes the encoding, the value count and the compressed bytes
func (v *CompressedVector) WriteTo(w io.Writer) (n int64, err error) {
	hdr := make([]byte, 0, 1+8+8)
	hdr = append(hdr, byte(v.enc))
	hdr = binary.LittleEndian.AppendUint64(hdr, v.length)
	hdr = binary.LittleEndian.AppendUint64(hdr, uint64(len(v.data)))
	np, err := w.Write(hdr)
	n += int64(np)
	if err != nil {
		return
	}
	np, err = w.Write(v.data)
	n += int64(np)
	return
}

// ReadCompressedVector reads a vector written by CompressedVector.WriteTo
func ReadCompressedVector(r io.Reader) (*CompressedVector, int64, error) {
	var hdr [1 + 8 + 8]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		return nil, int64(n), errors.Wrap(err, "reading compressed vector header")
	}
	v := &CompressedVector{
		enc:    Encoding(hdr[0]),
		length: binary.LittleEndian.Uint64(hdr[1:]),
	}
	size := binary.LittleEndian.Uint64(hdr[9:])
	if size > maxWords*bytesPerWord {
		return nil, int64(n), errors.Wrapf(ErrIncompatibleFormat, "compressed size %d too large", size)
	}
	data, np, err := readN(r, size)
	if err != nil {
		return nil, int64(n) + np, errors.Wrap(err, "reading compressed vector")
	}
	v.data = data
	return v, int64(n) + np, nil
}
