// Copyright (c) Facebook, Inc. and its affiliates. All Rights Reserved

package bitpack

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/pkg/errors"
)

// formatVersion is a version number for the on disk representation
// format.  Any time incompatible changes are made, it is bumped
const formatVersion = uint64(0x0002)

var (
	// ErrIncompatibleFormat is returned for streams this version of the
	// package cannot decode
	ErrIncompatibleFormat = errors.New("incompatible format")
	// ErrChecksumMismatch is returned when a stored checksum does not
	// match the bytes it covers
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Header describes a serialized Buffer
type Header struct {
	// a version number which changes as the storage representation
	// changes
	Version uint64
	// the number of values stored
	Length uint64
	// the block size and word size the buffer was packed with
	BlockSize uint64
	WordBits  uint64
	// the number of chunks, and the length of the width table
	Chunks uint64
	// whether a bloom filter per chunk follows the checksum.  The
	// filters carry a checksum of their own.
	Filters bool
}

var headerSize = int64(binary.Size(Header{}))

func (h Header) validate() error {
	if h.Version != formatVersion {
		return errors.Wrapf(ErrIncompatibleFormat, "version is %d, expected %d", h.Version, formatVersion)
	}
	if h.BlockSize != BlockSize || h.WordBits != WordBits {
		return errors.Wrapf(ErrIncompatibleFormat, "packed with %d values of %d bit words, expected %d of %d",
			h.BlockSize, h.WordBits, BlockSize, WordBits)
	}
	if h.Chunks != (h.Length+BlockSize-1)/BlockSize {
		return errors.Wrapf(ErrIncompatibleFormat, "%d chunks cannot hold exactly %d values", h.Chunks, h.Length)
	}
	if h.Chunks > uint64(maxWords/ChunkWords(MaxWidth)) {
		return errors.Wrapf(ErrIncompatibleFormat, "chunk count %d too large", h.Chunks)
	}
	return nil
}

// body is the part of a stream covered by the first checksum: the
// header, the width table, the word count and the words
type body struct {
	widths  []uint8
	offsets []uint64
	words   []uint32
	sum     uint64
}

func encodeHeader(h Header) []byte {
	var buf bytes.Buffer
	// writes to a bytes.Buffer cannot fail
	_ = binary.Write(&buf, binary.LittleEndian, h)
	return buf.Bytes()
}

func readHeader(r io.Reader) (h Header, raw []byte, err error) {
	raw = make([]byte, headerSize)
	if _, err = io.ReadFull(r, raw); err != nil {
		return h, nil, errors.Wrap(err, "reading header")
	}
	if err = binary.Read(bytes.NewReader(raw), binary.LittleEndian, &h); err != nil {
		return h, nil, err
	}
	return h, raw, h.validate()
}

// readBody reads what follows the header hdr, up to and excluding the
// first checksum
func readBody(r io.Reader, hdr []byte, chunks uint64) (bd body, n int64, err error) {
	raw := make([]byte, chunks+8)
	np, err := io.ReadFull(r, raw)
	n += int64(np)
	if err != nil {
		return bd, n, errors.Wrap(err, "reading width table")
	}
	bd.widths = raw[:chunks:chunks]
	bd.offsets, err = wordOffsets(bd.widths)
	if err != nil {
		return bd, n, err
	}
	count := binary.LittleEndian.Uint64(raw[chunks:])
	if count != bd.offsets[chunks] {
		return bd, n, errors.Wrapf(ErrIncompatibleFormat, "width table needs %d words, stream holds %d",
			bd.offsets[chunks], count)
	}
	data, nw, err := readN(r, count*bytesPerWord)
	n += nw
	if err != nil {
		return bd, n, errors.Wrap(err, "reading words")
	}
	if bd.words, err = decodeWords(data); err != nil {
		return bd, n, err
	}
	bd.sum = checksum(hdr, raw, data)
	return bd, n, nil
}

// readPayload reads and checks everything following the header: the
// body, its checksum, and the filters when the header announces them
func readPayload(r io.Reader, hdr []byte, h Header) (bd body, filters []*bloom.BloomFilter, n int64, err error) {
	bd, n, err = readBody(r, hdr, h.Chunks)
	if err != nil {
		return
	}
	if err = readChecksum(r, bd.sum); err != nil {
		return
	}
	n += 8
	if h.Filters {
		var nf int64
		filters, nf, err = readFilters(r, h.Chunks)
		n += nf
	}
	return
}

func readChecksum(r io.Reader, computed uint64) error {
	var sum uint64
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		return errors.Wrap(err, "reading checksum")
	}
	if sum != computed {
		return errors.Wrapf(ErrChecksumMismatch, "stored %x, computed %x", sum, computed)
	}
	return nil
}

// writeFilters writes each filter as a uint64 size and its bytes,
// followed by a checksum of all of them
func writeFilters(w io.Writer, filters []*bloom.BloomFilter) (int64, error) {
	var section bytes.Buffer
	var filter bytes.Buffer
	for c, f := range filters {
		filter.Reset()
		if _, err := f.WriteTo(&filter); err != nil {
			return 0, errors.Wrapf(err, "encoding filter %d", c)
		}
		_ = binary.Write(&section, binary.LittleEndian, uint64(filter.Len()))
		section.Write(filter.Bytes())
	}
	_ = binary.Write(&section, binary.LittleEndian, checksum(section.Bytes()))
	return section.WriteTo(w)
}

// readFilters reads a section written by writeFilters.  Nothing is
// decoded until the checksum matches.
func readFilters(r io.Reader, chunks uint64) ([]*bloom.BloomFilter, int64, error) {
	var n int64
	raw := make([][]byte, chunks)
	var section [][]byte
	for c := range raw {
		size, ns, err := readN(r, 8)
		n += ns
		if err != nil {
			return nil, n, errors.Wrapf(err, "reading filter %d size", c)
		}
		raw[c], ns, err = readN(r, binary.LittleEndian.Uint64(size))
		n += ns
		if err != nil {
			return nil, n, errors.Wrapf(err, "reading filter %d", c)
		}
		section = append(section, size, raw[c])
	}
	if err := readChecksum(r, checksum(section...)); err != nil {
		return nil, n, errors.Wrap(err, "filters")
	}
	n += 8

	filters := make([]*bloom.BloomFilter, chunks)
	for c := range filters {
		filters[c] = &bloom.BloomFilter{}
		if _, err := filters[c].ReadFrom(bytes.NewReader(raw[c])); err != nil {
			return nil, n, errors.Wrapf(err, "decoding filter %d", c)
		}
	}
	return filters, n, nil
}

// wordOffsets validates a width table and returns the word offset of
// every chunk, followed by the total word count
func wordOffsets(widths []uint8) ([]uint64, error) {
	offsets := make([]uint64, len(widths)+1)
	for c, w := range widths {
		if err := checkWidth(uint(w)); err != nil {
			return nil, errors.Wrapf(err, "chunk %d", c)
		}
		offsets[c+1] = offsets[c] + uint64(ChunkWords(uint(w)))
	}
	return offsets, nil
}

// WriteTo allows the buffer to be written to a stream
func (b *Buffer) WriteTo(stream io.Writer) (i int64, err error) {
	hdr := encodeHeader(Header{
		Version:   formatVersion,
		Length:    b.length,
		BlockSize: BlockSize,
		WordBits:  WordBits,
		Chunks:    uint64(len(b.widths)),
		Filters:   b.filters != nil,
	})
	data := make([]byte, 0, len(hdr)+len(b.widths)+8+len(b.words)*bytesPerWord+8)
	data = append(data, hdr...)
	data = append(data, b.widths...)
	data = binary.LittleEndian.AppendUint64(data, uint64(len(b.words)))
	data = append(data, encodeWords(b.words)...)
	data = binary.LittleEndian.AppendUint64(data, checksum(data))
	n, err := stream.Write(data)
	i += int64(n)
	if err != nil {
		return
	}

	if b.filters != nil {
		x, err := writeFilters(stream, b.filters)
		i += x
		if err != nil {
			return i, errors.Wrap(err, "writing filters")
		}
	}
	return
}

// ReadFrom replaces the buffer with one read from a stream written by
// WriteTo
func (b *Buffer) ReadFrom(stream io.Reader) (i int64, err error) {
	h, hdr, err := readHeader(stream)
	if err != nil {
		return
	}
	i += headerSize
	bd, filters, n, err := readPayload(stream, hdr, h)
	i += n
	if err != nil {
		return
	}

	*b = Buffer{
		length:  h.Length,
		widths:  bd.widths,
		offsets: bd.offsets,
		words:   bd.words,
		filters: filters,
	}
	return
}

// ReadBuffer reads a Buffer written by WriteTo
func ReadBuffer(stream io.Reader) (*Buffer, error) {
	var b Buffer
	if _, err := b.ReadFrom(stream); err != nil {
		return nil, err
	}
	return &b, nil
}

// Marshal serializes the buffer into a byte slice
func (b *Buffer) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadHeaderFromPath reads and validates the header of a serialized
// buffer.  Only the file checksums, checked by ReadFrom and Disk.Verify,
// vouch for the values in it.
func ReadHeaderFromPath(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	h, _, err := readHeader(f)
	return h, err
}
