// Copyright (c) Facebook, Inc. and its affiliates. All Rights Reserved

package bitpack

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
)

// Disk is a read-only Buffer that decodes values from a serialized
// buffer on disk without loading its words into RAM.  Only the header
// and the width table are held in memory.
type Disk struct {
	header  Header
	widths  []uint8
	offsets []uint64
	words   diskBacking
	src     io.ReaderAt
	f       *os.File
}

// OpenReadOnlyFromPath initializes a read only buffer from a file
// written by Buffer.WriteTo
func OpenReadOnlyFromPath(path string) (*Disk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	d, err := OpenReadOnly(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	d.f = f
	return d, nil
}

// OpenReadOnly initializes a read only buffer over r, which must hold a
// stream written by Buffer.WriteTo
func OpenReadOnly(r io.ReaderAt) (*Disk, error) {
	h, _, err := readHeader(io.NewSectionReader(r, 0, headerSize))
	if err != nil {
		return nil, err
	}
	table := make([]byte, h.Chunks+8)
	if _, err := r.ReadAt(table, headerSize); err != nil {
		return nil, errors.Wrap(err, "reading width table")
	}
	widths := table[:h.Chunks:h.Chunks]
	offsets, err := wordOffsets(widths)
	if err != nil {
		return nil, err
	}
	if count := binary.LittleEndian.Uint64(table[h.Chunks:]); count != offsets[h.Chunks] {
		return nil, errors.Wrapf(ErrIncompatibleFormat, "width table needs %d words, file holds %d",
			offsets[h.Chunks], count)
	}
	wordsStart := headerSize + int64(len(table))
	return &Disk{
		header:  h,
		widths:  widths,
		offsets: offsets,
		words:   diskBacking{start: wordsStart, f: r},
		src:     r,
	}, nil
}

// Close closes the underlying file, if Disk opened it
func (d *Disk) Close() error {
	if d.f != nil {
		return d.f.Close()
	}
	return nil
}

// Header reports the header the file was written with
func (d *Disk) Header() Header {
	return d.header
}

func (d *Disk) Len() uint64 {
	return d.header.Length
}

// Width reports the bit width chunk c was packed at
func (d *Disk) Width(c int) uint {
	return uint(d.widths[c])
}

// Get reads the one or two words holding the value at ix and decodes it
func (d *Disk) Get(ix uint64) (uint32, error) {
	id, offset, err := Locate(ix, d.header.Length)
	if err != nil {
		return 0, err
	}
	width := uint(d.widths[id])
	bitPos := offset * width
	shift := bitPos % WordBits
	var words [2]uint32
	n := 1
	if shift+width > WordBits {
		n = 2
	}
	if err := d.words.read(d.offsets[id]+uint64(bitPos/WordBits), words[:n]); err != nil {
		return 0, err
	}
	return extract(words[0], words[1], shift, width), nil
}

// Verify reads the whole file, header and filters included, and checks
// it against the stored checksums
func (d *Disk) Verify() error {
	stream := io.NewSectionReader(d.src, 0, math.MaxInt64)
	h, hdr, err := readHeader(stream)
	if err != nil {
		return err
	}
	_, _, _, err = readPayload(stream, hdr, h)
	return err
}
