// Copyright (c) Facebook, Inc. and its affiliates. All Rights Reserved

package bitpack

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const bytesPerWord = WordBits / 8

// maxWords bounds the word count a stream may declare
const maxWords = 1 << 34

// encodeWords serializes v as little-endian words into a new slice
func encodeWords(v []uint32) []byte {
	data := make([]byte, len(v)*bytesPerWord)
	for i, x := range v {
		binary.LittleEndian.PutUint32(data[i*bytesPerWord:], x)
	}
	return data
}

// decodeWords is the inverse of encodeWords.  A trailing partial word
// is an error.
func decodeWords(data []byte) ([]uint32, error) {
	if len(data)%bytesPerWord != 0 {
		return nil, errors.Errorf("%d bytes is not a whole number of words", len(data))
	}
	v := make([]uint32, len(data)/bytesPerWord)
	for i := range v {
		v[i] = binary.LittleEndian.Uint32(data[i*bytesPerWord:])
	}
	return v, nil
}

// writeWords writes a uint64 word count followed by the words
func writeWords(w io.Writer, v []uint32) (n int64, err error) {
	if err = binary.Write(w, binary.LittleEndian, uint64(len(v))); err != nil {
		return
	}
	n += 8
	np, err := w.Write(encodeWords(v))
	n += int64(np)
	return
}

func readWords(r io.Reader) (v []uint32, n int64, err error) {
	var length uint64
	if err = binary.Read(r, binary.LittleEndian, &length); err != nil {
		return
	}
	n += 8
	if length > maxWords {
		return nil, n, errors.Wrapf(ErrIncompatibleFormat, "word count %d too large", length)
	}
	data, np, err := readN(r, length*bytesPerWord)
	n += np
	if err != nil {
		return nil, n, errors.Wrap(err, "reading words")
	}
	v, err = decodeWords(data)
	return
}

// readN reads exactly size bytes.  The result grows with the bytes
// actually read, so a corrupt size fails at the end of the stream
// rather than allocating it up front.
func readN(r io.Reader, size uint64) ([]byte, int64, error) {
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, r, int64(size))
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, n, err
	}
	return buf.Bytes(), n, nil
}
