// Copyright (c) Facebook, Inc. and its affiliates. All Rights Reserved

package bitpack

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// diskBacking reads packed words straight from a file, starting at the
// byte offset of the first word
type diskBacking struct {
	start int64
	f     io.ReaderAt
}

// read fills dst with the words starting at word ix
func (b diskBacking) read(ix uint64, dst []uint32) error {
	var val [2 * bytesPerWord]byte
	if len(dst) > 2 {
		return errors.Errorf("disk backing reads at most 2 words, asked for %d", len(dst))
	}
	buf := val[:len(dst)*bytesPerWord]
	n, err := b.f.ReadAt(buf, b.start+int64(ix)*bytesPerWord)
	if n == len(buf) {
		err = nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read words %d..%d", ix, ix+uint64(len(dst)))
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(buf[i*bytesPerWord:])
	}
	return nil
}
