// Copyright (c) Facebook, Inc. and its affiliates. All Rights Reserved

package bitpack

import "github.com/pkg/errors"

// Locate maps a global index into a buffer of length values to the
// chunk holding it and the offset within that chunk.
func Locate(globalIndex, length uint64) (blockID uint64, offset uint, err error) {
	if globalIndex >= length {
		return 0, 0, errors.Wrapf(ErrIndexOutOfRange, "index %d, length is %d", globalIndex, length)
	}
	blockID, offset = LocateUnchecked(globalIndex)
	return blockID, offset, nil
}

// LocateUnchecked is Locate without the bound check.
func LocateUnchecked(globalIndex uint64) (blockID uint64, offset uint) {
	return globalIndex / BlockSize, uint(globalIndex % BlockSize)
}

// ChunkAt returns the chunk blockID of a buffer in which every chunk is
// packed at width.  The result aliases buffer; its capacity is clipped
// so that appending to it cannot overwrite the following chunk.
func ChunkAt(buffer []uint32, blockID uint64, width uint) ([]uint32, error) {
	if err := checkWidth(width); err != nil {
		return nil, err
	}
	words := uint64(ChunkWords(width))
	start := blockID * words
	end := start + words
	if end > uint64(len(buffer)) || end < start {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "chunk %d at width %d, buffer holds %d chunks",
			blockID, width, uint64(len(buffer))/words)
	}
	return buffer[start:end:end], nil
}
