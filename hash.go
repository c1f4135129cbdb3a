// Copyright (c) Facebook, Inc. and its affiliates. All Rights Reserved

package bitpack

import (
	"bytes"

	murmur "github.com/aviddiviner/go-murmur"
)

// checksumSeed is mixed into every file checksum
const checksumSeed = uint64(0x62697470616b)

// checksum hashes the concatenation of parts
func checksum(parts ...[]byte) uint64 {
	if len(parts) == 1 {
		return murmur.MurmurHash64A(parts[0], checksumSeed)
	}
	return murmur.MurmurHash64A(bytes.Join(parts, nil), checksumSeed)
}
