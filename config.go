package bitpack

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// DefaultFalsePositiveRate is the bloom filter false positive rate used
// by the command line tool when filters are requested without a rate
const DefaultFalsePositiveRate = 0.01

// Config controls how a Buffer packs its values
type Config struct {
	// Width is the bit width every chunk is packed at.  Zero packs each
	// chunk at the narrowest width its own values allow.
	Width uint
	// FalsePositiveRate of the per chunk bloom filters used by Find.
	// Zero disables the filters.
	FalsePositiveRate float64
}

// DefaultConfig derives widths per chunk and builds no filters
var DefaultConfig = Config{}

// ErrInvalidFalsePositiveRate is returned for filter false positive
// rates outside [0, 1)
var ErrInvalidFalsePositiveRate = errors.New("invalid false positive rate")

func (c *Config) validate() error {
	if c.Width != 0 {
		if err := checkWidth(c.Width); err != nil {
			return err
		}
	}
	fp := c.FalsePositiveRate
	if math.IsNaN(fp) || fp < 0 || fp >= 1 {
		return errors.Wrapf(ErrInvalidFalsePositiveRate, "rate %v not in [0, 1)", fp)
	}
	return nil
}

// DetermineWidth reports the narrowest uniform width able to hold every
// value, never less than one bit.
func DetermineWidth(values []uint32) uint {
	if w := MaxBits(values); w > 0 {
		return w
	}
	return 1
}

// BytesRequired reports the space required by the packed words of n
// values at the configured width.  With per chunk widths this is the
// upper bound.
func (c *Config) BytesRequired(n uint64) uint64 {
	width := c.Width
	if width == 0 {
		width = MaxWidth
	}
	chunks := (n + BlockSize - 1) / BlockSize
	return chunks * uint64(ChunkWords(width)) * (WordBits / 8)
}

// ExplainIndent will print an indented summary of the configuration
// for n values to stdout
func (c *Config) ExplainIndent(indent string, n uint64) {
	chunks := (n + BlockSize - 1) / BlockSize
	fmt.Printf("%s%d values in %d chunks of %d\n", indent, n, chunks, BlockSize)
	if c.Width == 0 {
		fmt.Printf("%swidth derived per chunk\n", indent)
	} else {
		fmt.Printf("%s%2d bits per value (%d words per chunk)\n", indent, c.Width, ChunkWords(c.Width))
	}
	if c.FalsePositiveRate > 0 {
		fmt.Printf("%sbloom filter per chunk, %.2f%% false positives\n", indent, 100*c.FalsePositiveRate)
	}
	fmt.Printf("%s   %s storage size expected (%s unpacked)\n", indent,
		humanize.IBytes(c.BytesRequired(n)), humanize.IBytes(n*4))
}

// Explain will print a summary of the configuration to stdout
func (c *Config) Explain(n uint64) {
	c.ExplainIndent("", n)
}
