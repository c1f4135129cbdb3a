// Copyright (c) Facebook, Inc. and its affiliates. All Rights Reserved

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	bitpack "github.com/facebookincubator/go-bitpack"
)

var logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))

func main() {
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	app := &cli.App{
		Name:  "bitpack",
		Usage: "pack integer columns for random access",
		Commands: []*cli.Command{
			{
				Name:  "compile",
				Usage: "compile a list of integers into a packed buffer",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"out", "o"},
						Value:   "packed.bin",
						Usage:   "name of the file to write the packed buffer to",
					},
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"in", "i"},
						Usage:   "file to read integers from, one per line (default is stdin)",
					},
					&cli.IntFlag{
						Name:  "synthetic",
						Usage: "instead of reading input, generate this many values of index mod 1024",
					},
					&cli.UintFlag{
						Name:    "width",
						Aliases: []string{"w"},
						Usage:   "bits per value for every chunk (default is narrowest per chunk)",
					},
					&cli.Float64Flag{
						Name:  "fp",
						Usage: "false positive rate of per chunk bloom filters (default is no filters)",
					},
				},
				Action: compile,
			},
			{
				Name:      "lookup",
				Usage:     "look up values by index in a packed buffer",
				ArgsUsage: "index...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"in", "i"},
						Usage:   "file containing the packed buffer",
					},
				},
				Action: lookup,
			},
			{
				Name:  "find",
				Usage: "list the indexes holding a value",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"in", "i"},
						Usage:   "file containing the packed buffer",
					},
				},
				Action: find,
			},
			{
				Name:  "describe",
				Usage: "read the header and width table of a packed buffer and describe it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"in", "i"},
						Usage:   "file containing the packed buffer",
					},
				},
				Action: describe,
			},
			{
				Name:  "verify",
				Usage: "check a packed buffer against its checksum",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"in", "i"},
						Usage:   "file containing the packed buffer",
					},
				},
				Action: func(c *cli.Context) error {
					d, err := bitpack.OpenReadOnlyFromPath(c.String("input"))
					if err != nil {
						return fmt.Errorf("verify: can't read input file: %w", err)
					}
					defer d.Close()
					if err := d.Verify(); err != nil {
						return fmt.Errorf("verify: %w", err)
					}
					level.Info(logger).Log("msg", "checksum ok", "file", c.String("input"), "values", d.Len())
					return nil
				},
			},
			{
				Name:  "bench",
				Usage: "compare random access on a packed buffer with block compressed baselines",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "values",
						Value: 64 * bitpack.BlockSize,
						Usage: "number of values of index mod 1024 to generate",
					},
					&cli.IntFlag{
						Name:  "iterations",
						Value: 500,
						Usage: "lookups per vector",
					},
					&cli.Uint64Flag{
						Name:  "index",
						Value: 500,
						Usage: "index to look up",
					},
				},
				Action: bench,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}
}

func synthetic(n int) []uint32 {
	values := make([]uint32, n)
	for i := range values {
		values[i] = uint32(i % 1024)
	}
	return values
}

func readValues(r io.Reader) ([]uint32, error) {
	var values []uint32
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		s := strings.TrimSpace(scanner.Text())
		if s == "" {
			continue
		}
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		values = append(values, uint32(v))
	}
	return values, scanner.Err()
}

func compile(c *cli.Context) error {
	output := c.String("output")
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		return fmt.Errorf("refusing to over-write existing file: %s", output)
	}
	if c.NArg() > 0 {
		return fmt.Errorf("unexpected command line arguments: %q", c.Args().Slice())
	}

	var values []uint32
	if c.IsSet("synthetic") {
		values = synthetic(c.Int("synthetic"))
	} else {
		var reader io.Reader = os.Stdin
		if c.IsSet("input") {
			f, err := os.Open(c.String("input"))
			if err != nil {
				return err
			}
			defer f.Close()
			reader = f
		}
		var err error
		if values, err = readValues(reader); err != nil {
			return err
		}
	}

	cfg := bitpack.Config{
		Width:             c.Uint("width"),
		FalsePositiveRate: c.Float64("fp"),
	}
	cfg.Explain(uint64(len(values)))
	start := time.Now()
	b, err := bitpack.NewBuffer(values, cfg)
	if err != nil {
		return fmt.Errorf("error packing values: %w", err)
	}
	level.Info(logger).Log("msg", "packed values", "values", len(values), "chunks", b.Chunks(),
		"size", humanize.IBytes(b.Bytes()), "duration", time.Since(start))

	o, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", output, err)
	}
	defer o.Close()
	n, err := b.WriteTo(o)
	if err != nil {
		return fmt.Errorf("error writing packed buffer: %w", err)
	}
	level.Info(logger).Log("msg", "wrote packed buffer", "file", output, "bytes", n)
	return nil
}

func lookup(c *cli.Context) error {
	d, err := bitpack.OpenReadOnlyFromPath(c.String("input"))
	if err != nil {
		return fmt.Errorf("lookup: can't read input file: %w", err)
	}
	defer d.Close()
	for _, arg := range c.Args().Slice() {
		ix, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("lookup: bad index %q: %w", arg, err)
		}
		v, err := d.Get(ix)
		if err != nil {
			return fmt.Errorf("lookup: %w", err)
		}
		fmt.Printf("%d: %d\n", ix, v)
	}
	return nil
}

func find(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("find: expected one value, got %q", c.Args().Slice())
	}
	v, err := strconv.ParseUint(c.Args().First(), 10, 32)
	if err != nil {
		return fmt.Errorf("find: bad value: %w", err)
	}
	f, err := os.Open(c.String("input"))
	if err != nil {
		return fmt.Errorf("find: can't read input file: %w", err)
	}
	defer f.Close()
	b, err := bitpack.ReadBuffer(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("find: %w", err)
	}
	found, err := b.Find(uint32(v))
	if err != nil {
		return fmt.Errorf("find: %w", err)
	}
	for ix, ok := found.NextSet(0); ok; ix, ok = found.NextSet(ix + 1) {
		fmt.Println(ix)
	}
	level.Debug(logger).Log("msg", "find done", "value", v, "matches", found.Count(), "filters", b.HasFilters())
	return nil
}

func describe(c *cli.Context) error {
	d, err := bitpack.OpenReadOnlyFromPath(c.String("input"))
	if err != nil {
		return fmt.Errorf("describe: can't read input file: %w", err)
	}
	defer d.Close()
	h := d.Header()
	fmt.Printf("Packed buffer version %d\n", h.Version)
	not := "no "
	if h.Filters {
		not = ""
	}
	fmt.Printf("%d values in %d chunks of %d, %d bit words, %sbloom filters\n",
		h.Length, h.Chunks, h.BlockSize, h.WordBits, not)

	histogram := map[uint]int{}
	var words uint64
	for i := 0; i < int(h.Chunks); i++ {
		histogram[d.Width(i)]++
		words += uint64(bitpack.ChunkWords(d.Width(i)))
	}
	widths := make([]uint, 0, len(histogram))
	for w := range histogram {
		widths = append(widths, w)
	}
	sort.Slice(widths, func(i, j int) bool { return widths[i] < widths[j] })
	for _, w := range widths {
		fmt.Printf("  %2d bits: %d chunks\n", w, histogram[w])
	}
	fmt.Printf("  %s packed, %s unpacked\n",
		humanize.IBytes(words*bitpack.WordBits/8), humanize.IBytes(h.Length*4))
	return nil
}

func bench(c *cli.Context) error {
	values := synthetic(c.Int("values"))
	ix := c.Uint64("index")
	iterations := c.Int("iterations")
	if ix >= uint64(len(values)) {
		return fmt.Errorf("bench: index %d out of range for %d values", ix, len(values))
	}

	builders := []struct {
		name  string
		build bitpack.VectorBuildFn
	}{
		{"unpacked", bitpack.UnpackedVectorBuild},
		{"bitpacked", func(values []uint32) (bitpack.Vector, error) {
			return bitpack.NewBuffer(values, bitpack.DefaultConfig)
		}},
	}
	for _, enc := range bitpack.SupportedEncodings {
		builders = append(builders, struct {
			name  string
			build bitpack.VectorBuildFn
		}{enc.String(), bitpack.CompressedVectorBuilder(enc)})
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"vector", "size", "ratio", "per lookup"})
	for _, b := range builders {
		v, err := b.build(values)
		if err != nil {
			return fmt.Errorf("bench: building %s: %w", b.name, err)
		}
		start := time.Now()
		for i := 0; i < iterations; i++ {
			got, err := v.Get(ix)
			if err != nil {
				return fmt.Errorf("bench: %s: %w", b.name, err)
			}
			if got != values[ix] {
				return fmt.Errorf("bench: %s returned %d at %d, expected %d", b.name, got, ix, values[ix])
			}
		}
		per := time.Since(start) / time.Duration(max(iterations, 1))
		ratio := float64(len(values)*4) / float64(max(v.Bytes(), 1))
		t.AppendRow(table.Row{b.name, humanize.IBytes(v.Bytes()), fmt.Sprintf("%.2fx", ratio), per})
		level.Debug(logger).Log("msg", "benchmarked vector", "vector", b.name, "iterations", iterations, "per_lookup", per)
	}
	t.Render()
	return nil
}
