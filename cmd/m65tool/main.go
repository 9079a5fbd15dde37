// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command m65tool counts word frequencies in text files.
//
// All of its working memory comes from a single memory table, which is
// destroyed on exit, including when the run is interrupted with Ctrl-C.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/dansanderson/m65tool/alloc"
	"github.com/dansanderson/m65tool/hashmap"
	"github.com/dansanderson/m65tool/internal/guard"
	"github.com/dansanderson/m65tool/memory"
	"github.com/dansanderson/m65tool/memtbl"
	"github.com/docopt/docopt-go"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

const usage = `m65tool word frequency counter.
Usage:
  m65tool -h | --help
  m65tool [--allocator=KIND] [--top=N] [--verbose] <file>...
Options:
  -h --help           Show this screen.
  --allocator=KIND    Raw allocator behind the memory table: go, checked, mmap,
                      or malloc in cgo builds [default: go].
  --top=N             Number of words to print, 0 for all [default: 10].
  --verbose           Log allocator activity to stderr.`

type config struct {
	Help      bool `docopt:"--help"`
	Allocator string
	Top       string
	Verbose   bool
	File      []string
}

func main() {
	opts, _ := docopt.ParseDoc(usage)
	var cfg config
	if err := opts.Bind(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cfg config) error {
	top, err := strconv.Atoi(cfg.Top)
	if err != nil || top < 0 {
		return xerrors.Errorf("--top needs a non-negative integer, got %q", cfg.Top)
	}

	raw, err := rawAllocator(cfg.Allocator)
	if err != nil {
		return err
	}

	if cfg.Verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return xerrors.Errorf("creating logger: %w", err)
		}
		defer logger.Sync()
		alloc.SetLogger(logger.Named("alloc"))
		hashmap.SetLogger(logger.Named("hashmap"))
		memtbl.SetLogger(logger.Named("memtbl"))
	}

	ctx, stop := guard.NotifyInterrupt(context.Background())
	defer stop()

	tbl := memtbl.New(alloc.NewPlain(raw), memtbl.WithContext(ctx))
	defer func() {
		tbl.Destroy()
		if checked, ok := raw.(*memory.CheckedAllocator); ok && checked.CurrentAlloc() != 0 {
			fmt.Fprintf(os.Stderr, "warning: %d bytes still allocated after cleanup\n", checked.CurrentAlloc())
		}
	}()

	c, err := newCounter(tbl)
	if err != nil {
		return err
	}
	contents, err := readFiles(ctx, cfg.File)
	if err != nil {
		return err
	}
	for i, data := range contents {
		if err := c.count(ctx, bytes.NewReader(data)); err != nil {
			return xerrors.Errorf("counting %s: %w", cfg.File[i], err)
		}
	}

	for _, wc := range c.top(top) {
		fmt.Printf("%8d %s\n", wc.Count, wc.Word)
	}
	st := tbl.Stats()
	fmt.Printf("%s words, %s distinct, peak table memory %s in %s allocations\n",
		humanize.Comma(int64(c.total)), humanize.Comma(int64(c.distinct())),
		humanize.IBytes(uint64(st.PeakBytes)), humanize.Comma(int64(st.Live)))
	return nil
}

// readFiles loads every named file, a few at a time.
func readFiles(ctx context.Context, names []string) ([][]byte, error) {
	out := make([][]byte, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(name)
			if err != nil {
				return xerrors.Errorf("reading %s: %w", name, err)
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// extraAllocators holds raw allocators that only some builds provide.
var extraAllocators = map[string]func() memory.Allocator{}

func rawAllocator(kind string) (memory.Allocator, error) {
	if fn, ok := extraAllocators[kind]; ok {
		return fn(), nil
	}
	switch kind {
	case "", "go":
		return memory.NewGoAllocator(), nil
	case "checked":
		return memory.NewCheckedAllocator(memory.NewGoAllocator()), nil
	case "mmap":
		return memory.NewMmapAllocator(), nil
	default:
		return nil, xerrors.Errorf("unknown allocator %q", kind)
	}
}
