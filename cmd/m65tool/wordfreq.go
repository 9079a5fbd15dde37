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

package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"slices"
	"strings"

	"github.com/dansanderson/m65tool/alloc"
	"github.com/dansanderson/m65tool/hashmap"
	"github.com/dansanderson/m65tool/memtbl"
	"golang.org/x/xerrors"
)

// Each value in the word map is a record of a little-endian uint32 count
// followed by the word itself.
const countSize = 4

var errNoMemory = xerrors.New("out of memory")

type wordCount struct {
	Word  string
	Count uint32
}

type counter struct {
	tbl   *memtbl.Table
	words *hashmap.Map
	total int
}

// newCounter builds a word map whose slot table and records all come from
// tbl, so destroying tbl releases everything the counter allocated.
func newCounter(tbl *memtbl.Table) (*counter, error) {
	words := hashmap.New(tbl)
	if !words.IsValid() {
		return nil, xerrors.Errorf("creating word map: %w", tableErr(tbl))
	}
	return &counter{tbl: tbl, words: words}, nil
}

func tableErr(tbl *memtbl.Table) error {
	if err := tbl.Err(); err != nil {
		return err
	}
	return errNoMemory
}

func (c *counter) add(word []byte) error {
	key := hashmap.BytesKey(word)
	if rec := c.words.Get(key).Bytes(); rec != nil {
		binary.LittleEndian.PutUint32(rec, binary.LittleEndian.Uint32(rec)+1)
		c.total++
		return nil
	}

	h := alloc.Allocate(c.tbl, countSize+len(word))
	rec := h.Bytes()
	if rec == nil {
		return xerrors.Errorf("recording %q: %w", word, tableErr(c.tbl))
	}
	binary.LittleEndian.PutUint32(rec, 1)
	copy(rec[countSize:], word)
	if !c.words.Set(key, h) {
		alloc.Free(h)
		return xerrors.Errorf("recording %q: %w", word, tableErr(c.tbl))
	}
	c.total++
	return nil
}

// count adds every whitespace separated word read from r. It stops early
// when ctx is done.
func (c *counter) count(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.add(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// distinct is the number of different words seen.
func (c *counter) distinct() int { return c.words.Len() }

// top returns the n most frequent words, most frequent first and ties in
// byte order. n <= 0 returns every word.
func (c *counter) top(n int) []wordCount {
	out := make([]wordCount, 0, c.words.Len())
	for h := range c.words.Values() {
		rec := h.Bytes()
		if len(rec) < countSize {
			continue
		}
		out = append(out, wordCount{
			Word:  string(rec[countSize:]),
			Count: binary.LittleEndian.Uint32(rec),
		})
	}

	slices.SortFunc(out, func(a, b wordCount) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Word, b.Word)
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
