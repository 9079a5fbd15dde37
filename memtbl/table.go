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

package memtbl

import (
	"context"
	"unsafe"

	"github.com/dansanderson/m65tool/alloc"
	"github.com/dansanderson/m65tool/hashmap"
	"github.com/dansanderson/m65tool/internal/debug"
	"github.com/dansanderson/m65tool/internal/guard"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

var (
	// ErrDestroyed is reported by a table after Destroy.
	ErrDestroyed = xerrors.New("memtbl: table destroyed")
	// ErrUnavailable is reported when the table's own storage could not be
	// allocated, or has been released by the base allocator.
	ErrUnavailable = xerrors.New("memtbl: table storage unavailable")
)

// header lives in memory from the base allocator.
type header struct {
	live  int64
	bytes int64
	peak  int64
}

const headerSize = int(unsafe.Sizeof(header{}))

// Stats describes the allocations currently held by a table.
type Stats struct {
	// Live is the number of allocations not yet freed.
	Live int
	// Bytes is the size of all live allocations.
	Bytes int
	// PeakBytes is the largest Bytes has been.
	PeakBytes int
}

// Table is an alloc.Allocator that tracks its allocations by address.
// A nil *Table is invalid.
type Table struct {
	base    alloc.Allocator
	hdr     alloc.Handle
	blocks  *hashmap.Map
	section *guard.Section

	destroyed bool
}

type Option func(*Table)

// WithContext ties the table to ctx. Once ctx is done the table refuses new
// allocations and reallocations.
func WithContext(ctx context.Context) Option {
	return func(t *Table) {
		t.section = guard.New(ctx)
	}
}

// New creates a table over base. The base allocator must outlive the table.
// If the table's storage cannot be allocated the result is invalid, with Err
// reporting ErrUnavailable.
func New(base alloc.Allocator, opts ...Option) *Table {
	t := &Table{base: base, section: guard.New(nil)}
	for _, o := range opts {
		o(t)
	}

	t.hdr = alloc.AllocateCleared(base, headerSize)
	if !t.hdr.IsValid() {
		return t
	}
	t.blocks = hashmap.New(base)
	if !t.blocks.IsValid() {
		t.hdr = alloc.Free(t.hdr)
	}
	return t
}

// IsValid reports whether t can track allocations.
func (t *Table) IsValid() bool {
	return t != nil && !t.destroyed && t.hdr.IsValid() && t.blocks.IsValid()
}

// Err reports why t refuses work, or nil.
func (t *Table) Err() error {
	switch {
	case t == nil || t.destroyed:
		return ErrDestroyed
	case !t.IsValid():
		return ErrUnavailable
	}
	if err := t.section.Err(); err != nil {
		return xerrors.Errorf("memtbl: %w", err)
	}
	return nil
}

// Len is the number of live allocations.
func (t *Table) Len() int {
	if !t.IsValid() {
		return 0
	}
	return t.blocks.Len()
}

func (t *Table) Stats() Stats {
	var st Stats
	if !t.IsValid() {
		return st
	}
	t.section.Always(func() {
		if hdr := t.header(); hdr != nil {
			st = Stats{Live: int(hdr.live), Bytes: int(hdr.bytes), PeakBytes: int(hdr.peak)}
		}
	})
	return st
}

func (t *Table) Allocate(size int) alloc.Handle {
	if !t.IsValid() || size < 0 {
		return alloc.Handle{}
	}

	var h alloc.Handle
	ok := t.section.Run(func() {
		block := alloc.Allocate(t.base, size)
		if !block.IsValid() {
			return
		}
		if !t.blocks.Set(hashmap.AddrKey(block.Addr()), block) {
			alloc.Free(block)
			return
		}
		t.account(1, size)
		h = alloc.NewHandle(t, block.Addr(), size)
	})
	if !ok {
		Logger().Debug("allocation refused", zap.Int("size", size), zap.Error(t.Err()))
	}
	return h
}

// Reallocate moves h into a new block of size bytes. On failure the original
// allocation is left intact and registered.
func (t *Table) Reallocate(h alloc.Handle, size int) alloc.Handle {
	if !t.IsValid() || size < 0 {
		return alloc.Handle{}
	}

	var out alloc.Handle
	ok := t.section.Run(func() {
		oldKey := hashmap.AddrKey(h.Addr())
		old := t.block(h)
		if !old.IsValid() {
			return
		}
		if size == old.Len() {
			out = h
			return
		}

		block := alloc.Allocate(t.base, size)
		if !block.IsValid() {
			return
		}
		if !t.blocks.Set(hashmap.AddrKey(block.Addr()), block) {
			alloc.Free(block)
			return
		}
		copy(block.Bytes(), old.Bytes())
		t.blocks.Delete(oldKey)
		alloc.Free(old)

		t.account(0, size-old.Len())
		out = alloc.NewHandle(t, block.Addr(), size)
	})
	if !ok {
		Logger().Debug("reallocation refused", zap.Int("size", size), zap.Error(t.Err()))
	}
	return out
}

// Free releases h. It works after the table's context is done.
func (t *Table) Free(h alloc.Handle) alloc.Handle {
	if !t.IsValid() {
		return alloc.Handle{}
	}
	t.section.Always(func() {
		block := t.block(h)
		if !block.IsValid() {
			return
		}
		t.blocks.Delete(hashmap.AddrKey(h.Addr()))
		alloc.Free(block)
		t.account(-1, -block.Len())
	})
	return alloc.Handle{}
}

func (t *Table) Resolve(h alloc.Handle) []byte {
	if !t.IsValid() {
		return nil
	}
	var b []byte
	t.section.Always(func() {
		b = t.block(h).Bytes()
	})
	return b
}

// Destroy frees every allocation still held by t, then t's own storage.
// It is safe to call more than once and runs even when the context is done.
func (t *Table) Destroy() {
	if t == nil || t.destroyed {
		return
	}
	t.section.Always(func() {
		var n, size int
		for block := range t.blocks.Values() {
			n++
			size += block.Len()
			alloc.Free(block)
		}
		t.blocks.Destroy()
		t.hdr = alloc.Free(t.hdr)
		t.destroyed = true

		Logger().Debug("memory table destroyed",
			zap.Int("reclaimed", n),
			zap.String("bytes", humanize.IBytes(uint64(size))))
	})
}

// block returns the base allocation behind h, or the invalid handle when h
// was not granted by t or is stale. The section must be held.
func (t *Table) block(h alloc.Handle) alloc.Handle {
	if h.Allocator() != alloc.Allocator(t) {
		return alloc.Handle{}
	}
	block := t.blocks.Get(hashmap.AddrKey(h.Addr()))
	if block.Len() != h.Len() {
		return alloc.Handle{}
	}
	return block
}

func (t *Table) header() *header {
	b := t.hdr.Bytes()
	if len(b) < headerSize {
		return nil
	}
	return (*header)(unsafe.Pointer(unsafe.SliceData(b)))
}

// account updates the stats header. The section must be held.
func (t *Table) account(live, bytes int) {
	hdr := t.header()
	if hdr == nil {
		return
	}
	hdr.live += int64(live)
	hdr.bytes += int64(bytes)
	if hdr.bytes > hdr.peak {
		hdr.peak = hdr.bytes
	}
	debug.Assert(int(hdr.live) == t.blocks.Len(), "memtbl: live count out of step with the address map")
}

var _ alloc.Allocator = (*Table)(nil)
