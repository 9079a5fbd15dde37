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

package memtbl_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/dansanderson/m65tool/alloc"
	"github.com/dansanderson/m65tool/hashmap"
	"github.com/dansanderson/m65tool/memory"
	"github.com/dansanderson/m65tool/memtbl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/xerrors"
)

func newPlain(t *testing.T) (*alloc.Plain, *memory.CheckedAllocator) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	t.Cleanup(func() { mem.AssertSize(t, 0) })
	return alloc.NewPlain(mem), mem
}

func TestNew(t *testing.T) {
	plain, _ := newPlain(t)
	tbl := memtbl.New(plain)
	require.True(t, tbl.IsValid())
	assert.NoError(t, tbl.Err())
	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, memtbl.Stats{}, tbl.Stats())

	tbl.Destroy()
	assert.False(t, tbl.IsValid())
	assert.ErrorIs(t, tbl.Err(), memtbl.ErrDestroyed)
	assert.Equal(t, 0, plain.Len())
}

func TestNewWithoutBase(t *testing.T) {
	tbl := memtbl.New(nil)
	assert.False(t, tbl.IsValid())
	assert.ErrorIs(t, tbl.Err(), memtbl.ErrUnavailable)
	assert.False(t, alloc.Allocate(tbl, 8).IsValid())
	tbl.Destroy()
}

func TestNilTable(t *testing.T) {
	var tbl *memtbl.Table
	assert.False(t, tbl.IsValid())
	assert.ErrorIs(t, tbl.Err(), memtbl.ErrDestroyed)
	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, memtbl.Stats{}, tbl.Stats())
	assert.False(t, tbl.Allocate(8).IsValid())
	assert.Nil(t, tbl.Resolve(alloc.Handle{}))
	tbl.Destroy()
}

func TestAllocateResolveFree(t *testing.T) {
	plain, _ := newPlain(t)
	tbl := memtbl.New(plain)
	defer tbl.Destroy()

	for _, size := range []int{0, 1, 10, 100, 4096} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			h := alloc.Allocate(tbl, size)
			require.True(t, h.IsValid())
			assert.Len(t, h.Bytes(), size)
			assert.Same(t, tbl, h.Allocator())
			assert.Equal(t, 1, tbl.Len())

			h = alloc.Free(h)
			assert.Nil(t, alloc.Resolve(h))
			assert.Equal(t, 0, tbl.Len())
		})
	}
	assert.False(t, tbl.Allocate(-1).IsValid())
}

func TestDestroyReclaimsEverything(t *testing.T) {
	plain, mem := newPlain(t)
	tbl := memtbl.New(plain)

	const n = 100
	handles := make([]alloc.Handle, n)
	for i := range handles {
		handles[i] = alloc.Allocate(tbl, i+1)
		require.True(t, handles[i].IsValid())
	}
	for i := 0; i < n; i += 3 {
		handles[i] = alloc.Free(handles[i])
	}
	assert.Equal(t, n-34, tbl.Len())
	assert.Less(t, 0, mem.CurrentAlloc())

	tbl.Destroy()
	assert.Equal(t, 0, plain.Len())
	for _, h := range handles {
		assert.False(t, h.IsValid())
	}
	tbl.Destroy()
}

func TestFreeForeignHandle(t *testing.T) {
	plain, _ := newPlain(t)
	tbl := memtbl.New(plain)
	defer tbl.Destroy()

	h := alloc.Allocate(plain, 8)
	require.True(t, h.IsValid())
	assert.Nil(t, tbl.Resolve(h))
	tbl.Free(h)
	assert.True(t, h.IsValid())
	alloc.Free(h)

	other := memtbl.New(plain)
	defer other.Destroy()
	h = alloc.Allocate(other, 8)
	assert.Nil(t, tbl.Resolve(h))
	assert.False(t, tbl.Reallocate(h, 16).IsValid())
	assert.True(t, h.IsValid())
}

func TestReallocate(t *testing.T) {
	plain, _ := newPlain(t)
	tbl := memtbl.New(plain)
	defer tbl.Destroy()

	h := alloc.Allocate(tbl, 10)
	require.True(t, h.IsValid())
	copy(h.Bytes(), "0123456789")

	h2 := alloc.Reallocate(h, 20)
	require.True(t, h2.IsValid())
	assert.NotEqual(t, h.Addr(), h2.Addr())
	assert.False(t, h.IsValid())
	assert.Equal(t, []byte("0123456789"), h2.Bytes()[:10])
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, memtbl.Stats{Live: 1, Bytes: 20, PeakBytes: 20}, tbl.Stats())

	h3 := alloc.Reallocate(h2, 4)
	require.True(t, h3.IsValid())
	assert.Equal(t, []byte("0123"), h3.Bytes())
	assert.Equal(t, memtbl.Stats{Live: 1, Bytes: 4, PeakBytes: 20}, tbl.Stats())

	same := alloc.Reallocate(h3, 4)
	assert.Equal(t, h3, same)

	alloc.Free(same)
	assert.Nil(t, alloc.Resolve(same))
	assert.Equal(t, 0, tbl.Len())
}

func TestAllocateCleared(t *testing.T) {
	plain, _ := newPlain(t)
	tbl := memtbl.New(plain)
	defer tbl.Destroy()

	h := alloc.Allocate(tbl, 64)
	memory.Set(h.Bytes(), 0xFF)
	alloc.Free(h)

	h = alloc.AllocateCleared(tbl, 64)
	require.True(t, h.IsValid())
	assert.Equal(t, make([]byte, 64), h.Bytes())
}

func TestStats(t *testing.T) {
	plain, _ := newPlain(t)
	tbl := memtbl.New(plain)
	defer tbl.Destroy()

	a := alloc.Allocate(tbl, 100)
	b := alloc.Allocate(tbl, 50)
	assert.Equal(t, memtbl.Stats{Live: 2, Bytes: 150, PeakBytes: 150}, tbl.Stats())

	alloc.Free(a)
	assert.Equal(t, memtbl.Stats{Live: 1, Bytes: 50, PeakBytes: 150}, tbl.Stats())
	alloc.Free(b)
	assert.Equal(t, memtbl.Stats{Live: 0, Bytes: 0, PeakBytes: 150}, tbl.Stats())
}

func TestDuplicate(t *testing.T) {
	plain, _ := newPlain(t)
	tbl := memtbl.New(plain)
	defer tbl.Destroy()

	src := alloc.FromBytes([]byte("payload"))
	h := alloc.DuplicateWith(tbl, src)
	require.True(t, h.IsValid())
	assert.Equal(t, []byte("payload"), h.Bytes())

	dup := alloc.Duplicate(h)
	require.True(t, dup.IsValid())
	assert.Same(t, tbl, dup.Allocator())
	assert.Equal(t, h.Bytes(), dup.Bytes())
	assert.NotEqual(t, h.Addr(), dup.Addr())
	assert.Equal(t, 2, tbl.Len())
}

func TestNested(t *testing.T) {
	plain, _ := newPlain(t)
	outer := memtbl.New(plain)
	inner := memtbl.New(outer)
	require.True(t, inner.IsValid())

	h := alloc.Allocate(inner, 32)
	require.True(t, h.IsValid())
	copy(h.Bytes(), "nested")
	// block, header and slot table of inner, plus the block behind h
	assert.Equal(t, 3, outer.Len())
	assert.Equal(t, 1, inner.Len())

	inner.Destroy()
	assert.Equal(t, 0, outer.Len())

	inner = memtbl.New(outer)
	h = alloc.Allocate(inner, 32)
	require.True(t, h.IsValid())

	outer.Destroy()
	assert.False(t, inner.IsValid())
	assert.False(t, h.IsValid())
	assert.False(t, alloc.Allocate(inner, 8).IsValid())
	assert.ErrorIs(t, inner.Err(), memtbl.ErrUnavailable)
	inner.Destroy()
	assert.Equal(t, 0, plain.Len())
}

func TestMapOverTable(t *testing.T) {
	plain, _ := newPlain(t)
	tbl := memtbl.New(plain)

	m := hashmap.New(tbl)
	require.True(t, m.IsValid())
	for i := 0; i < 100; i++ {
		v := alloc.Allocate(tbl, 8)
		require.True(t, m.Set(hashmap.StringKey(fmt.Sprint(i)), v))
	}
	assert.Equal(t, 256, m.Cap())
	assert.Equal(t, 101, tbl.Len())

	// the map's slot table and every value go with the table
	tbl.Destroy()
	assert.False(t, m.IsValid())
	assert.Equal(t, 0, plain.Len())
}

func TestCancel(t *testing.T) {
	plain, _ := newPlain(t)
	ctx, cancel := context.WithCancel(context.Background())
	tbl := memtbl.New(plain, memtbl.WithContext(ctx))
	defer tbl.Destroy()

	h := alloc.Allocate(tbl, 16)
	require.True(t, h.IsValid())
	kept := alloc.Allocate(tbl, 4)
	require.True(t, kept.IsValid())

	cancel()
	assert.True(t, tbl.IsValid())
	err := tbl.Err()
	assert.ErrorIs(t, err, context.Canceled)
	var wrapped xerrors.Wrapper
	assert.True(t, xerrors.As(err, &wrapped))

	assert.False(t, alloc.Allocate(tbl, 8).IsValid())
	assert.False(t, alloc.Reallocate(h, 32).IsValid())
	// the original survives a refused reallocation
	assert.True(t, h.IsValid())

	h = alloc.Free(h)
	assert.Equal(t, 1, tbl.Len())
	assert.True(t, kept.IsValid())

	tbl.Destroy()
	assert.False(t, kept.IsValid())
	assert.Equal(t, 0, plain.Len())
}

func TestDestroyLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := memtbl.Logger()
	memtbl.SetLogger(zap.New(core))
	defer memtbl.SetLogger(prev)

	plain, _ := newPlain(t)
	tbl := memtbl.New(plain)
	alloc.Allocate(tbl, 1000)
	alloc.Allocate(tbl, 24)
	tbl.Destroy()

	entries := logs.FilterMessage("memory table destroyed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 2, fields["reclaimed"])
	assert.Equal(t, "1.0 KiB", fields["bytes"])
}

// failAfter hands out count allocations, then fails.
type failAfter struct {
	*alloc.Plain
	count int
}

func (f *failAfter) Allocate(size int) alloc.Handle {
	if f.count == 0 {
		return alloc.Handle{}
	}
	f.count--
	return f.Plain.Allocate(size)
}

func TestBaseFailure(t *testing.T) {
	plain, _ := newPlain(t)

	base := &failAfter{Plain: plain, count: 1}
	tbl := memtbl.New(base)
	assert.False(t, tbl.IsValid())
	assert.ErrorIs(t, tbl.Err(), memtbl.ErrUnavailable)
	assert.Equal(t, 0, plain.Len())

	base.count = 3
	tbl = memtbl.New(base)
	require.True(t, tbl.IsValid())
	defer tbl.Destroy()

	h := alloc.Allocate(tbl, 8)
	require.True(t, h.IsValid())
	copy(h.Bytes(), "original")

	assert.False(t, alloc.Allocate(tbl, 8).IsValid())
	assert.False(t, alloc.Reallocate(h, 16).IsValid())
	assert.Equal(t, []byte("original"), h.Bytes())
	assert.Equal(t, 1, tbl.Len())
}
