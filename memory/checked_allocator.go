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

package memory

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// CheckedAllocator wraps an Allocator and accounts for every byte that passes
// through it, remembering where each live region was allocated so leaks can be
// reported by AssertSize.
type CheckedAllocator struct {
	mem Allocator
	sz  int64

	allocs sync.Map
}

func NewCheckedAllocator(mem Allocator) *CheckedAllocator {
	return &CheckedAllocator{mem: mem}
}

// CurrentAlloc is the number of bytes allocated and not yet freed.
func (a *CheckedAllocator) CurrentAlloc() int { return int(atomic.LoadInt64(&a.sz)) }

func (a *CheckedAllocator) Allocate(size int) []byte {
	out := a.mem.Allocate(size)
	atomic.AddInt64(&a.sz, int64(size))
	if size == 0 {
		return out
	}

	if pc, _, l, ok := runtime.Caller(allocFrames); ok {
		a.allocs.Store(AddressOf(out), &dalloc{pc: pc, line: l, sz: size})
	}
	return out
}

func (a *CheckedAllocator) Reallocate(size int, b []byte) []byte {
	oldptr := AddressOf(b)
	out := a.mem.Reallocate(size, b)
	atomic.AddInt64(&a.sz, int64(size-len(b)))

	a.allocs.Delete(oldptr)
	if size == 0 {
		return out
	}

	if pc, _, l, ok := runtime.Caller(reallocFrames); ok {
		a.allocs.Store(AddressOf(out), &dalloc{pc: pc, line: l, sz: size})
	}
	return out
}

func (a *CheckedAllocator) Free(b []byte) {
	atomic.AddInt64(&a.sz, int64(len(b)*-1))
	defer a.mem.Free(b)

	if len(b) == 0 {
		return
	}

	a.allocs.Delete(AddressOf(b))
}

// allocations normally arrive through alloc.Plain on behalf of a package level
// alloc function, so skip those frames to find the caller that asked for memory.
const (
	defAllocFrames   = 3
	defReallocFrames = 3
)

// Use the environment variables M65_CHECKED_ALLOC_FRAMES and M65_CHECKED_REALLOC_FRAMES
// to control how many frames up it checks when storing the caller for allocations/reallocs
// when using this to find memory leaks.
var allocFrames, reallocFrames int = defAllocFrames, defReallocFrames

func init() {
	if val, ok := os.LookupEnv("M65_CHECKED_ALLOC_FRAMES"); ok {
		if f, err := strconv.Atoi(val); err == nil {
			allocFrames = f
		}
	}

	if val, ok := os.LookupEnv("M65_CHECKED_REALLOC_FRAMES"); ok {
		if f, err := strconv.Atoi(val); err == nil {
			reallocFrames = f
		}
	}
}

type dalloc struct {
	pc   uintptr
	line int
	sz   int
}

type TestingT interface {
	Errorf(format string, args ...interface{})
	Helper()
}

// AssertSize reports every live region as a leak and fails t when the
// accounted size differs from sz.
func (a *CheckedAllocator) AssertSize(t TestingT, sz int) {
	t.Helper()
	if sz == 0 {
		a.allocs.Range(func(_, value interface{}) bool {
			info := value.(*dalloc)
			f := runtime.FuncForPC(info.pc)
			t.Errorf("LEAK of %d bytes FROM %s line %d\n", info.sz, f.Name(), info.line)
			return true
		})
	}

	if cur := int(atomic.LoadInt64(&a.sz)); cur != sz {
		t.Errorf("invalid memory size exp=%d, got=%d", sz, cur)
	}
}

type CheckedAllocatorScope struct {
	alloc *CheckedAllocator
	sz    int
}

func NewCheckedAllocatorScope(alloc *CheckedAllocator) *CheckedAllocatorScope {
	sz := atomic.LoadInt64(&alloc.sz)
	return &CheckedAllocatorScope{alloc: alloc, sz: int(sz)}
}

func (c *CheckedAllocatorScope) CheckSize(t TestingT) {
	sz := int(atomic.LoadInt64(&c.alloc.sz))
	if c.sz != sz {
		t.Helper()
		t.Errorf("invalid memory size exp=%d, got=%d", c.sz, sz)
	}
}

var (
	_ Allocator = (*CheckedAllocator)(nil)
)
