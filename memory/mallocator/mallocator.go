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

//go:build cgo

package mallocator

// #include <stdlib.h>
// #include <string.h>
//
// void* realloc_and_initialize(void* ptr, size_t old_len, size_t new_len) {
//   void* new_ptr = realloc(ptr, new_len);
//   if (new_ptr && new_len > old_len) {
//     memset((char*)new_ptr + old_len, 0, new_len - old_len);
//   }
//   return new_ptr;
// }
import "C"

import (
	"sync/atomic"
	"unsafe"

	"github.com/dansanderson/m65tool/memory"
)

// Mallocator is an allocator which defers to libc malloc. Its regions are
// invisible to the Go garbage collector and stay valid until Free.
type Mallocator struct {
	allocatedBytes uint64
}

func NewMallocator() *Mallocator { return &Mallocator{} }

func (alloc *Mallocator) Allocate(size int) []byte {
	if size < 0 {
		panic("mallocator: negative size")
	}
	// calloc(0) may return NULL, which would make the region indistinguishable
	// from a failed allocation.
	ptr, err := C.calloc(C.size_t(max(size, 1)), 1)
	if err != nil {
		panic(err)
	} else if ptr == nil {
		panic("mallocator: out of memory")
	}
	atomic.AddUint64(&alloc.allocatedBytes, uint64(size))
	return unsafe.Slice((*byte)(ptr), max(size, 1))[:size]
}

func (alloc *Mallocator) Free(b []byte) {
	sz := len(b)
	if cap(b) == 0 {
		return
	}
	C.free(unsafe.Pointer(unsafe.SliceData(b)))
	atomic.AddUint64(&alloc.allocatedBytes, ^uint64(sz-1))
}

func (alloc *Mallocator) Reallocate(size int, b []byte) []byte {
	if size < 0 {
		panic("mallocator: negative size")
	}
	if cap(b) == 0 {
		return alloc.Allocate(size)
	}
	oldSize := len(b)
	ptr, err := C.realloc_and_initialize(unsafe.Pointer(unsafe.SliceData(b)), C.size_t(cap(b)), C.size_t(max(size, 1)))
	if err != nil {
		panic(err)
	} else if ptr == nil {
		panic("mallocator: out of memory")
	}
	if size > oldSize {
		// bytes between the old length and the old capacity may be stale
		memory.Set(unsafe.Slice((*byte)(ptr), size)[oldSize:min(size, cap(b))], 0)
	}
	if size >= oldSize {
		atomic.AddUint64(&alloc.allocatedBytes, uint64(size-oldSize))
	} else {
		atomic.AddUint64(&alloc.allocatedBytes, ^uint64(oldSize-size-1))
	}
	return unsafe.Slice((*byte)(ptr), max(size, 1))[:size]
}

// AllocatedBytes is the number of bytes currently allocated through alloc.
func (alloc *Mallocator) AllocatedBytes() int64 {
	return int64(atomic.LoadUint64(&alloc.allocatedBytes))
}

func (alloc *Mallocator) AssertSize(t memory.TestingT, sz int) {
	cur := alloc.AllocatedBytes()
	if int64(sz) != cur {
		t.Helper()
		t.Errorf("invalid memory size exp=%d, got=%d", sz, cur)
	}
}

var _ memory.Allocator = (*Mallocator)(nil)
