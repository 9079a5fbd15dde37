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

package alloc

import (
	"github.com/dansanderson/m65tool/memory"
)

// Allocator is the set of operations a backend provides for its handles.
//
// Implementations must be comparable, and a handle belongs to the allocator
// stored in it: Reallocate, Free and Resolve must reject handles minted by a
// different allocator. None of the methods may panic on allocation failure.
type Allocator interface {
	// Allocate returns a handle to size bytes, or the invalid handle.
	Allocate(size int) Handle
	// Reallocate resizes h, preserving its leading bytes. The result may or
	// may not share h's address; h must not be used afterwards. On failure
	// the invalid handle is returned and h is left untouched.
	Reallocate(h Handle, size int) Handle
	// Free releases h and returns the invalid handle.
	Free(h Handle) Handle
	// Resolve returns the bytes backing h, or nil when h is not live.
	Resolve(h Handle) []byte
}

// Handle refers to a region of memory owned by an Allocator.
// The zero value is the invalid handle.
type Handle struct {
	addr  uintptr
	size  int
	alloc Allocator
}

// NewHandle is used by Allocator implementations to mint handles.
// A nil allocator yields the invalid handle.
func NewHandle(a Allocator, addr uintptr, size int) Handle {
	if a == nil {
		return Handle{}
	}
	return Handle{addr: addr, size: size, alloc: a}
}

// Bytes resolves h. It returns nil for an invalid handle.
func (h Handle) Bytes() []byte {
	if h.alloc == nil {
		return nil
	}
	return h.alloc.Resolve(h)
}

// IsValid reports whether h currently resolves to memory.
func (h Handle) IsValid() bool { return h.Bytes() != nil }

// Len is the size of the region in bytes, as recorded when h was minted.
func (h Handle) Len() int { return h.size }

// Addr is the address recorded in h. It identifies the region and must not
// be converted back into a pointer.
func (h Handle) Addr() uintptr { return h.addr }

// Allocator returns the allocator responsible for h, or nil.
func (h Handle) Allocator() Allocator { return h.alloc }

// Allocate requests size bytes from a. It fails when a is nil.
func Allocate(a Allocator, size int) Handle {
	if a == nil || size < 0 {
		return Handle{}
	}
	return a.Allocate(size)
}

// AllocateCleared is Allocate followed by zeroing the region.
func AllocateCleared(a Allocator, size int) Handle {
	h := Allocate(a, size)
	if b := h.Bytes(); b != nil {
		memory.Set(b, 0)
	}
	return h
}

// Reallocate resizes h through its own allocator. The returned handle
// replaces h.
func Reallocate(h Handle, size int) Handle {
	if h.alloc == nil || size < 0 {
		return Handle{}
	}
	return h.alloc.Reallocate(h, size)
}

// Free releases h through its own allocator and returns the invalid handle,
// meant to overwrite the caller's copy:
//
//	h = alloc.Free(h)
func Free(h Handle) Handle {
	if h.alloc == nil {
		return Handle{}
	}
	return h.alloc.Free(h)
}

// Resolve is h.Bytes().
func Resolve(h Handle) []byte { return h.Bytes() }

// Duplicate copies h into a new region from h's own allocator.
func Duplicate(h Handle) Handle { return DuplicateWith(h.alloc, h) }

// DuplicateWith copies h into a new region obtained from a.
func DuplicateWith(a Allocator, h Handle) Handle {
	src := h.Bytes()
	if src == nil {
		return Handle{}
	}
	dup := Allocate(a, len(src))
	dst := dup.Bytes()
	if dst == nil {
		return Handle{}
	}
	copy(dst, src)
	return dup
}
