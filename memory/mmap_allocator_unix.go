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

//go:build unix

package memory

import (
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// MmapAllocator gives every region its own anonymous private mapping. The
// memory lives outside the Go heap until Free unmaps it, which makes it the
// closest match to a C heap that needs no cgo.
//
// Regions are page aligned and zero filled. Slices returned by Allocate and
// Reallocate must be passed back unmodified in capacity.
type MmapAllocator struct {
	pageSize int
}

func NewMmapAllocator() *MmapAllocator {
	return &MmapAllocator{pageSize: unix.Getpagesize()}
}

func (a *MmapAllocator) Allocate(size int) []byte {
	if size < 0 {
		panic("memory: negative size")
	}
	n := roundToPowerOf2(max(size, 1), a.pageSize)
	buf, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(xerrors.Errorf("memory: mmap of %d bytes failed: %w", n, err))
	}
	return buf[:size]
}

func (a *MmapAllocator) Reallocate(size int, b []byte) []byte {
	if size < 0 {
		panic("memory: negative size")
	}
	if size <= cap(b) {
		// bytes past len(b) may hold data from before an earlier shrink
		if size > len(b) {
			Set(b[len(b):size], 0)
		}
		return b[:size]
	}

	newBuf := a.Allocate(size)
	copy(newBuf, b)
	a.Free(b)
	return newBuf
}

func (a *MmapAllocator) Free(b []byte) {
	if cap(b) == 0 {
		return
	}
	_ = unix.Munmap(b[:cap(b)])
}

var _ Allocator = (*MmapAllocator)(nil)
