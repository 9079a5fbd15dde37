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

import "github.com/klauspost/cpuid/v2"

// alignment is the CPU cache line size, so that separate allocations never
// share a line.
var alignment = 64

func init() {
	if cl := cpuid.CPU.CacheLine; cl > 0 && cl&(cl-1) == 0 {
		alignment = cl
	}
}

// GoAllocator allocates cache-line aligned regions from the Go heap. Free is
// a no-op; regions are reclaimed by the garbage collector once unreferenced.
type GoAllocator struct{}

func NewGoAllocator() *GoAllocator { return &GoAllocator{} }

func (a *GoAllocator) Allocate(size int) []byte {
	if size < 0 {
		panic("memory: negative size")
	}
	buf := make([]byte, size+alignment) // padding for alignment
	addr := int(AddressOf(buf))
	if !isMultipleOfPowerOf2(addr, alignment) {
		shift := roundToPowerOf2(addr, alignment) - addr
		return buf[shift : size+shift : size+shift]
	}
	return buf[:size:size]
}

func (a *GoAllocator) Reallocate(size int, b []byte) []byte {
	if size == len(b) {
		return b
	}

	newBuf := a.Allocate(size)
	copy(newBuf, b)
	return newBuf
}

func (a *GoAllocator) Free(b []byte) {}

var _ Allocator = (*GoAllocator)(nil)
