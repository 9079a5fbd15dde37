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

import "os"

// Allocator hands out raw byte regions. It is the host allocator underneath
// the handle layer in package alloc; implementations panic on negative sizes
// or when the system cannot satisfy a request.
type Allocator interface {
	Allocate(size int) []byte
	Reallocate(size int, b []byte) []byte
	Free(b []byte)
}

// DefaultAllocator is a default implementation of Allocator and can be used anywhere
// an Allocator is required.
//
// Set M65_DEFAULT_ALLOCATOR=mmap to back it with anonymous memory mappings
// instead of the Go heap.
//
// DefaultAllocator is safe to use from multiple goroutines.
var DefaultAllocator Allocator = NewGoAllocator()

func init() {
	if val, ok := os.LookupEnv("M65_DEFAULT_ALLOCATOR"); ok && val == "mmap" {
		DefaultAllocator = NewMmapAllocator()
	}
}
