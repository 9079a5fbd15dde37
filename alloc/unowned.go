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

import "github.com/dansanderson/m65tool/memory"

// unowned lends a caller's slice to the handle API without taking ownership.
type unowned struct {
	b []byte
}

// FromBytes returns a handle that borrows b. The handle resolves to b for as
// long as the caller keeps b intact. Freeing it is a no-op and it cannot be
// resized; Duplicate it with DuplicateWith to obtain an owned copy.
// FromBytes(nil) is the invalid handle.
func FromBytes(b []byte) Handle {
	if b == nil {
		return Handle{}
	}
	u := &unowned{b: b}
	return NewHandle(u, memory.AddressOf(b), len(b))
}

func (u *unowned) Allocate(int) Handle { return Handle{} }

func (u *unowned) Reallocate(Handle, int) Handle { return Handle{} }

func (u *unowned) Free(Handle) Handle { return Handle{} }

func (u *unowned) Resolve(h Handle) []byte {
	if h.alloc != Allocator(u) {
		return nil
	}
	return u.b
}
