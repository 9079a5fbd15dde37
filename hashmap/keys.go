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

package hashmap

import (
	"unsafe"

	"github.com/zeebo/xxh3"
)

type keyKind byte

const (
	kindBytes keyKind = iota
	kindAddr
)

// 32-bit FNV-1a parameters.
const (
	offset32 = 2166136261
	prime32  = 16777619
)

// Key identifies an entry. Byte keys compare by contents, address keys by
// identity.
type Key struct {
	kind keyKind
	data []byte
	addr uintptr
}

// BytesKey keys an entry by the contents of b. The map does not retain b.
func BytesKey(b []byte) Key { return Key{kind: kindBytes, data: b} }

// StringKey keys an entry by the contents of s, same as BytesKey([]byte(s)).
func StringKey(s string) Key {
	return Key{kind: kindBytes, data: unsafe.Slice(unsafe.StringData(s), len(s))}
}

// AddrKey keys an entry by an address, compared by value only.
func AddrKey(addr uintptr) Key { return Key{kind: kindAddr, addr: addr} }

// hash is FNV-1a over the kind byte followed by the key bytes, addresses
// taken little-endian at pointer width. 0 marks an empty slot and is never
// returned.
func (k Key) hash() uint32 {
	h := uint32(offset32)
	h ^= uint32(k.kind)
	h *= prime32
	if k.kind == kindAddr {
		for i := 0; i < int(unsafe.Sizeof(k.addr)); i++ {
			h ^= uint32(byte(k.addr >> (8 * i)))
			h *= prime32
		}
	} else {
		for _, c := range k.data {
			h ^= uint32(c)
			h *= prime32
		}
	}
	if h == 0 {
		h = 1
	}
	return h
}

// word distinguishes keys whose hashes collide.
func (k Key) word() uint64 {
	if k.kind == kindAddr {
		return uint64(k.addr)
	}
	return xxh3.Hash(k.data)
}
