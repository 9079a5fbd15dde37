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

// Package hashmap implements an open-addressing hash map from byte-string or
// address keys to alloc.Handle values.
//
// The slot table lives in memory obtained from a caller supplied
// alloc.Allocator, so a map can be built over any backend, including a
// memtbl.Table. The map never frees the values it holds: destroying it
// releases only the slot table.
//
// Slots are located by linear probing from the key's 32-bit FNV-1a hash.
// The table starts at 32 slots, doubles before the load factor would exceed
// one half, and halves when fewer than a quarter of the slots are in use.
// Each slot also records a 64-bit key word, the address for address keys and
// the xxh3 hash for byte keys, so two keys whose 32-bit hashes collide still
// occupy separate slots.
package hashmap
