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
	"fmt"
	"iter"
	"unsafe"

	"github.com/JohnCGriffin/overflow"
	"github.com/dansanderson/m65tool/alloc"
	"github.com/dansanderson/m65tool/internal/debug"
	"go.uber.org/zap"
)

// MinSize is the initial and smallest slot table size.
const MinSize = 32

// slot holds no Go pointers; the value's allocator is stored as an id into
// the map's owners.
type slot struct {
	hash  uint32
	owner uint32
	key   uint64
	addr  uintptr
	size  int
}

const slotSize = int(unsafe.Sizeof(slot{}))

// Map is an open-addressing hash map from Key to alloc.Handle.
//
// A nil *Map is invalid; every method on it fails without effect. Map is not
// safe for concurrent use.
type Map struct {
	alloc   alloc.Allocator
	entries alloc.Handle
	count   int
	size    int
	owners  owners
}

// New creates a map whose slot table is allocated from a. It returns nil if
// the table cannot be allocated.
func New(a alloc.Allocator) *Map {
	entries := alloc.AllocateCleared(a, MinSize*slotSize)
	if !entries.IsValid() {
		return nil
	}
	return &Map{alloc: a, entries: entries, size: MinSize}
}

// IsValid reports whether m has a slot table.
func (m *Map) IsValid() bool {
	return m != nil && m.entries.IsValid()
}

// Len is the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return m.count
}

// Cap is the number of slots in the table.
func (m *Map) Cap() int {
	if m == nil {
		return 0
	}
	return m.size
}

// Set maps k to v, replacing any previous value. It returns false, leaving m
// unchanged, if v is invalid or the table needs to grow and cannot.
func (m *Map) Set(k Key, v alloc.Handle) bool {
	if !m.IsValid() || !v.IsValid() {
		return false
	}
	h, w := k.hash(), k.word()
	slots := m.slots()
	i := find(slots, h, w)
	if slots[i].hash == 0 {
		if m.count+1 > m.size/2 {
			if !m.resize(m.size * 2) {
				return false
			}
			slots = m.slots()
			i = find(slots, h, w)
		}
		m.count++
	} else {
		defer m.owners.release(slots[i].owner)
	}

	slots[i] = slot{
		hash:  h,
		owner: m.owners.acquire(v.Allocator()),
		key:   w,
		addr:  v.Addr(),
		size:  v.Len(),
	}
	debug.Assert(m.count <= m.size/2, "hashmap: load factor above one half")
	return true
}

// Get returns the value for k, or the invalid handle.
func (m *Map) Get(k Key) alloc.Handle {
	if !m.IsValid() {
		return alloc.Handle{}
	}
	slots := m.slots()
	i := find(slots, k.hash(), k.word())
	if slots[i].hash == 0 {
		return alloc.Handle{}
	}
	return m.value(&slots[i])
}

// Delete removes k. It reports whether k was present. The table shrinks when
// fewer than a quarter of its slots remain in use; if that fails the entry is
// still removed.
func (m *Map) Delete(k Key) bool {
	if !m.IsValid() {
		return false
	}
	slots := m.slots()
	i := find(slots, k.hash(), k.word())
	if slots[i].hash == 0 {
		return false
	}
	m.owners.release(slots[i].owner)
	remove(slots, i)
	m.count--

	if m.count < m.size/4 && m.size > MinSize {
		m.resize(m.size / 2)
	}
	return true
}

// Values yields the value of every entry in table order. m must not be
// modified during iteration.
func (m *Map) Values() iter.Seq[alloc.Handle] {
	return func(yield func(alloc.Handle) bool) {
		if !m.IsValid() {
			return
		}
		slots := m.slots()
		for i := range slots {
			if slots[i].hash == 0 {
				continue
			}
			if !yield(m.value(&slots[i])) {
				return
			}
		}
	}
}

// Destroy releases the slot table. The values are not freed. m is invalid
// afterwards.
func (m *Map) Destroy() {
	if m == nil {
		return
	}
	m.entries = alloc.Free(m.entries)
	m.count, m.size = 0, 0
	m.owners.reset()
}

func (m *Map) String() string {
	if m == nil {
		return "hashmap.Map(nil)"
	}
	return fmt.Sprintf("hashmap.Map{len=%d, cap=%d, owners=%d}", m.Len(), m.Cap(), m.owners.len())
}

func (m *Map) value(s *slot) alloc.Handle {
	return alloc.NewHandle(m.owners.get(s.owner), s.addr, s.size)
}

func (m *Map) slots() []slot {
	return castSlots(m.entries.Bytes(), m.size)
}

func castSlots(b []byte, n int) []slot {
	if b == nil || len(b) < n*slotSize {
		return nil
	}
	return unsafe.Slice((*slot)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// resize moves every entry into a fresh table of n slots.
func (m *Map) resize(n int) bool {
	var (
		entries alloc.Handle
		fresh   []slot
	)
	if nbytes, ok := overflow.Mul(n, slotSize); ok {
		entries = alloc.AllocateCleared(m.alloc, nbytes)
		fresh = castSlots(entries.Bytes(), n)
	}
	if fresh == nil {
		Logger().Warn("slot table resize failed",
			zap.Int("size", m.size), zap.Int("wanted", n), zap.Int("len", m.count))
		return false
	}

	mask := uint32(n - 1)
	for _, s := range m.slots() {
		if s.hash == 0 {
			continue
		}
		// entries are distinct, so the first empty slot is the right one
		j := s.hash & mask
		for fresh[j].hash != 0 {
			j = (j + 1) & mask
		}
		fresh[j] = s
	}

	debug.Log(func() string {
		return fmt.Sprintf("hashmap: resized %d -> %d slots with %d entries", m.size, n, m.count)
	})
	alloc.Free(m.entries)
	m.entries, m.size = entries, n
	return true
}

// find returns the index of the slot holding (h, w), or of the empty slot
// where it would be inserted.
func find(slots []slot, h uint32, w uint64) int {
	mask := uint32(len(slots) - 1)
	start := h & mask
	for i := start; ; {
		s := &slots[i]
		if s.hash == 0 || (s.hash == h && s.key == w) {
			return int(i)
		}
		i = (i + 1) & mask
		if i == start {
			panic(fmt.Sprintf("hashmap: probe for hash %#08x wrapped a full table of %d slots", h, len(slots)))
		}
	}
}

// remove empties slot i, shifting later members of its probe run back so
// every remaining entry stays reachable from its home slot.
func remove(slots []slot, i int) {
	mask := len(slots) - 1
	for j := i; ; {
		j = (j + 1) & mask
		if slots[j].hash == 0 {
			break
		}
		home := int(slots[j].hash) & mask
		// slot j may fill the hole at i unless its home lies cyclically in (i, j]
		var inRange bool
		if i <= j {
			inRange = i < home && home <= j
		} else {
			inRange = i < home || home <= j
		}
		if !inRange {
			slots[i] = slots[j]
			i = j
		}
	}
	slots[i] = slot{}
}
