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
	"sync"

	"github.com/dansanderson/m65tool/internal/utils"
	"github.com/dansanderson/m65tool/memory"
	"go.uber.org/zap"
)

// Plain is the allocator backend over a raw memory.Allocator.
//
// Plain keeps every live region reachable from its own table, so regions from
// the garbage collected heap stay put for as long as their handles are live
// and a handle can be resolved from its address alone.
type Plain struct {
	mem memory.Allocator

	mu   sync.Mutex
	live map[uintptr][]byte
}

// DefaultPlain allocates from memory.DefaultAllocator.
var DefaultPlain = NewPlain(memory.DefaultAllocator)

func NewPlain(mem memory.Allocator) *Plain {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Plain{mem: mem, live: make(map[uintptr][]byte)}
}

// Len is the number of live regions.
func (p *Plain) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

func (p *Plain) Allocate(size int) Handle {
	if size < 0 {
		return Handle{}
	}
	var b []byte
	if !p.raw("allocate", size, func() { b = p.mem.Allocate(size) }) || b == nil {
		return Handle{}
	}

	addr := memory.AddressOf(b)
	p.mu.Lock()
	p.live[addr] = b
	p.mu.Unlock()
	return NewHandle(p, addr, size)
}

func (p *Plain) Reallocate(h Handle, size int) Handle {
	if size < 0 {
		return Handle{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.lookup(h)
	if old == nil {
		return Handle{}
	}

	var b []byte
	if !p.raw("reallocate", size, func() { b = p.mem.Reallocate(size, old) }) || b == nil {
		return Handle{}
	}

	addr := memory.AddressOf(b)
	delete(p.live, h.addr)
	p.live[addr] = b
	return NewHandle(p, addr, size)
}

func (p *Plain) Free(h Handle) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.lookup(h)
	if b == nil {
		return Handle{}
	}
	delete(p.live, h.addr)
	p.raw("free", len(b), func() { p.mem.Free(b) })
	return Handle{}
}

func (p *Plain) Resolve(h Handle) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookup(h)
}

// lookup returns the live region for h. A handle left over from before a
// reallocation in place has a stale size and does not resolve.
// p.mu must be held.
func (p *Plain) lookup(h Handle) []byte {
	if h.alloc != Allocator(p) {
		return nil
	}
	b, ok := p.live[h.addr]
	if !ok || len(b) != h.size {
		return nil
	}
	return b
}

// raw runs fn, converting a panic from the raw allocator into a logged
// failure.
func (p *Plain) raw(op string, size int, fn func()) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			err := utils.FormatRecoveredError("alloc: raw "+op+" failed", rec)
			Logger().Warn("raw allocator failure", zap.String("op", op), zap.Int("size", size), zap.Error(err))
			ok = false
		}
	}()
	fn()
	return true
}

var _ Allocator = (*Plain)(nil)
