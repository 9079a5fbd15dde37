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

import "github.com/dansanderson/m65tool/alloc"

// owners assigns small ids to the allocators of stored values, so slots can
// live in memory the garbage collector does not scan.
type owners struct {
	ids  map[alloc.Allocator]uint32
	refs []ownerRef
	free []uint32
}

type ownerRef struct {
	alloc alloc.Allocator
	n     int
}

func (o *owners) acquire(a alloc.Allocator) uint32 {
	if id, ok := o.ids[a]; ok {
		o.refs[id].n++
		return id
	}
	if o.ids == nil {
		o.ids = make(map[alloc.Allocator]uint32)
	}

	var id uint32
	if n := len(o.free); n > 0 {
		id = o.free[n-1]
		o.free = o.free[:n-1]
		o.refs[id] = ownerRef{alloc: a, n: 1}
	} else {
		id = uint32(len(o.refs))
		o.refs = append(o.refs, ownerRef{alloc: a, n: 1})
	}
	o.ids[a] = id
	return id
}

func (o *owners) release(id uint32) {
	ref := &o.refs[id]
	ref.n--
	if ref.n > 0 {
		return
	}
	delete(o.ids, ref.alloc)
	ref.alloc = nil
	o.free = append(o.free, id)
}

func (o *owners) get(id uint32) alloc.Allocator { return o.refs[id].alloc }

// len is the number of distinct allocators referenced.
func (o *owners) len() int { return len(o.ids) }

func (o *owners) reset() { *o = owners{} }
