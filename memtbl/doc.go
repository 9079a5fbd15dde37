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

/*
Package memtbl provides an allocator backend that remembers every allocation
it grants, so that a whole batch can be released with one call to Destroy.

A Table is built over a base alloc.Allocator and is itself an
alloc.Allocator, so it can be handed to hashmap.New, to the alloc package
functions, or to another Table:

	tbl := memtbl.New(alloc.DefaultPlain, memtbl.WithContext(ctx))
	defer tbl.Destroy()

	m := hashmap.New(tbl)
	h := alloc.Allocate(tbl, 64)

Every operation that touches both the base allocator and the table's own
bookkeeping runs inside a critical section, so a Destroy triggered by
cancellation never observes a half-registered allocation. Once the table's
context is done, Allocate and Reallocate fail; Free, Resolve and Destroy keep
working.
*/
package memtbl
