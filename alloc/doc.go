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
Package alloc addresses memory through handles instead of raw pointers.

A Handle records an address, a size and the Allocator responsible for it. The
only sanctioned way to reach the bytes behind a handle is to resolve it through
its allocator, with Handle.Bytes or Resolve. An allocator that no longer knows
the address resolves it to nil, so a freed or failed handle reads exactly like
the zero Handle.

# Failure

Operations never return errors and never panic on allocation failure. They
return the invalid Handle instead, and every operation accepts an invalid
Handle as input and fails again without side effects. Callers check
IsValid after the calls they care about and may otherwise pass handles along:

	h := alloc.Allocate(a, 16)
	h = alloc.Reallocate(h, 32)
	if !h.IsValid() {
		// either step failed
	}

# Backends

Plain passes requests through to a memory.Allocator. FromBytes wraps memory
the package does not own; such handles can be resolved and duplicated but never
freed or resized. The memtbl package provides a third backend that frees a
whole batch of allocations at once.
*/
package alloc
