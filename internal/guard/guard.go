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

// Package guard provides the critical section used by allocators whose
// mutations touch more than one piece of state. A section never observes
// cancellation part way through: the context is checked on entry only, and
// the section is always released on exit, including when fn panics.
package guard

import (
	"context"
	"os"
	"os/signal"
	"sync"
)

// Section is a critical section tied to a cancellation context.
// The zero value is usable and never cancelled.
type Section struct {
	mu  sync.Mutex
	ctx context.Context
}

// New returns a section whose Run refuses work once ctx is done.
// A nil ctx behaves like context.Background.
func New(ctx context.Context) *Section {
	return &Section{ctx: ctx}
}

// Done reports whether the section's context has been cancelled.
func (s *Section) Done() bool {
	if s.ctx == nil {
		return false
	}
	return s.ctx.Err() != nil
}

// Err returns the context's error, or nil while it is live.
func (s *Section) Err() error {
	if s.ctx == nil {
		return nil
	}
	return s.ctx.Err()
}

// Run executes fn inside the section unless the context is already done,
// in which case fn is not called and Run returns false.
func (s *Section) Run(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Done() {
		return false
	}
	fn()
	return true
}

// Always executes fn inside the section regardless of cancellation.
// It is meant for cleanup paths such as releasing a batch of allocations.
func (s *Section) Always(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// NotifyInterrupt returns a context that is cancelled when the process
// receives an interrupt. Call stop to restore default signal handling.
func NotifyInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}
