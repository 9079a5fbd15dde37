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

//go:build unix

package alloc_test

import (
	"testing"

	"github.com/dansanderson/m65tool/alloc"
	"github.com/dansanderson/m65tool/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainInPlaceReallocate(t *testing.T) {
	p := alloc.NewPlain(memory.NewMmapAllocator())

	h := alloc.Allocate(p, 64)
	require.True(t, h.IsValid())

	shrunk := alloc.Reallocate(h, 16)
	require.True(t, shrunk.IsValid())
	assert.Equal(t, h.Addr(), shrunk.Addr())
	assert.False(t, h.IsValid())

	// an in-place regrow to the old size makes the old handle resolve again,
	// so callers must not rely on old handles going invalid
	regrown := alloc.Reallocate(shrunk, 64)
	require.True(t, regrown.IsValid())
	assert.Equal(t, h.Addr(), regrown.Addr())
	assert.False(t, shrunk.IsValid())
	assert.True(t, h.IsValid())

	alloc.Free(regrown)
	assert.False(t, h.IsValid())
	assert.Equal(t, 0, p.Len())
}
