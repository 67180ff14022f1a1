// Copyright 2026 The Classdeck Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

// TestPurpose: Validates per-IP limiter reuse and burst enforcement.
// Scope: Unit Test
// Expected: The same IP gets the same limiter; requests beyond the burst are denied.
// Test Case ID: RTL-01
func TestRateLimiter_GetLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Close()

	first := rl.GetLimiter("10.0.0.1")
	assert.Same(t, first, rl.GetLimiter("10.0.0.1"))
	assert.NotSame(t, first, rl.GetLimiter("10.0.0.2"))

	assert.True(t, first.Allow())
	assert.True(t, first.Allow())
	assert.False(t, first.Allow())
}

// TestPurpose: Validates that Close stops the background cleanup loop.
// Scope: Unit Test
// Expected: Before Close the cleanup ticker resets the IP map; after Close
// entries survive past the cleanup interval, and a second Close is a no-op.
// Test Case ID: RTL-02
func TestRateLimiter_Close(t *testing.T) {
	rl := &RateLimiter{
		ips:             make(map[string]*rate.Limiter),
		rps:             rate.Limit(100),
		burst:           100,
		cleanupInterval: 20 * time.Millisecond,
		done:            make(chan struct{}),
	}
	go rl.cleanup()

	rl.GetLimiter("10.0.0.1")
	assert.Eventually(t, func() bool {
		rl.mu.RLock()
		defer rl.mu.RUnlock()
		return len(rl.ips) == 0
	}, 2*time.Second, 5*time.Millisecond)

	rl.Close()
	// Let a tick that raced the close drain before repopulating.
	time.Sleep(50 * time.Millisecond)
	rl.GetLimiter("10.0.0.2")
	assert.Never(t, func() bool {
		rl.mu.RLock()
		defer rl.mu.RUnlock()
		return len(rl.ips) == 0
	}, 100*time.Millisecond, 5*time.Millisecond)

	assert.NotPanics(t, rl.Close)
}
