// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"sync"
	"time"

	"github.com/AleutianAI/toolchain/services/chain/datatypes"
)

// DefaultResultCacheSize bounds the recall buffer. Models reliably
// recall only the last handful of tool results, so caching more than
// this buys nothing.
const DefaultResultCacheSize = 5

// CachedResult is one remembered tool execution.
type CachedResult struct {
	// Signature is the call's deterministic key.
	Signature string

	// Tool is the tool name.
	Tool string

	// Content is the serialized result as it entered the history.
	Content string

	// ExecutedAt is when the tool ran.
	ExecutedAt time.Time
}

// ResultCache is a bounded ring of the most recent tool results.
//
// Description:
//
//	The cache backs downstream recall queries ("what did that lookup
//	return?") without re-running tools. When full, the oldest entry
//	is evicted. Lookup is by exact call signature.
//
// Thread Safety: ResultCache is safe for concurrent use.
type ResultCache struct {
	mu      sync.Mutex
	entries []CachedResult
	cap     int
}

// NewResultCache creates a cache. size <= 0 selects the default.
func NewResultCache(size int) *ResultCache {
	if size <= 0 {
		size = DefaultResultCacheSize
	}
	return &ResultCache{cap: size}
}

// Record stores one executed call's result, evicting the oldest entry
// when the cache is full.
func (c *ResultCache) Record(call datatypes.ToolCall, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, CachedResult{
		Signature:  call.Signature(),
		Tool:       call.Name,
		Content:    content,
		ExecutedAt: time.Now().UTC(),
	})
	if len(c.entries) > c.cap {
		c.entries = c.entries[len(c.entries)-c.cap:]
	}
}

// Lookup returns the most recent cached result for a call signature.
func (c *ResultCache) Lookup(call datatypes.ToolCall) (CachedResult, bool) {
	sig := call.Signature()

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].Signature == sig {
			return c.entries[i], true
		}
	}
	return CachedResult{}, false
}

// Recent returns the cached results, oldest first.
func (c *ResultCache) Recent() []CachedResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]CachedResult, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of cached entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
