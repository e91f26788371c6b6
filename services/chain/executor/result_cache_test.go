// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package executor

import (
	"fmt"
	"testing"

	"github.com/AleutianAI/toolchain/services/chain/datatypes"
)

func TestResultCache_EvictsOldest(t *testing.T) {
	c := NewResultCache(3)

	for i := 0; i < 5; i++ {
		call := callWith("get_order_details", map[string]datatypes.Arg{
			"order_id": datatypes.StringArg(fmt.Sprintf("ord_%d", i)),
		})
		c.Record(call, fmt.Sprintf(`{"n":%d}`, i))
	}

	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}

	// Oldest two evicted, newest three present.
	evicted := callWith("get_order_details", map[string]datatypes.Arg{
		"order_id": datatypes.StringArg("ord_0"),
	})
	if _, ok := c.Lookup(evicted); ok {
		t.Error("ord_0 should have been evicted")
	}
	kept := callWith("get_order_details", map[string]datatypes.Arg{
		"order_id": datatypes.StringArg("ord_4"),
	})
	if got, ok := c.Lookup(kept); !ok || got.Content != `{"n":4}` {
		t.Errorf("Lookup(ord_4) = %+v, %v; want the recorded content", got, ok)
	}
}

func TestResultCache_LookupReturnsMostRecent(t *testing.T) {
	c := NewResultCache(5)
	call := callWith("check_inventory", map[string]datatypes.Arg{
		"product_id": datatypes.StringArg("prod_wireless_kb"),
	})

	c.Record(call, `{"stock":900}`)
	c.Record(call, `{"stock":847}`)

	got, ok := c.Lookup(call)
	if !ok || got.Content != `{"stock":847}` {
		t.Errorf("Lookup = %+v, %v; want the latest recording", got, ok)
	}
}

func TestResultCache_RecentOldestFirst(t *testing.T) {
	c := NewResultCache(0) // default size

	for i := 0; i < 2; i++ {
		c.Record(callWith("t", map[string]datatypes.Arg{
			"i": datatypes.IntArg(i),
		}), fmt.Sprintf("%d", i))
	}

	recent := c.Recent()
	if len(recent) != 2 || recent[0].Content != "0" || recent[1].Content != "1" {
		t.Errorf("Recent = %+v, want oldest first", recent)
	}
}
