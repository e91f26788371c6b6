// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Arg is a single parsed tool-call argument value.
//
// Description:
//
//	The marker wire syntax only carries quoted strings and bare
//	integers, so Arg is a small tagged value rather than an any.
//	A missing or unquoted value parses as the empty string Arg.
type Arg struct {
	// Text is the string value (empty when Numeric).
	Text string

	// Number is the integer value (valid only when Numeric).
	Number int

	// Numeric is true when the argument was a bare integer literal.
	Numeric bool
}

// StringArg creates a string-valued argument.
func StringArg(s string) Arg {
	return Arg{Text: s}
}

// IntArg creates an integer-valued argument.
func IntArg(n int) Arg {
	return Arg{Number: n, Numeric: true}
}

// String returns the argument rendered as a string.
func (a Arg) String() string {
	if a.Numeric {
		return strconv.Itoa(a.Number)
	}
	return a.Text
}

// Int returns the argument as an integer with a fallback default.
//
// Description:
//
//	Numeric args return their value directly. String args are parsed
//	as a convenience for models that quote numbers; anything else
//	returns the provided default.
func (a Arg) Int(def int) int {
	if a.Numeric {
		return a.Number
	}
	if n, err := strconv.Atoi(strings.TrimSpace(a.Text)); err == nil {
		return n
	}
	return def
}

// ToolCall is one structured tool invocation parsed from model output.
//
// Thread Safety: ToolCall is immutable once created; safe for
// concurrent read access.
type ToolCall struct {
	// Name is the invoked tool's name.
	Name string

	// Args maps argument names to parsed values.
	Args map[string]Arg

	// Raw is the literal call substring as it appeared in the
	// response, preserved for history and summaries.
	Raw string
}

// Arg returns the named argument and whether it was present.
func (c ToolCall) Arg(name string) (Arg, bool) {
	a, ok := c.Args[name]
	return a, ok
}

// StringArg returns the named argument as a string, or "" if absent.
func (c ToolCall) StringArg(name string) string {
	return c.Args[name].String()
}

// IntArg returns the named argument as an int with a default.
func (c ToolCall) IntArg(name string, def int) int {
	a, ok := c.Args[name]
	if !ok {
		return def
	}
	return a.Int(def)
}

// Signature returns the deterministic duplicate-filter key for a call.
//
// Description:
//
//	The signature is the tool name followed by the arguments as a
//	sorted-key JSON object, matching one call regardless of the order
//	arguments appeared on the wire. Used only by the per-turn
//	duplicate filter.
//
// Outputs:
//
//	string - e.g. `lookup_user({"email":"a@b.c"})`.
func (c ToolCall) Signature() string {
	keys := make([]string, 0, len(c.Args))
	for k := range c.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString("({")
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(c.Args[k].String())
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteString("})")
	return b.String()
}
