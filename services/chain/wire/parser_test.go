// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package wire

import (
	"testing"
)

func TestParseCalls_RoundTrip(t *testing.T) {
	content := `<|tool_call_start|>[get_weather(city="Paris")]<|tool_call_end|>`

	calls := ParseCalls(content)

	if len(calls) != 1 {
		t.Fatalf("len(calls) = %d, want 1", len(calls))
	}
	if calls[0].Name != "get_weather" {
		t.Errorf("Name = %q, want %q", calls[0].Name, "get_weather")
	}
	if got := calls[0].StringArg("city"); got != "Paris" {
		t.Errorf("city = %q, want %q", got, "Paris")
	}
}

func TestParseCalls_NoMarker(t *testing.T) {
	calls := ParseCalls("The user Sarah Chen has two delivered orders.")
	if len(calls) != 0 {
		t.Errorf("len(calls) = %d, want 0 for plain text", len(calls))
	}
}

func TestParseCalls_MissingEndMarker(t *testing.T) {
	calls := ParseCalls(`<|tool_call_start|>[lookup_user(email="a@b.c")]`)
	if len(calls) != 0 {
		t.Errorf("len(calls) = %d, want 0 when end marker is absent", len(calls))
	}
}

func TestParseCalls_EmptyCallList(t *testing.T) {
	calls := ParseCalls(`<|tool_call_start|>[]<|tool_call_end|>`)
	if len(calls) != 0 {
		t.Errorf("len(calls) = %d, want 0 for empty bracket pair", len(calls))
	}
}

func TestParseCalls_MultipleCalls(t *testing.T) {
	content := `Let me check both.
<|tool_call_start|> [ lookup_user(email="sarah.chen@techcorp.com"), get_user_orders(user_id="usr_8k2m9p4") ] <|tool_call_end|>`

	calls := ParseCalls(content)

	if len(calls) != 2 {
		t.Fatalf("len(calls) = %d, want 2", len(calls))
	}
	if calls[0].Name != "lookup_user" || calls[1].Name != "get_user_orders" {
		t.Errorf("names = %q, %q; wire order must be preserved", calls[0].Name, calls[1].Name)
	}
}

func TestParseCalls_ArgumentForms(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
		want    string
		wantInt int
		numeric bool
	}{
		{
			name:    "double quoted",
			content: WrapCalls(`brave_search(query="quantum computing")`),
			key:     "query",
			want:    "quantum computing",
		},
		{
			name:    "single quoted",
			content: WrapCalls(`brave_search(query='tides')`),
			key:     "query",
			want:    "tides",
		},
		{
			name:    "bare integer",
			content: WrapCalls(`brave_search(count=8)`),
			key:     "count",
			want:    "8",
			wantInt: 8,
			numeric: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := ParseCalls(tt.content)
			if len(calls) != 1 {
				t.Fatalf("len(calls) = %d, want 1", len(calls))
			}
			arg, ok := calls[0].Arg(tt.key)
			if !ok {
				t.Fatalf("argument %q not parsed", tt.key)
			}
			if arg.String() != tt.want {
				t.Errorf("value = %q, want %q", arg.String(), tt.want)
			}
			if tt.numeric && arg.Int(-1) != tt.wantInt {
				t.Errorf("Int = %d, want %d", arg.Int(-1), tt.wantInt)
			}
		})
	}
}

func TestParseCalls_UnquotedValueDegrades(t *testing.T) {
	// An unquoted non-numeric value yields an absent argument, not an
	// error; the call itself still parses.
	calls := ParseCalls(WrapCalls(`lookup_user(email=sarah)`))
	if len(calls) != 1 {
		t.Fatalf("len(calls) = %d, want 1", len(calls))
	}
	if _, ok := calls[0].Arg("email"); ok {
		t.Error("unquoted value should not produce an argument")
	}
}

func TestSignature_Deterministic(t *testing.T) {
	a := ParseCalls(WrapCalls(`search(query="go", count=2)`))
	b := ParseCalls(WrapCalls(`search(count=2, query="go")`))
	if len(a) != 1 || len(b) != 1 {
		t.Fatal("expected one call each")
	}
	if a[0].Signature() != b[0].Signature() {
		t.Errorf("signatures differ for reordered args: %q vs %q",
			a[0].Signature(), b[0].Signature())
	}
}

func TestContainsToolCalls(t *testing.T) {
	if !ContainsToolCalls(WrapCalls(`noop()`)) {
		t.Error("marker content should report calls")
	}
	if ContainsToolCalls("final answer text") {
		t.Error("plain text should not report calls")
	}
}
