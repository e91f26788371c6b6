// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package research

import (
	"strings"
	"testing"
)

func TestState_SourcesDedupedByURL(t *testing.T) {
	s := NewState("solid state batteries")

	first := s.AddSources([]Source{
		{Title: "Overview", URL: "https://example.org/a"},
		{Title: "Deep dive", URL: "https://example.org/b"},
	})
	second := s.AddSources([]Source{
		{Title: "Overview (again)", URL: "https://example.org/a"},
		{Title: "New angle", URL: "https://example.org/c"},
	})

	if len(s.Sources()) != 3 {
		t.Fatalf("Sources = %d, want 3 after dedup", len(s.Sources()))
	}
	if first[0].ID != 0 || first[1].ID != 1 {
		t.Errorf("first batch IDs = %d,%d; want 0,1", first[0].ID, first[1].ID)
	}
	// Re-seen URL keeps its original record, including the title.
	if second[0].ID != 0 || second[0].Title != "Overview" {
		t.Errorf("re-seen source = %+v, want the original record", second[0])
	}
	if second[1].ID != 2 {
		t.Errorf("new source ID = %d, want 2", second[1].ID)
	}
}

func TestState_SourcesByIDSkipsUnknown(t *testing.T) {
	s := NewState("t")
	s.AddSources([]Source{
		{URL: "https://example.org/a"},
		{URL: "https://example.org/b"},
	})

	got := s.SourcesByID([]int{1, 7, -1, 0})
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 0 {
		t.Errorf("SourcesByID = %+v, want sources 1 and 0", got)
	}
}

func TestState_FindingsStampedWithPhase(t *testing.T) {
	s := NewState("t")

	s.AddFinding("brave_search", `{"count":3}`)
	s.CompletePhase()
	s.AddFinding("cross_reference", `{"verified":true}`)

	f := s.Findings()
	if len(f) != 2 {
		t.Fatalf("Findings = %d, want 2", len(f))
	}
	if f[0].Phase != 0 || f[1].Phase != 1 {
		t.Errorf("phases = %d,%d; want 0,1", f[0].Phase, f[1].Phase)
	}
}

func TestState_TopFactsBounded(t *testing.T) {
	s := NewState("t")
	s.AddFacts([]Fact{{Text: "a"}, {Text: "b"}, {Text: "c"}})

	if got := s.TopFacts(2); len(got) != 2 || got[0].Text != "a" {
		t.Errorf("TopFacts(2) = %+v, want first two in order", got)
	}
	if got := s.TopFacts(10); len(got) != 3 {
		t.Errorf("TopFacts(10) = %d facts, want all 3", len(got))
	}
}

func TestState_SummaryCarriesHeadlineNumbers(t *testing.T) {
	s := NewState("quantum error correction")
	s.AddSources([]Source{{URL: "https://example.org/a"}})
	s.SetKeyAngles([]string{"decoherence"})
	s.RecordSearch("quantum error correction", 1)
	s.CompletePhase()

	summary := s.Summary()
	for _, want := range []string{
		`"topic": "quantum error correction"`,
		`"phases_completed": 1`,
		`"sources_count": 1`,
		`"searches_executed": 1`,
		`"decoherence"`,
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary missing %q:\n%s", want, summary)
		}
	}
}
