// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package research sequences multiple bounded turn loops under named
// phases (exploration, investigation, validation, synthesis) and
// accumulates durable research state across them.
//
// Phases never share raw conversation history; the only cross-phase
// channel is the ResearchState, which is additive only.
package research

import (
	"encoding/json"
	"sync"
	"time"
)

// Source is one deduplicated web source.
type Source struct {
	// ID is assigned on first sighting and stable thereafter; the
	// model references sources by it.
	ID int `json:"id"`

	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`

	// Age is the result's freshness string as the search API reports
	// it, e.g. "2 days ago". Often empty.
	Age string `json:"age,omitempty"`
}

// Fact is one extracted statement tied to its source.
type Fact struct {
	Text        string `json:"fact"`
	SourceURL   string `json:"source_url"`
	SourceTitle string `json:"source_title"`
}

// Finding is one tool result kept for the final report.
type Finding struct {
	// Phase is the phasesCompleted value when the finding landed.
	Phase int `json:"phase"`

	// Tool is the tool that produced it.
	Tool string `json:"tool"`

	// Summary is the serialized result content.
	Summary string `json:"summary"`

	RecordedAt time.Time `json:"recorded_at"`
}

// SearchRecord is one executed web search.
type SearchRecord struct {
	Query       string    `json:"query"`
	ResultCount int       `json:"result_count"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// State is the durable cross-phase research accumulator.
//
// Description:
//
//	Additive only: phases append findings, sources, and searches but
//	never remove them. Sources are deduplicated by URL — re-searching
//	the same ground does not inflate the source list.
//
// Thread Safety: State is safe for concurrent use, though a pipeline
// run drives it from a single goroutine.
type State struct {
	mu              sync.Mutex
	topic           string
	phasesCompleted int
	findings        []Finding
	facts           []Fact
	sources         []Source
	byURL           map[string]int
	keyAngles       []string
	searches        []SearchRecord
}

// NewState creates an empty research state for a topic.
func NewState(topic string) *State {
	return &State{topic: topic, byURL: make(map[string]int)}
}

// Topic returns the research topic.
func (s *State) Topic() string {
	return s.topic
}

// AddSources merges results into the source list, deduplicating by URL.
//
// Description:
//
//	New URLs get the next sequential ID; already-known URLs keep their
//	original record. The returned slice holds the canonical stored
//	records for the input, in input order, so callers can hand the
//	model the IDs it should reference.
func (s *State) AddSources(results []Source) []Source {
	s.mu.Lock()
	defer s.mu.Unlock()

	canonical := make([]Source, 0, len(results))
	for _, r := range results {
		if idx, seen := s.byURL[r.URL]; seen {
			canonical = append(canonical, s.sources[idx])
			continue
		}
		r.ID = len(s.sources)
		s.byURL[r.URL] = len(s.sources)
		s.sources = append(s.sources, r)
		canonical = append(canonical, r)
	}
	return canonical
}

// Sources returns a copy of all accumulated sources.
func (s *State) Sources() []Source {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Source, len(s.sources))
	copy(out, s.sources)
	return out
}

// SourcesByID returns the sources matching the given IDs, skipping
// unknown IDs.
func (s *State) SourcesByID(ids []int) []Source {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Source, 0, len(ids))
	for _, id := range ids {
		if id >= 0 && id < len(s.sources) {
			out = append(out, s.sources[id])
		}
	}
	return out
}

// AddFinding appends a tool result to the findings log, stamped with
// the current phase.
func (s *State) AddFinding(tool, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.findings = append(s.findings, Finding{
		Phase:      s.phasesCompleted,
		Tool:       tool,
		Summary:    summary,
		RecordedAt: time.Now().UTC(),
	})
}

// Findings returns a copy of the findings log.
func (s *State) Findings() []Finding {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Finding, len(s.findings))
	copy(out, s.findings)
	return out
}

// AddFacts appends extracted facts.
func (s *State) AddFacts(facts []Fact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts = append(s.facts, facts...)
}

// TopFacts returns up to n of the earliest extracted facts. The
// validation phase cross-references these.
func (s *State) TopFacts(n int) []Fact {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > len(s.facts) {
		n = len(s.facts)
	}
	out := make([]Fact, n)
	copy(out, s.facts[:n])
	return out
}

// SetKeyAngles replaces the identified research angles.
func (s *State) SetKeyAngles(angles []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyAngles = append([]string(nil), angles...)
}

// KeyAngles returns a copy of the identified angles.
func (s *State) KeyAngles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keyAngles...)
}

// RecordSearch logs one executed web search.
func (s *State) RecordSearch(query string, resultCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.searches = append(s.searches, SearchRecord{
		Query:       query,
		ResultCount: resultCount,
		ExecutedAt:  time.Now().UTC(),
	})
}

// SearchCount returns how many searches ran so far.
func (s *State) SearchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.searches)
}

// CompletePhase marks the current phase done.
func (s *State) CompletePhase() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phasesCompleted++
}

// PhasesCompleted returns the completed-phase count. Skipped phases do
// not count.
func (s *State) PhasesCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phasesCompleted
}

// Summary serializes the state's headline numbers for embedding into a
// phase prompt.
func (s *State) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(map[string]any{
		"topic":             s.topic,
		"phases_completed":  s.phasesCompleted,
		"findings_count":    len(s.findings),
		"sources_count":     len(s.sources),
		"key_angles":        s.keyAngles,
		"searches_executed": len(s.searches),
	}, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
