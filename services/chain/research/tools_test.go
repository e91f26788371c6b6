// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package research

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/toolchain/services/chain/tools"
	"github.com/AleutianAI/toolchain/services/chain/wire"
)

// stubSearcher returns fixed results for every query.
type stubSearcher struct {
	results []Source
	err     error
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query string, _ int, _ string) ([]Source, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func researchSetup(t *testing.T, searcher Searcher) (*tools.Registry, *State) {
	t.Helper()
	state := NewState("solid state batteries")
	reg := tools.NewRegistry()
	require.NoError(t, RegisterResearchTools(reg, searcher, state))
	require.Equal(t, 5, reg.Count())
	return reg, state
}

func execute(t *testing.T, reg *tools.Registry, raw string) string {
	t.Helper()
	calls := wire.ParseCalls(wire.WrapCalls(raw))
	require.Len(t, calls, 1)
	result := reg.Execute(context.Background(), calls[0])
	require.False(t, result.IsError())
	return result.Content()
}

func TestBraveSearchTool_AccumulatesState(t *testing.T) {
	searcher := &stubSearcher{results: []Source{
		{Title: "Battery Breakthrough Research", URL: "https://example.org/a",
			Description: "Researchers demonstrated a solid electrolyte with record conductivity. The cell survived a thousand cycles."},
		{Title: "Battery Manufacturing Update", URL: "https://example.org/b",
			Description: "Production lines for solid state cells are scaling this year."},
	}}
	reg, state := researchSetup(t, searcher)

	content := execute(t, reg, `brave_search(query="solid state batteries", count=5)`)

	require.Contains(t, content, "https://example.org/a")
	require.Equal(t, 2, len(state.Sources()))
	require.Equal(t, 1, state.SearchCount())
	require.Equal(t, []string{"solid state batteries"}, searcher.queries)
	require.NotEmpty(t, state.Findings())
}

func TestBraveSearchTool_DegradesOnSearcherError(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("upstream 429")}
	reg, state := researchSetup(t, searcher)

	content := execute(t, reg, `brave_search(query="anything")`)

	require.Contains(t, content, `"count":0`)
	require.Empty(t, state.Sources())
	require.Equal(t, 1, state.SearchCount(), "the failed search is still recorded")
}

func TestExtractKeyFacts_FromSelectedSources(t *testing.T) {
	reg, state := researchSetup(t, &stubSearcher{})
	state.AddSources([]Source{
		{Title: "Electrolyte Advances Reported", URL: "https://example.org/a",
			Description: "A sulfide electrolyte reached record ionic conductivity at room temperature. Cells using it retained most capacity after many cycles. Ok."},
		{Title: "Unrelated", URL: "https://example.org/b", Description: "Short."},
	})

	content := execute(t, reg, `extract_key_facts(result_ids="0")`)

	require.Contains(t, content, "record ionic conductivity")
	require.Contains(t, content, `"sources_analyzed":1`)
	require.NotEmpty(t, state.TopFacts(1))
}

func TestIdentifyAngles_FrequencyRanked(t *testing.T) {
	reg, state := researchSetup(t, &stubSearcher{})
	state.AddSources([]Source{
		{Title: "manufacturing manufacturing manufacturing", URL: "https://example.org/a", Description: "electrolyte"},
		{Title: "electrolyte research", URL: "https://example.org/b", Description: "manufacturing"},
	})

	content := execute(t, reg, `identify_angles(context="overview", max_angles=2)`)

	require.Contains(t, content, "manufacturing")
	angles := state.KeyAngles()
	require.Len(t, angles, 2)
	require.Equal(t, "manufacturing", angles[0], "most frequent word ranks first")
}

func TestCrossReference_VerifiedAcrossSources(t *testing.T) {
	reg, state := researchSetup(t, &stubSearcher{})
	state.AddSources([]Source{
		{Title: "solid electrolyte record conductivity", URL: "https://example.org/a", Description: ""},
		{Title: "record conductivity in solid electrolyte cells", URL: "https://example.org/b", Description: ""},
		{Title: "unrelated cooking blog", URL: "https://example.org/c", Description: "pasta recipes"},
	})

	content := execute(t, reg, `cross_reference(fact="solid electrolyte record conductivity", min_sources=2)`)

	require.Contains(t, content, `"verified":true`)
	require.Contains(t, content, `"mentions":2`)
}

func TestGenerateFollowUp_UsesAnglesThenPads(t *testing.T) {
	reg, state := researchSetup(t, &stubSearcher{})
	state.SetKeyAngles([]string{"manufacturing"})

	content := execute(t, reg, `generate_follow_up(context="next steps", max_queries=3)`)

	require.Contains(t, content, "solid state batteries manufacturing")
	require.Contains(t, content, "recent developments")
	require.Contains(t, content, "research studies")
}

func TestParseIDList(t *testing.T) {
	cases := []struct {
		in   string
		want []int
	}{
		{`0,1,2`, []int{0, 1, 2}},
		{`[0, 1, 2]`, []int{0, 1, 2}},
		{`3`, []int{3}},
		{``, nil},
		{`a,b`, nil},
	}
	for _, tc := range cases {
		got := parseIDList(tc.in)
		require.Equal(t, tc.want, got, "parseIDList(%q)", tc.in)
	}
}
