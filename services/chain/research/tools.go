// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package research

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/toolchain/services/chain/datatypes"
	"github.com/AleutianAI/toolchain/services/chain/tools"
)

// Extraction limits, matching what small tool-use models can digest.
const (
	defaultSearchCount  = 8
	maxFactsPerExtract  = 10
	factsPerSource      = 2
	maxThemesPerExtract = 5
	defaultMaxAngles    = 3
	defaultMinSources   = 2
	defaultMaxQueries   = 3

	// minFactLength filters sentence fragments out of extraction.
	minFactLength = 20

	// minThemeWordLength filters stop-words by length alone; good
	// enough for theme hints.
	minThemeWordLength = 6

	// crossRefOverlap is the word-overlap ratio above which a source
	// counts as mentioning a fact.
	crossRefOverlap = 0.5
)

// RegisterResearchTools registers the five research tools on a
// registry, closing over a shared searcher and state.
//
// Description:
//
//	brave_search is the only tool that leaves the process; the other
//	four analyze what the searches already accumulated in the state.
//	A failed search degrades to an empty result set so the phase can
//	continue, and every tool mirrors its result into the state's
//	findings log for the synthesis phase.
//
// Inputs:
//
//	reg - The registry to populate.
//	searcher - The web search backend.
//	state - The shared cross-phase accumulator.
//
// Outputs:
//
//	error - Non-nil if any registration fails.
func RegisterResearchTools(reg *tools.Registry, searcher Searcher, state *State) error {
	handlers := []tools.Handler{
		tools.NewHandler(braveSearchSchema(),
			func(ctx context.Context, call datatypes.ToolCall) (any, error) {
				return runBraveSearch(ctx, searcher, state, call), nil
			}),
		tools.NewHandler(extractKeyFactsSchema(),
			func(_ context.Context, call datatypes.ToolCall) (any, error) {
				return runExtractKeyFacts(state, call), nil
			}),
		tools.NewHandler(identifyAnglesSchema(),
			func(_ context.Context, call datatypes.ToolCall) (any, error) {
				return runIdentifyAngles(state, call), nil
			}),
		tools.NewHandler(crossReferenceSchema(),
			func(_ context.Context, call datatypes.ToolCall) (any, error) {
				return runCrossReference(state, call), nil
			}),
		tools.NewHandler(generateFollowUpSchema(),
			func(_ context.Context, call datatypes.ToolCall) (any, error) {
				return runGenerateFollowUp(state, call), nil
			}),
	}

	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// recordFinding mirrors a tool result into the findings log.
func recordFinding(state *State, tool string, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	state.AddFinding(tool, string(data))
}

// searchResult is the brave_search payload shape.
type searchResult struct {
	Query   string   `json:"query"`
	Results []Source `json:"results"`
	Count   int      `json:"count"`
}

func runBraveSearch(ctx context.Context, searcher Searcher, state *State, call datatypes.ToolCall) searchResult {
	query := call.StringArg("query")
	count := call.IntArg("count", defaultSearchCount)
	freshness := call.StringArg("freshness")

	results, err := searcher.Search(ctx, query, count, freshness)
	if err != nil {
		// Degrade to empty so the model can decide to re-query or
		// move on; the phase must not abort on a flaky search.
		slog.Warn("Web search failed, returning empty results",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		results = nil
	}

	canonical := state.AddSources(results)
	state.RecordSearch(query, len(canonical))

	out := searchResult{Query: query, Results: canonical, Count: len(canonical)}
	recordFinding(state, "brave_search", out)
	return out
}

// factExtraction is the extract_key_facts payload shape.
type factExtraction struct {
	Facts           []Fact   `json:"facts"`
	Themes          []string `json:"themes"`
	SourcesAnalyzed int      `json:"sources_analyzed"`
}

func runExtractKeyFacts(state *State, call datatypes.ToolCall) factExtraction {
	ids := parseIDList(call.StringArg("result_ids"))
	sources := state.SourcesByID(ids)

	var facts []Fact
	themes := make(map[string]struct{})

	for _, src := range sources {
		sentences := strings.Split(src.Description, ".")
		kept := 0
		for _, sentence := range sentences {
			sentence = strings.TrimSpace(sentence)
			if len(sentence) <= minFactLength {
				continue
			}
			facts = append(facts, Fact{
				Text:        sentence,
				SourceURL:   src.URL,
				SourceTitle: src.Title,
			})
			kept++
			if kept == factsPerSource {
				break
			}
		}

		for _, word := range strings.Fields(strings.ToLower(src.Title)) {
			if len(word) >= minThemeWordLength {
				themes[word] = struct{}{}
			}
		}
	}

	if len(facts) > maxFactsPerExtract {
		facts = facts[:maxFactsPerExtract]
	}
	state.AddFacts(facts)

	themeList := make([]string, 0, len(themes))
	for t := range themes {
		themeList = append(themeList, t)
	}
	sort.Strings(themeList)
	if len(themeList) > maxThemesPerExtract {
		themeList = themeList[:maxThemesPerExtract]
	}

	out := factExtraction{Facts: facts, Themes: themeList, SourcesAnalyzed: len(sources)}
	recordFinding(state, "extract_key_facts", out)
	return out
}

// angleResult is the identify_angles payload shape.
type angleResult struct {
	Angles    []string `json:"angles"`
	Rationale string   `json:"rationale"`
}

func runIdentifyAngles(state *State, call datatypes.ToolCall) angleResult {
	maxAngles := call.IntArg("max_angles", defaultMaxAngles)

	freq := make(map[string]int)
	for _, src := range state.Sources() {
		for _, word := range strings.Fields(strings.ToLower(src.Title + " " + src.Description)) {
			if len(word) >= minThemeWordLength && isAlpha(word) {
				freq[word]++
			}
		}
	}

	type wordCount struct {
		word  string
		count int
	}
	ranked := make([]wordCount, 0, len(freq))
	for w, c := range freq {
		ranked = append(ranked, wordCount{w, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	angles := make([]string, 0, maxAngles)
	for _, wc := range ranked {
		if len(angles) == maxAngles {
			break
		}
		angles = append(angles, wc.word)
	}
	state.SetKeyAngles(angles)

	out := angleResult{
		Angles:    angles,
		Rationale: "Based on frequency analysis of search results",
	}
	recordFinding(state, "identify_angles", out)
	return out
}

// crossRefResult is the cross_reference payload shape.
type crossRefResult struct {
	Fact             string   `json:"fact"`
	Verified         bool     `json:"verified"`
	Mentions         int      `json:"mentions"`
	RequiredMentions int      `json:"required_mentions"`
	Sources          []Source `json:"sources"`
}

func runCrossReference(state *State, call datatypes.ToolCall) crossRefResult {
	fact := call.StringArg("fact")
	minSources := call.IntArg("min_sources", defaultMinSources)

	factWords := wordSet(fact)

	var mentions []Source
	for _, src := range state.Sources() {
		if len(factWords) == 0 {
			break
		}
		textWords := wordSet(src.Title + " " + src.Description)
		overlap := 0
		for w := range factWords {
			if _, ok := textWords[w]; ok {
				overlap++
			}
		}
		if float64(overlap)/float64(len(factWords)) > crossRefOverlap {
			mentions = append(mentions, src)
		}
	}

	kept := mentions
	if len(kept) > 5 {
		kept = kept[:5]
	}
	out := crossRefResult{
		Fact:             fact,
		Verified:         len(mentions) >= minSources,
		Mentions:         len(mentions),
		RequiredMentions: minSources,
		Sources:          kept,
	}
	recordFinding(state, "cross_reference", out)
	return out
}

// followUpResult is the generate_follow_up payload shape.
type followUpResult struct {
	FollowUpQueries []string `json:"follow_up_queries"`
	Rationale       string   `json:"rationale"`
}

func runGenerateFollowUp(state *State, call datatypes.ToolCall) followUpResult {
	maxQueries := call.IntArg("max_queries", defaultMaxQueries)

	var queries []string
	for _, angle := range state.KeyAngles() {
		if len(queries) == maxQueries {
			break
		}
		queries = append(queries, state.Topic()+" "+angle)
	}
	if len(queries) < maxQueries {
		queries = append(queries, state.Topic()+" recent developments")
	}
	if len(queries) < maxQueries {
		queries = append(queries, state.Topic()+" research studies")
	}

	out := followUpResult{
		FollowUpQueries: queries,
		Rationale:       "Based on identified angles and research gaps",
	}
	recordFinding(state, "generate_follow_up", out)
	return out
}

// parseIDList parses "0,1,2", "[0, 1, 2]", or a single integer into
// source IDs. Anything unparseable is skipped.
func parseIDList(raw string) []int {
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	if raw == "" {
		return nil
	}

	var ids []int
	for _, part := range strings.Split(raw, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			ids = append(ids, n)
		}
	}
	return ids
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) > 0
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}

// Tool schemas, advertised to the backend per phase.

func braveSearchSchema() datatypes.ToolSchema {
	return datatypes.NewFunctionSchema("brave_search",
		"Search the web using Brave Search API. Returns real-time web results.",
		map[string]datatypes.PropertySchema{
			"query": {Type: "string", Description: "Search query"},
			"count": {Type: "integer", Description: "Number of results (1-20)"},
			"freshness": {
				Type:        "string",
				Description: "Time filter: 'pd' (past day), 'pw' (past week), 'pm' (past month)",
				Enum:        []string{"pd", "pw", "pm", "py"},
			},
		}, "query")
}

func extractKeyFactsSchema() datatypes.ToolSchema {
	return datatypes.NewFunctionSchema("extract_key_facts",
		"Extract key facts and themes from search results",
		map[string]datatypes.PropertySchema{
			"result_ids": {
				Type:        "string",
				Description: "Comma-separated result IDs to analyze (from previous search)",
			},
		}, "result_ids")
}

func identifyAnglesSchema() datatypes.ToolSchema {
	return datatypes.NewFunctionSchema("identify_angles",
		"Identify key research angles/subtopics to investigate",
		map[string]datatypes.PropertySchema{
			"context":    {Type: "string", Description: "Current research context"},
			"max_angles": {Type: "integer", Description: "Maximum number of angles to identify"},
		}, "context")
}

func crossReferenceSchema() datatypes.ToolSchema {
	return datatypes.NewFunctionSchema("cross_reference",
		"Verify if a fact appears in multiple sources",
		map[string]datatypes.PropertySchema{
			"fact":        {Type: "string", Description: "Fact to verify"},
			"min_sources": {Type: "integer", Description: "Minimum number of sources required for verification"},
		}, "fact")
}

func generateFollowUpSchema() datatypes.ToolSchema {
	return datatypes.NewFunctionSchema("generate_follow_up",
		"Generate follow-up search queries based on current findings",
		map[string]datatypes.PropertySchema{
			"context":     {Type: "string", Description: "Current research context"},
			"max_queries": {Type: "integer", Description: "Maximum number of follow-up queries"},
		}, "context")
}
