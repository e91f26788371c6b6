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
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var braveTracer = otel.Tracer("toolchain.chain.research.brave")

// Brave API limits.
const (
	// DefaultBraveBaseURL is the web search endpoint.
	DefaultBraveBaseURL = "https://api.search.brave.com/res/v1/web/search"

	// maxBraveCount is Brave's per-request result ceiling.
	maxBraveCount = 20

	// defaultBraveTimeout bounds one search request.
	defaultBraveTimeout = 10 * time.Second
)

// Searcher runs one web search. Implementations return results in rank
// order; freshness is a Brave-style filter ("pd", "pw", "pm", "py") or
// empty for no filter.
type Searcher interface {
	Search(ctx context.Context, query string, count int, freshness string) ([]Source, error)
}

// BraveClient is a Searcher backed by the Brave Search API.
//
// Thread Safety: BraveClient is safe for concurrent use.
type BraveClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// BraveOption configures a BraveClient.
type BraveOption func(*BraveClient)

// WithBraveBaseURL overrides the endpoint, for tests.
func WithBraveBaseURL(u string) BraveOption {
	return func(c *BraveClient) { c.baseURL = u }
}

// WithBraveTimeout overrides the per-request timeout.
func WithBraveTimeout(d time.Duration) BraveOption {
	return func(c *BraveClient) { c.httpClient.Timeout = d }
}

// NewBraveClient creates a client with the given subscription token.
func NewBraveClient(apiKey string, opts ...BraveOption) *BraveClient {
	c := &BraveClient{
		apiKey:     apiKey,
		baseURL:    DefaultBraveBaseURL,
		httpClient: &http.Client{Timeout: defaultBraveTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// braveResponse is the subset of the Brave payload the engine reads.
type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Age         string `json:"age"`
		} `json:"results"`
	} `json:"web"`
}

// Search implements Searcher.
//
// Description:
//
//	Issues one GET with the query, a count clamped to Brave's ceiling,
//	and the optional freshness filter. Non-2xx statuses and transport
//	failures return an error; the research tools degrade those to an
//	empty result set rather than aborting the phase.
func (c *BraveClient) Search(ctx context.Context, query string, count int, freshness string) ([]Source, error) {
	ctx, span := braveTracer.Start(ctx, "research.BraveClient.Search")
	span.SetAttributes(attribute.String("query", query))
	defer span.End()

	if count <= 0 || count > maxBraveCount {
		count = maxBraveCount
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", count))
	if freshness != "" {
		params.Set("freshness", freshness)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("Search: building request: %w", err)
	}
	// Transparent gzip is left to net/http; setting Accept-Encoding
	// by hand would disable it.
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("Search: requesting %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("Search: brave returned status %d for %q", resp.StatusCode, query)
	}

	var payload braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("Search: decoding response for %q: %w", query, err)
	}

	results := make([]Source, 0, len(payload.Web.Results))
	for i, r := range payload.Web.Results {
		results = append(results, Source{
			ID:          i,
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
			Age:         r.Age,
		})
	}
	return results, nil
}
