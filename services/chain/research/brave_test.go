// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package research

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBraveClient_ParsesResults(t *testing.T) {
	var gotToken, gotQuery, gotCount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Subscription-Token")
		gotQuery = r.URL.Query().Get("q")
		gotCount = r.URL.Query().Get("count")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"web": {"results": [
				{"title": "First", "url": "https://example.org/a", "description": "Desc A", "age": "2 days ago"},
				{"title": "Second", "url": "https://example.org/b", "description": "Desc B"}
			]}
		}`))
	}))
	defer srv.Close()

	client := NewBraveClient("test-token", WithBraveBaseURL(srv.URL))
	results, err := client.Search(context.Background(), "solid state batteries", 8, "")
	require.NoError(t, err)

	require.Equal(t, "test-token", gotToken)
	require.Equal(t, "solid state batteries", gotQuery)
	require.Equal(t, "8", gotCount)

	require.Len(t, results, 2)
	require.Equal(t, 0, results[0].ID)
	require.Equal(t, "First", results[0].Title)
	require.Equal(t, "2 days ago", results[0].Age)
	require.Equal(t, "https://example.org/b", results[1].URL)
}

func TestBraveClient_ClampsCount(t *testing.T) {
	var gotCount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCount = r.URL.Query().Get("count")
		_, _ = w.Write([]byte(`{"web":{"results":[]}}`))
	}))
	defer srv.Close()

	client := NewBraveClient("t", WithBraveBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "q", 500, "")
	require.NoError(t, err)
	require.Equal(t, "20", gotCount, "count above the Brave ceiling must clamp")
}

func TestBraveClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewBraveClient("t", WithBraveBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "q", 5, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestBraveClient_FreshnessParam(t *testing.T) {
	var gotFreshness string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFreshness = r.URL.Query().Get("freshness")
		_, _ = w.Write([]byte(`{"web":{"results":[]}}`))
	}))
	defer srv.Close()

	client := NewBraveClient("t", WithBraveBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "q", 5, "pw")
	require.NoError(t, err)
	require.Equal(t, "pw", gotFreshness)
}
