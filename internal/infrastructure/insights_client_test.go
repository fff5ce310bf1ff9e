package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"adsreport/pkg/config"
	"adsreport/pkg/logger"
	"adsreport/pkg/metrics"
)

// Collectors register on the default prometheus registry, so the whole
// test package shares one Metrics instance.
var (
	testMetricsOnce sync.Once
	testMetricsInst *metrics.Metrics
)

func testMetrics() *metrics.Metrics {
	testMetricsOnce.Do(func() {
		testMetricsInst = metrics.New()
	})
	return testMetricsInst
}

func testLogger() *logger.Logger {
	return logger.New("error")
}

func insightsConfig(baseURL string) config.InsightsConfig {
	return config.InsightsConfig{
		BaseURL:            baseURL,
		AccessToken:        "token",
		AccountID:          "act_1",
		PageSize:           2,
		ChunkDays:          365,
		RequestTimeout:     5 * time.Second,
		MaxRetries:         2,
		RetryBackoff:       time.Millisecond,
		RateLimitPerSecond: 1000,
	}
}

func TestFetchInsightsPaginates(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Query().Get("after"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("after") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"ad_id": "a1"}, {"ad_id": "a2"}},
				"paging": map[string]any{
					"cursors": map[string]any{"after": "cursor1"},
					"next":    "https://example.com/next",
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"ad_id": "a3"}},
		})
	}))
	defer server.Close()

	client := NewInsightsClient(insightsConfig(server.URL), testLogger(), testMetrics())

	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	records, err := client.FetchInsights(context.Background(), since, until)
	if err != nil {
		t.Fatalf("FetchInsights: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if len(requests) != 2 || requests[1] != "cursor1" {
		t.Errorf("pagination requests = %v", requests)
	}
	if records[2]["ad_id"] != "a3" {
		t.Errorf("records out of order: %v", records)
	}
}

func TestFetchInsightsRetriesTransientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"ad_id": "a1"}},
		})
	}))
	defer server.Close()

	client := NewInsightsClient(insightsConfig(server.URL), testLogger(), testMetrics())

	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	records, err := client.FetchInsights(context.Background(), day, day)
	if err != nil {
		t.Fatalf("FetchInsights after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (one 429 then success)", calls)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}
}

func TestFetchInsightsPermanentError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewInsightsClient(insightsConfig(server.URL), testLogger(), testMetrics())

	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := client.FetchInsights(context.Background(), day, day); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", calls)
	}
}

func TestFirstCampaignStartDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "c1", "start_time": "2025-06-01T00:00:00+0000"},
				{"id": "c2", "start_time": "2025-02-15T10:30:00+0000"},
				{"id": "c3", "created_time": "2025-04-01T00:00:00+0000"},
			},
		})
	}))
	defer server.Close()

	client := NewInsightsClient(insightsConfig(server.URL), testLogger(), testMetrics())

	got, err := client.FirstCampaignStartDate(context.Background())
	if err != nil {
		t.Fatalf("FirstCampaignStartDate: %v", err)
	}
	want := time.Date(2025, 2, 15, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("earliest = %v, want %v", got, want)
	}
}

func TestFirstCampaignStartDateFallsBackToLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewInsightsClient(insightsConfig(server.URL), testLogger(), testMetrics())

	got, err := client.FirstCampaignStartDate(context.Background())
	if err != nil {
		t.Fatalf("FirstCampaignStartDate: %v", err)
	}

	// The clamp is ~37 months back; a backfill must still proceed.
	limit := time.Now().AddDate(0, -37, 0)
	if got.After(limit.AddDate(0, 0, 1)) || got.Before(limit.AddDate(0, 0, -1)) {
		t.Errorf("fallback date = %v, want about %v", got, limit)
	}
}
