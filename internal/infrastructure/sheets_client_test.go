package infrastructure

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adsreport/internal/domain"
	"adsreport/pkg/config"
)

func sampleTable(name string) *domain.Table {
	row := domain.NewRow()
	row.DateStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	row.Text["campaign_id"] = "c1"
	row.Metrics["spend"] = 12.5

	return &domain.Table{
		Name:        name,
		Columns:     []string{"campaign_id", "date_start", "spend"},
		Rows:        []domain.Row{row},
		StartColumn: "date_start",
	}
}

func TestPublishUploadsTablesInNameOrder(t *testing.T) {
	type upload struct {
		worksheet string
		values    [][]any
		clear     bool
	}
	var uploads []upload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			SpreadsheetID string  `json:"spreadsheet_id"`
			Worksheet     string  `json:"worksheet"`
			Clear         bool    `json:"clear"`
			Values        [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		if payload.SpreadsheetID != "sheet-1" {
			t.Errorf("spreadsheet_id = %q", payload.SpreadsheetID)
		}
		uploads = append(uploads, upload{payload.Worksheet, payload.Values, payload.Clear})
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewSheetsClient(config.SheetsConfig{
		SinkURL:       server.URL,
		SpreadsheetID: "sheet-1",
	}, 5*time.Second, testLogger(), testMetrics())

	tables := map[string]*domain.Table{
		"campaign_daily": sampleTable("campaign_daily"),
		"ad_daily":       sampleTable("ad_daily"),
	}
	if err := client.Publish(context.Background(), tables); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(uploads) != 2 {
		t.Fatalf("got %d uploads, want 2", len(uploads))
	}
	if uploads[0].worksheet != "ad_daily" || uploads[1].worksheet != "campaign_daily" {
		t.Errorf("upload order = %q, %q", uploads[0].worksheet, uploads[1].worksheet)
	}
	if !uploads[0].clear {
		t.Error("worksheet not cleared before write")
	}

	values := uploads[0].values
	if len(values) != 2 {
		t.Fatalf("rendered rows = %d, want header + 1", len(values))
	}
	if values[0][0] != "campaign_id" || values[1][1] != "2025-03-01" {
		t.Errorf("rendered values = %v", values)
	}
}

func TestPublishSignsPayload(t *testing.T) {
	const secret = "shh"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		want := hex.EncodeToString(mac.Sum(nil))

		if got := r.Header.Get("X-Signature"); got != want {
			t.Errorf("X-Signature = %q, want %q", got, want)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewSheetsClient(config.SheetsConfig{
		SinkURL:       server.URL,
		SinkSecret:    secret,
		SpreadsheetID: "sheet-1",
	}, 5*time.Second, testLogger(), testMetrics())

	tables := map[string]*domain.Table{"ad_daily": sampleTable("ad_daily")}
	if err := client.Publish(context.Background(), tables); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestPublishAbortsOnSinkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewSheetsClient(config.SheetsConfig{
		SinkURL:       server.URL,
		SpreadsheetID: "sheet-1",
	}, 5*time.Second, testLogger(), testMetrics())

	tables := map[string]*domain.Table{"ad_daily": sampleTable("ad_daily")}
	if err := client.Publish(context.Background(), tables); err == nil {
		t.Fatal("expected error for failing sink")
	}
}

func TestPublishRequiresSinkURL(t *testing.T) {
	client := NewSheetsClient(config.SheetsConfig{}, time.Second, testLogger(), testMetrics())
	if err := client.Publish(context.Background(), nil); err == nil {
		t.Fatal("expected error for missing sink URL")
	}
}
