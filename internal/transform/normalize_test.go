package transform

import (
	"math"
	"testing"
	"time"

	"adsreport/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNormalizeCoercionAndDefaults(t *testing.T) {
	batch := []domain.RawRecord{
		{
			"date_start":  "2025-03-01",
			"date_stop":   "2025-03-01",
			"campaign_id": "123",
			"spend":       "10.50",
			"impressions": float64(1000),
			"clicks":      "25",
			"frequency":   "not a number",
		},
	}

	rows := Normalize(batch)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]

	if !almostEqual(row.Metric("spend"), 10.50) {
		t.Errorf("spend = %v, want 10.50", row.Metric("spend"))
	}
	if row.Metric("clicks") != 25 {
		t.Errorf("clicks = %v, want 25", row.Metric("clicks"))
	}

	// Unparseable numeric input becomes 0, never a sentinel.
	if row.Metric("frequency") != 0 {
		t.Errorf("frequency = %v, want 0", row.Metric("frequency"))
	}

	// Forced numeric columns exist even when the source omitted them.
	for _, f := range []string{"reach", "ctr", "outbound_clicks"} {
		if !row.HasMetric(f) {
			t.Errorf("forced numeric column %q missing", f)
		}
	}

	// Identifier columns exist even when the source omitted them.
	for _, f := range []string{"adset_id", "ad_name"} {
		if _, ok := row.Text[f]; !ok {
			t.Errorf("identifier column %q missing", f)
		}
	}
	if row.TextValue("campaign_id") != "123" {
		t.Errorf("campaign_id = %q, want 123", row.TextValue("campaign_id"))
	}

	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !row.DateStart.Equal(want) {
		t.Errorf("DateStart = %v, want %v", row.DateStart, want)
	}
}

func TestNormalizeComputesRatesWhenSourceOmitsThem(t *testing.T) {
	batch := []domain.RawRecord{
		{"spend": "10", "clicks": "4", "impressions": "2000"},
		{"spend": "5", "clicks": "0", "impressions": "0"},
	}

	rows := Normalize(batch)

	if !almostEqual(rows[0].Metric("cpc"), 2.5) {
		t.Errorf("cpc = %v, want 2.5", rows[0].Metric("cpc"))
	}
	if !almostEqual(rows[0].Metric("cpm"), 5) {
		t.Errorf("cpm = %v, want 5", rows[0].Metric("cpm"))
	}

	// Zero denominators yield 0, not NaN or Inf.
	if rows[1].Metric("cpc") != 0 || rows[1].Metric("cpm") != 0 {
		t.Errorf("zero-denominator rates = %v / %v, want 0 / 0",
			rows[1].Metric("cpc"), rows[1].Metric("cpm"))
	}
}

func TestNormalizeKeepsSourceRates(t *testing.T) {
	batch := []domain.RawRecord{
		{"spend": "10", "clicks": "4", "cpc": "9.99"},
	}

	rows := Normalize(batch)
	if !almostEqual(rows[0].Metric("cpc"), 9.99) {
		t.Errorf("source-supplied cpc = %v, want 9.99", rows[0].Metric("cpc"))
	}
}

func TestNormalizeSchemaDrift(t *testing.T) {
	batch := []domain.RawRecord{
		{
			"brand_new_metric": float64(42),
			"some_external_id": "00123",
			"quality_ranking":  "ABOVE_AVERAGE",
		},
	}

	rows := Normalize(batch)
	row := rows[0]

	// Unknown numbers become metrics.
	if row.Metric("brand_new_metric") != 42 {
		t.Errorf("brand_new_metric = %v, want 42", row.Metric("brand_new_metric"))
	}
	// Numeric-looking strings stay text so identifiers survive intact.
	if row.TextValue("some_external_id") != "00123" {
		t.Errorf("some_external_id = %q, want 00123", row.TextValue("some_external_id"))
	}
	if row.TextValue("quality_ranking") != "ABOVE_AVERAGE" {
		t.Errorf("quality_ranking = %q", row.TextValue("quality_ranking"))
	}
}

func TestParseDateVariants(t *testing.T) {
	tests := []struct {
		in   any
		zero bool
	}{
		{"2025-03-01", false},
		{"2025-03-01T00:00:00+0000", false},
		{"", true},
		{nil, true},
		{"03/01/2025", true},
		{float64(20250301), true},
	}

	for _, tt := range tests {
		got := parseDate(tt.in)
		if got.IsZero() != tt.zero {
			t.Errorf("parseDate(%v): zero = %v, want %v", tt.in, got.IsZero(), tt.zero)
		}
	}
}

func TestNormalizeEmptyBatch(t *testing.T) {
	if rows := Normalize(nil); rows != nil {
		t.Errorf("expected nil for empty batch, got %v", rows)
	}
}
