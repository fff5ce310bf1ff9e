package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"adsreport/internal/domain"
	"adsreport/pkg/logger"
	"adsreport/pkg/metrics"
)

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

type fakeInsights struct {
	records   []domain.RawRecord
	err       error
	firstDate time.Time
	gotSince  time.Time
	gotUntil  time.Time
}

func (f *fakeInsights) FetchInsights(ctx context.Context, since, until time.Time) ([]domain.RawRecord, error) {
	f.gotSince, f.gotUntil = since, until
	return f.records, f.err
}

func (f *fakeInsights) FirstCampaignStartDate(ctx context.Context) (time.Time, error) {
	return f.firstDate, nil
}

type fakeStatuses struct{}

func (fakeStatuses) Status(ctx context.Context, campaignID string) domain.CampaignStatus {
	return domain.CampaignStatus{Status: "ACTIVE", EffectiveStatus: "ACTIVE", ConfiguredStatus: "ACTIVE"}
}

type fakeCreatives struct{}

func (fakeCreatives) Info(ctx context.Context, adID string) domain.CreativeInfo {
	return domain.CreativeInfo{CreativeID: "cr-" + adID, VideoURL: "https://cdn.example.com/" + adID}
}

type fakeSink struct {
	published map[string]*domain.Table
	err       error
}

func (f *fakeSink) Publish(ctx context.Context, tables map[string]*domain.Table) error {
	f.published = tables
	return f.err
}

func newTestService(insights *fakeInsights, sink *fakeSink) *ReportService {
	return NewReportService(insights, fakeStatuses{}, fakeCreatives{}, sink,
		logger.New("error"), testMetrics())
}

func sampleBatch() []domain.RawRecord {
	return []domain.RawRecord{
		{
			"date_start": "2025-03-01", "date_stop": "2025-03-01",
			"campaign_id": "c1", "campaign_name": "A",
			"adset_id": "s1", "adset_name": "S",
			"ad_id": "a1", "ad_name": "Ad",
			"spend": "10", "impressions": "100", "clicks": "5",
			"actions": []any{
				map[string]any{"action_type": "onsite_conversion.total_messaging_connection", "value": "3"},
			},
		},
	}
}

func TestRunFullPipeline(t *testing.T) {
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)

	insights := &fakeInsights{records: sampleBatch()}
	sink := &fakeSink{}
	service := newTestService(insights, sink)

	summary, err := service.Run(context.Background(), &since, &until)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !insights.gotSince.Equal(since) || !insights.gotUntil.Equal(until) {
		t.Errorf("fetch range = %v..%v", insights.gotSince, insights.gotUntil)
	}
	if summary.RecordsFetched != 1 || !summary.Published {
		t.Errorf("summary = %+v", summary)
	}
	if len(sink.published) != 6 {
		t.Fatalf("published %d tables, want 6", len(sink.published))
	}

	// Enrichment metadata flowed through to the output tables.
	topAds := sink.published["top_ads_period"]
	if topAds == nil || len(topAds.Rows) != 1 {
		t.Fatalf("top_ads_period missing or empty")
	}
	if got := topAds.Rows[0].TextValue("creative_id"); got != "cr-a1" {
		t.Errorf("creative_id = %q, want cr-a1", got)
	}
	if got := topAds.Rows[0].Metric("messages_total"); got != 3 {
		t.Errorf("messages_total = %v, want 3", got)
	}

	// The summary is retrievable afterwards.
	if last := service.LastRun(); last == nil || last.RunID != summary.RunID {
		t.Errorf("LastRun = %+v", last)
	}
}

func TestRunEmptyBatchIsSuccess(t *testing.T) {
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	until := since

	insights := &fakeInsights{}
	sink := &fakeSink{}
	service := newTestService(insights, sink)

	summary, err := service.Run(context.Background(), &since, &until)
	if err != nil {
		t.Fatalf("empty batch must not fail: %v", err)
	}
	if summary.RecordsFetched != 0 || summary.Published {
		t.Errorf("summary = %+v", summary)
	}
	if sink.published != nil {
		t.Error("nothing should be published for an empty batch")
	}
}

func TestRunDefaultsDateRange(t *testing.T) {
	first := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	insights := &fakeInsights{firstDate: first}
	service := newTestService(insights, &fakeSink{})

	if _, err := service.Run(context.Background(), nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !insights.gotSince.Equal(first) {
		t.Errorf("since = %v, want first campaign date %v", insights.gotSince, first)
	}
	yesterday := time.Now().AddDate(0, 0, -1)
	if insights.gotUntil.Format("2006-01-02") != yesterday.Format("2006-01-02") {
		t.Errorf("until = %v, want yesterday", insights.gotUntil)
	}
}

func TestRunFetchFailure(t *testing.T) {
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	insights := &fakeInsights{err: errors.New("api down")}
	sink := &fakeSink{}
	service := newTestService(insights, sink)

	if _, err := service.Run(context.Background(), &since, &since); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
	if sink.published != nil {
		t.Error("must not publish after a failed fetch")
	}
}

func TestRunPublishFailure(t *testing.T) {
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	insights := &fakeInsights{records: sampleBatch()}
	sink := &fakeSink{err: errors.New("sink down")}
	service := newTestService(insights, sink)

	if _, err := service.Run(context.Background(), &since, &since); err == nil {
		t.Fatal("expected publish error to propagate")
	}
}
