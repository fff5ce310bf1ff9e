package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"adsreport/internal/domain"
	"adsreport/internal/transform"
	"adsreport/pkg/logger"
	"adsreport/pkg/metrics"

	"github.com/google/uuid"
)

// ReportService runs the reporting pipeline: fetch insights, enrich with
// campaign status and creative metadata, run the transform core, publish
// the tables to the spreadsheet sink.
type ReportService struct {
	insights  domain.InsightsClient
	statuses  domain.CampaignStatusLookup
	creatives domain.CreativeInfoLookup
	sink      domain.SheetWriter
	logger    *logger.Logger
	metrics   *metrics.Metrics

	mutex   sync.RWMutex
	lastRun *RunSummary
}

// RunSummary describes one completed pipeline run.
type RunSummary struct {
	RunID          string         `json:"run_id"`
	Since          string         `json:"since"`
	Until          string         `json:"until"`
	RecordsFetched int            `json:"records_fetched"`
	TableRows      map[string]int `json:"table_rows"`
	Published      bool           `json:"published"`
	Duration       time.Duration  `json:"duration"`
	CompletedAt    time.Time      `json:"completed_at"`
}

func NewReportService(
	insights domain.InsightsClient,
	statuses domain.CampaignStatusLookup,
	creatives domain.CreativeInfoLookup,
	sink domain.SheetWriter,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *ReportService {
	return &ReportService{
		insights:  insights,
		statuses:  statuses,
		creatives: creatives,
		sink:      sink,
		logger:    logger,
		metrics:   metrics,
	}
}

// Executes the complete reporting pipeline for a date range. A nil since
// defaults to the account's first campaign date; a nil until defaults to
// yesterday. An empty fetch is a valid "nothing to report" outcome, not
// an error.
func (s *ReportService) Run(ctx context.Context, since, until *time.Time) (*RunSummary, error) {
	start := time.Now()
	s.metrics.IncPipelineRunsInProgress()
	defer s.metrics.DecPipelineRunsInProgress()

	log := s.logger.WithContext(ctx)

	from, to, err := s.resolveDateRange(ctx, since, until)
	if err != nil {
		s.metrics.RecordPipelineRun("failed", "resolve_range", time.Since(start))
		return nil, fmt.Errorf("failed to resolve date range: %w", err)
	}

	log.WithFields(map[string]any{
		"since": from.Format("2006-01-02"),
		"until": to.Format("2006-01-02"),
	}).Info("Starting reporting pipeline")

	batch, err := s.insights.FetchInsights(ctx, from, to)
	if err != nil {
		s.metrics.RecordPipelineRun("failed", "extract", time.Since(start))
		return nil, fmt.Errorf("failed to fetch insights: %w", err)
	}
	s.metrics.RecordStageRecords("extract", "success", len(batch))

	summary := &RunSummary{
		RunID:     uuid.New().String(),
		Since:     from.Format("2006-01-02"),
		Until:     to.Format("2006-01-02"),
		TableRows: make(map[string]int),
	}

	if len(batch) == 0 {
		summary.Duration = time.Since(start)
		summary.CompletedAt = time.Now().UTC()
		s.storeLastRun(summary)
		s.metrics.RecordPipelineRun("success", "complete", summary.Duration)
		log.Info("No insight records in range, nothing to report")
		return summary, nil
	}
	summary.RecordsFetched = len(batch)

	s.enrichBatch(ctx, batch)

	tables := transform.Run(batch)
	for name, table := range tables {
		summary.TableRows[name] = len(table.Rows)
		s.metrics.RecordStageRecords("transform", "success", len(table.Rows))
	}

	if err := s.sink.Publish(ctx, tables); err != nil {
		s.metrics.RecordPipelineRun("failed", "publish", time.Since(start))
		return nil, fmt.Errorf("failed to publish tables: %w", err)
	}
	summary.Published = true

	summary.Duration = time.Since(start)
	summary.CompletedAt = time.Now().UTC()
	s.storeLastRun(summary)
	s.metrics.RecordPipelineRun("success", "complete", summary.Duration)

	log.WithFields(map[string]any{
		"run_id":   summary.RunID,
		"records":  summary.RecordsFetched,
		"tables":   len(tables),
		"duration": summary.Duration,
	}).Info("Reporting pipeline completed successfully")

	return summary, nil
}

// LastRun returns the most recent run summary, nil before the first run.
func (s *ReportService) LastRun() *RunSummary {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastRun
}

func (s *ReportService) storeLastRun(summary *RunSummary) {
	s.mutex.Lock()
	s.lastRun = summary
	s.mutex.Unlock()
}

func (s *ReportService) resolveDateRange(ctx context.Context, since, until *time.Time) (time.Time, time.Time, error) {
	var from time.Time
	if since != nil {
		from = *since
	} else {
		first, err := s.insights.FirstCampaignStartDate(ctx)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = first
	}

	to := time.Now().AddDate(0, 0, -1)
	if until != nil {
		to = *until
	}
	return from, to, nil
}

// enrichBatch merges campaign status and creative metadata onto the raw
// records before the transform core runs. Lookups are cache-backed and
// never fail the batch; the two enrichment sources are prefetched
// concurrently.
func (s *ReportService) enrichBatch(ctx context.Context, batch []domain.RawRecord) {
	campaignIDs := uniqueStringField(batch, "campaign_id")
	adIDs := uniqueStringField(batch, "ad_id")

	statuses := make(map[string]domain.CampaignStatus, len(campaignIDs))
	creatives := make(map[string]domain.CreativeInfo, len(adIDs))

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for _, id := range campaignIDs {
			statuses[id] = s.statuses.Status(ctx, id)
		}
	}()

	go func() {
		defer wg.Done()
		for _, id := range adIDs {
			creatives[id] = s.creatives.Info(ctx, id)
		}
	}()

	wg.Wait()

	for _, rec := range batch {
		if id, ok := rec["campaign_id"].(string); ok && id != "" {
			status := statuses[id]
			rec["campaign_status"] = status.Status
			rec["campaign_effective_status"] = status.EffectiveStatus
			rec["campaign_configured_status"] = status.ConfiguredStatus
			rec["campaign_is_active"] = status.IsActive()
		}
		if id, ok := rec["ad_id"].(string); ok && id != "" {
			info := creatives[id]
			rec["creative_id"] = info.CreativeID
			rec["video_url"] = info.VideoURL
			rec["image_url"] = info.ImageURL
			rec["thumbnail_url"] = info.ThumbnailURL
			rec["creative_name"] = info.Name
			rec["creative_body"] = info.Body
			rec["creative_title"] = info.Title
			rec["link_url"] = info.LinkURL
		}
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"campaigns": len(campaignIDs),
		"ads":       len(adIDs),
	}).Info("Enriched batch with campaign and creative metadata")
}

func uniqueStringField(batch []domain.RawRecord, field string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, rec := range batch {
		id, ok := rec[field].(string)
		if !ok || id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
