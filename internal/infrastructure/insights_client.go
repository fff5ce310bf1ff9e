package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"adsreport/internal/domain"
	"adsreport/pkg/config"
	"adsreport/pkg/logger"
	"adsreport/pkg/metrics"

	"golang.org/x/time/rate"
)

// The insights API refuses to serve more than 37 months of history.
const maxLookbackMonths = 37

// implements domain.InsightsClient against the ads insights API
type InsightsClient struct {
	client      *http.Client
	cfg         config.InsightsConfig
	logger      *logger.Logger
	metrics     *metrics.Metrics
	rateLimiter *rate.Limiter
}

type insightsPage struct {
	Data   []domain.RawRecord `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

type campaignListPage struct {
	Data []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		StartTime   string `json:"start_time"`
		CreatedTime string `json:"created_time"`
	} `json:"data"`
}

// creates a new insights client
func NewInsightsClient(cfg config.InsightsConfig, logger *logger.Logger, metrics *metrics.Metrics) *InsightsClient {
	return &InsightsClient{
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), 10),
	}
}

// FetchInsights pulls every ad-level daily record for the date range,
// splitting it into chunks of ChunkDays and paginating each chunk. The
// result is a best-effort fully materialized batch; per-chunk transient
// failures are retried with backoff before the whole fetch fails.
func (c *InsightsClient) FetchInsights(ctx context.Context, since, until time.Time) ([]domain.RawRecord, error) {
	start := time.Now()
	var records []domain.RawRecord

	chunkDays := c.cfg.ChunkDays
	if chunkDays <= 0 {
		chunkDays = 30
	}

	for chunkStart := since; !chunkStart.After(until); chunkStart = chunkStart.AddDate(0, 0, chunkDays) {
		chunkEnd := chunkStart.AddDate(0, 0, chunkDays-1)
		if chunkEnd.After(until) {
			chunkEnd = until
		}

		chunk, err := c.fetchChunk(ctx, chunkStart, chunkEnd)
		if err != nil {
			return nil, fmt.Errorf("fetch insights %s..%s: %w",
				chunkStart.Format("2006-01-02"), chunkEnd.Format("2006-01-02"), err)
		}
		records = append(records, chunk...)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"since":    since.Format("2006-01-02"),
		"until":    until.Format("2006-01-02"),
		"records":  len(records),
		"duration": time.Since(start),
	}).Info("Fetched insights")

	return records, nil
}

// fetchChunk paginates one date chunk to exhaustion.
func (c *InsightsClient) fetchChunk(ctx context.Context, since, until time.Time) ([]domain.RawRecord, error) {
	var records []domain.RawRecord
	after := ""

	for {
		page, err := c.fetchPage(ctx, since, until, after)
		if err != nil {
			return nil, err
		}
		records = append(records, page.Data...)

		if page.Paging.Next == "" || page.Paging.Cursors.After == "" {
			return records, nil
		}
		after = page.Paging.Cursors.After
	}
}

func (c *InsightsClient) fetchPage(ctx context.Context, since, until time.Time, after string) (*insightsPage, error) {
	endpoint := fmt.Sprintf("%s/%s/insights", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.AccountID)

	params := url.Values{}
	params.Set("level", "ad")
	params.Set("time_increment", "1")
	params.Set("since", since.Format("2006-01-02"))
	params.Set("until", until.Format("2006-01-02"))
	params.Set("limit", strconv.Itoa(c.cfg.PageSize))
	params.Set("access_token", c.cfg.AccessToken)
	if after != "" {
		params.Set("after", after)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		page, retryable, err := c.doPageRequest(ctx, endpoint, params)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.logger.WithContext(ctx).WithError(err).WithField("attempt", attempt+1).Warn("Retrying insights page")
	}
	return nil, fmt.Errorf("insights request failed after %d retries: %w", c.cfg.MaxRetries, lastErr)
}

// doPageRequest performs one HTTP round trip. The bool reports whether
// the failure is retryable (network errors, 429, 5xx).
func (c *InsightsClient) doPageRequest(ctx context.Context, endpoint string, params url.Values) (*insightsPage, bool, error) {
	start := time.Now()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordExternalAPIFailure("insights", "rate_limit")
		return nil, false, fmt.Errorf("rate limit exceeded: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"?"+params.Encode(), nil)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("insights", "request_creation")
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("insights", "network_error")
		return nil, true, fmt.Errorf("failed to fetch insights: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordExternalAPICall("insights", fmt.Sprintf("error_%d", resp.StatusCode), duration)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("insights API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("insights", "read_body")
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	var page insightsPage
	if err := json.Unmarshal(body, &page); err != nil {
		c.metrics.RecordExternalAPIFailure("insights", "json_parse")
		return nil, false, fmt.Errorf("failed to parse insights page: %w", err)
	}

	c.metrics.RecordExternalAPICall("insights", "success", duration)
	return &page, false, nil
}

// FirstCampaignStartDate returns the start date of the oldest campaign on
// the account, clamped to the API's 37-month lookback. When the campaign
// list cannot be read, the clamp date itself is returned so a full
// backfill still proceeds.
func (c *InsightsClient) FirstCampaignStartDate(ctx context.Context) (time.Time, error) {
	limit := time.Now().AddDate(0, -maxLookbackMonths, 0)

	endpoint := fmt.Sprintf("%s/%s/campaigns", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.AccountID)
	params := url.Values{}
	params.Set("fields", "id,name,start_time,created_time")
	params.Set("access_token", c.cfg.AccessToken)

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return limit, fmt.Errorf("rate limit exceeded: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return limit, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("campaigns", "network_error")
		c.logger.WithContext(ctx).WithError(err).Warn("Could not list campaigns, using lookback limit")
		return limit, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordExternalAPIFailure("campaigns", fmt.Sprintf("error_%d", resp.StatusCode))
		return limit, nil
	}

	var page campaignListPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		c.metrics.RecordExternalAPIFailure("campaigns", "json_parse")
		return limit, nil
	}

	var earliest time.Time
	for _, campaign := range page.Data {
		raw := campaign.StartTime
		if raw == "" {
			raw = campaign.CreatedTime
		}
		t, ok := parseCampaignTime(raw)
		if !ok {
			continue
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}

	if earliest.IsZero() || earliest.Before(limit) {
		return limit, nil
	}
	return earliest, nil
}

func parseCampaignTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02T15:04:05-0700", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if idx := strings.IndexByte(raw, 'T'); idx > 0 {
		if t, err := time.Parse("2006-01-02", raw[:idx]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
