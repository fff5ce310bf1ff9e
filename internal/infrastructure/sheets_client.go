package infrastructure

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"adsreport/internal/domain"
	"adsreport/pkg/config"
	"adsreport/pkg/logger"
	"adsreport/pkg/metrics"

	"golang.org/x/time/rate"
)

// implements domain.SheetWriter against the spreadsheet sink. Each table
// overwrites one worksheet: the target region is cleared and the rendered
// header plus rows are written from A1.
type SheetsClient struct {
	client      *http.Client
	cfg         config.SheetsConfig
	logger      *logger.Logger
	metrics     *metrics.Metrics
	rateLimiter *rate.Limiter
}

type sheetPayload struct {
	SpreadsheetID string  `json:"spreadsheet_id"`
	Worksheet     string  `json:"worksheet"`
	Clear         bool    `json:"clear"`
	Range         string  `json:"range"`
	Values        [][]any `json:"values"`
}

// creates a new spreadsheet sink client
func NewSheetsClient(cfg config.SheetsConfig, timeout time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *SheetsClient {
	return &SheetsClient{
		client:      &http.Client{Timeout: timeout},
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rate.NewLimiter(rate.Limit(2), 2),
	}
}

// Publish uploads every table, in name order for deterministic runs. A
// failed upload aborts the publish; partially written worksheets are
// overwritten by the next successful run.
func (c *SheetsClient) Publish(ctx context.Context, tables map[string]*domain.Table) error {
	if c.cfg.SinkURL == "" {
		return fmt.Errorf("sheets sink URL not configured")
	}

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := c.uploadTable(ctx, tables[name]); err != nil {
			return fmt.Errorf("upload table %s: %w", name, err)
		}
		c.metrics.RecordTablePublished(name)
	}

	c.logger.WithContext(ctx).WithField("tables", len(tables)).Info("Published report tables")
	return nil
}

func (c *SheetsClient) uploadTable(ctx context.Context, table *domain.Table) error {
	start := time.Now()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordExternalAPIFailure("sheets", "rate_limit")
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	payload, err := json.Marshal(sheetPayload{
		SpreadsheetID: c.cfg.SpreadsheetID,
		Worksheet:     table.Name,
		Clear:         true,
		Range:         "A1",
		Values:        table.Render(),
	})
	if err != nil {
		c.metrics.RecordExternalAPIFailure("sheets", "json_marshal")
		return fmt.Errorf("failed to marshal table: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.SinkURL, bytes.NewReader(payload))
	if err != nil {
		c.metrics.RecordExternalAPIFailure("sheets", "request_creation")
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.cfg.SinkSecret != "" {
		req.Header.Set("X-Signature", c.signPayload(payload))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("sheets", "network_error")
		return fmt.Errorf("failed to upload table: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.RecordExternalAPICall("sheets", fmt.Sprintf("error_%d", resp.StatusCode), duration)
		return fmt.Errorf("sheets sink returned status %d", resp.StatusCode)
	}

	c.metrics.RecordExternalAPICall("sheets", "success", duration)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"worksheet": table.Name,
		"rows":      len(table.Rows),
		"columns":   len(table.Columns),
		"duration":  duration,
	}).Info("Uploaded table to sheet")

	return nil
}

// generates HMAC-SHA256 signature for the payload
func (c *SheetsClient) signPayload(payload []byte) string {
	h := hmac.New(sha256.New, []byte(c.cfg.SinkSecret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
