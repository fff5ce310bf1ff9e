package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"adsreport/internal/domain"
	"adsreport/pkg/config"
	"adsreport/pkg/logger"
	"adsreport/pkg/metrics"
)

// implements domain.CampaignStatusLookup with an in-memory cache. A
// failed lookup caches and returns the UNKNOWN sentinel; enrichment
// failures are never fatal to a batch.
type CampaignStatusRepository struct {
	client  *http.Client
	baseURL string
	token   string
	cache   map[string]domain.CampaignStatus
	mutex   sync.RWMutex
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// creates a new campaign status repository
func NewCampaignStatusRepository(cfg config.EnrichmentConfig, token string, logger *logger.Logger, metrics *metrics.Metrics) *CampaignStatusRepository {
	return &CampaignStatusRepository{
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		baseURL: strings.TrimRight(cfg.CampaignAPIURL, "/"),
		token:   token,
		cache:   make(map[string]domain.CampaignStatus),
		logger:  logger,
		metrics: metrics,
	}
}

func (r *CampaignStatusRepository) Status(ctx context.Context, campaignID string) domain.CampaignStatus {
	if campaignID == "" {
		return domain.UnknownCampaignStatus()
	}

	r.mutex.RLock()
	status, ok := r.cache[campaignID]
	r.mutex.RUnlock()
	if ok {
		return status
	}

	status, err := r.fetch(ctx, campaignID)
	if err != nil {
		r.metrics.RecordExternalAPIFailure("campaign_status", "lookup")
		r.logger.WithContext(ctx).WithError(err).WithField("campaign_id", campaignID).
			Warn("Campaign status lookup failed, using UNKNOWN")
		status = domain.UnknownCampaignStatus()
	}

	r.mutex.Lock()
	r.cache[campaignID] = status
	r.mutex.Unlock()

	return status
}

func (r *CampaignStatusRepository) fetch(ctx context.Context, campaignID string) (domain.CampaignStatus, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=status,effective_status,configured_status&access_token=%s",
		r.baseURL, campaignID, r.token)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return domain.CampaignStatus{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.CampaignStatus{}, fmt.Errorf("failed to fetch campaign status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.CampaignStatus{}, fmt.Errorf("campaign API returned status %d", resp.StatusCode)
	}

	var status domain.CampaignStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return domain.CampaignStatus{}, fmt.Errorf("failed to parse campaign status: %w", err)
	}
	if status.Status == "" {
		status.Status = domain.StatusUnknown
	}
	if status.EffectiveStatus == "" {
		status.EffectiveStatus = domain.StatusUnknown
	}
	if status.ConfiguredStatus == "" {
		status.ConfiguredStatus = domain.StatusUnknown
	}
	return status, nil
}
