package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"adsreport/internal/domain"
	"adsreport/pkg/config"
	"adsreport/pkg/logger"
	"adsreport/pkg/metrics"
)

// implements domain.CreativeInfoLookup with an in-memory cache. On any
// lookup failure every field stays "", the safe default.
type CreativeRepository struct {
	client  *http.Client
	baseURL string
	token   string
	cache   map[string]domain.CreativeInfo
	mutex   sync.RWMutex
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// creates a new creative metadata repository
func NewCreativeRepository(cfg config.EnrichmentConfig, token string, logger *logger.Logger, metrics *metrics.Metrics) *CreativeRepository {
	return &CreativeRepository{
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		baseURL: strings.TrimRight(cfg.CreativeAPIURL, "/"),
		token:   token,
		cache:   make(map[string]domain.CreativeInfo),
		logger:  logger,
		metrics: metrics,
	}
}

func (r *CreativeRepository) Info(ctx context.Context, adID string) domain.CreativeInfo {
	if adID == "" {
		return domain.CreativeInfo{}
	}

	r.mutex.RLock()
	info, ok := r.cache[adID]
	r.mutex.RUnlock()
	if ok {
		return info
	}

	info, err := r.fetch(ctx, adID)
	if err != nil {
		r.metrics.RecordExternalAPIFailure("creative", "lookup")
		r.logger.WithContext(ctx).WithError(err).WithField("ad_id", adID).
			Warn("Creative lookup failed, using empty metadata")
		info = domain.CreativeInfo{}
	}

	r.mutex.Lock()
	r.cache[adID] = info
	r.mutex.Unlock()

	return info
}

func (r *CreativeRepository) fetch(ctx context.Context, adID string) (domain.CreativeInfo, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=creative&access_token=%s", r.baseURL, adID, r.token)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return domain.CreativeInfo{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.CreativeInfo{}, fmt.Errorf("failed to fetch creative: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.CreativeInfo{}, fmt.Errorf("creative API returned status %d", resp.StatusCode)
	}

	var payload struct {
		Creative any `json:"creative"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.CreativeInfo{}, fmt.Errorf("failed to parse creative response: %w", err)
	}

	return DecodeCreative(payload.Creative), nil
}

// The creative field arrives in one of a closed set of encodings:
//
//   - an object carrying the creative attributes
//   - a plain string creative id
//   - a string with an embedded JSON object
//   - an opaque blob that only yields an id to pattern matching
//
// Each variant has its own decoder; there is no runtime type probing
// beyond this one dispatch.
func DecodeCreative(raw any) domain.CreativeInfo {
	switch v := raw.(type) {
	case map[string]any:
		return creativeFromObject(v)
	case string:
		return creativeFromString(v)
	default:
		return domain.CreativeInfo{}
	}
}

func creativeFromObject(obj map[string]any) domain.CreativeInfo {
	str := func(key string) string {
		s, _ := obj[key].(string)
		return s
	}
	info := domain.CreativeInfo{
		CreativeID:   str("id"),
		VideoURL:     str("video_url"),
		ImageURL:     str("image_url"),
		ThumbnailURL: str("thumbnail_url"),
		Name:         str("name"),
		Body:         str("body"),
		Title:        str("title"),
		LinkURL:      str("link_url"),
	}
	if info.CreativeID == "" {
		info.CreativeID = str("creative_id")
	}
	return info
}

var digitsOnly = regexp.MustCompile(`^\d+$`)
var embeddedCreativeID = regexp.MustCompile(`"(?:creative_)?id"\s*:\s*"?(\d+)"?`)

func creativeFromString(s string) domain.CreativeInfo {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.CreativeInfo{}
	}

	// Plain string id.
	if digitsOnly.MatchString(s) {
		return domain.CreativeInfo{CreativeID: s}
	}

	// String with an embedded JSON object.
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return creativeFromObject(obj)
	}

	// Opaque blob: the id is the only recoverable attribute.
	if m := embeddedCreativeID.FindStringSubmatch(s); m != nil {
		return domain.CreativeInfo{CreativeID: m[1]}
	}
	return domain.CreativeInfo{}
}
