package config

import (
	"os"
	"strconv"
	"time"
)

// Application settings
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Insights   InsightsConfig
	Enrichment EnrichmentConfig
	Sheets     SheetsConfig
}

// Server settings
type ServerConfig struct {
	Port string
}

// Insights API settings (fetch collaborator)
type InsightsConfig struct {
	BaseURL            string
	AccessToken        string
	AccountID          string
	PageSize           int
	ChunkDays          int
	RequestTimeout     time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RateLimitPerSecond int
}

// Enrichment lookup settings
type EnrichmentConfig struct {
	CampaignAPIURL string
	CreativeAPIURL string
	RequestTimeout time.Duration
}

// Spreadsheet sink settings
type SheetsConfig struct {
	SinkURL       string
	SinkSecret    string
	SpreadsheetID string
}

// Logging settings
type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Insights: InsightsConfig{
			BaseURL:            getEnv("INSIGHTS_API_URL", ""),
			AccessToken:        getEnv("INSIGHTS_ACCESS_TOKEN", ""),
			AccountID:          getEnv("INSIGHTS_ACCOUNT_ID", ""),
			PageSize:           getIntEnv("INSIGHTS_PAGE_SIZE", 500),
			ChunkDays:          getIntEnv("INSIGHTS_CHUNK_DAYS", 30),
			RequestTimeout:     getDurationEnv("REQUEST_TIMEOUT", "30s"),
			MaxRetries:         getIntEnv("MAX_RETRIES", 3),
			RetryBackoff:       getDurationEnv("RETRY_BACKOFF", "2s"),
			RateLimitPerSecond: getIntEnv("RATE_LIMIT_PER_SECOND", 100),
		},
		Enrichment: EnrichmentConfig{
			CampaignAPIURL: getEnv("CAMPAIGN_API_URL", ""),
			CreativeAPIURL: getEnv("CREATIVE_API_URL", ""),
			RequestTimeout: getDurationEnv("ENRICHMENT_TIMEOUT", "10s"),
		},
		Sheets: SheetsConfig{
			SinkURL:       getEnv("SHEETS_SINK_URL", ""),
			SinkSecret:    getEnv("SHEETS_SINK_SECRET", ""),
			SpreadsheetID: getEnv("SPREADSHEET_ID", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
