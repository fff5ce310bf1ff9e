package domain

import (
	"context"
	"time"
)

// interface for the insights fetch collaborator
type InsightsClient interface {
	FetchInsights(ctx context.Context, since, until time.Time) ([]RawRecord, error)
	FirstCampaignStartDate(ctx context.Context) (time.Time, error)
}

// interface for the campaign status enrichment lookup
type CampaignStatusLookup interface {
	Status(ctx context.Context, campaignID string) CampaignStatus
}

// interface for the creative metadata enrichment lookup
type CreativeInfoLookup interface {
	Info(ctx context.Context, adID string) CreativeInfo
}

// interface for the spreadsheet sink
type SheetWriter interface {
	Publish(ctx context.Context, tables map[string]*Table) error
}
