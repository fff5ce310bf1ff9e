package domain

// Campaign status attributes from the enrichment lookup.
type CampaignStatus struct {
	Status           string `json:"status"`
	EffectiveStatus  string `json:"effective_status"`
	ConfiguredStatus string `json:"configured_status"`
}

// StatusUnknown is the safe default when a campaign lookup fails.
const StatusUnknown = "UNKNOWN"

// UnknownCampaignStatus returns the sentinel used on lookup failure.
func UnknownCampaignStatus() CampaignStatus {
	return CampaignStatus{
		Status:           StatusUnknown,
		EffectiveStatus:  StatusUnknown,
		ConfiguredStatus: StatusUnknown,
	}
}

// IsActive reports whether the campaign is currently delivering.
func (s CampaignStatus) IsActive() bool {
	return s.EffectiveStatus == "ACTIVE"
}

// Creative metadata attributes from the enrichment lookup. All fields
// default to "" when the lookup fails for an ad.
type CreativeInfo struct {
	CreativeID   string `json:"creative_id"`
	VideoURL     string `json:"video_url"`
	ImageURL     string `json:"image_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Name         string `json:"creative_name"`
	Body         string `json:"creative_body"`
	Title        string `json:"creative_title"`
	LinkURL      string `json:"link_url"`
}
