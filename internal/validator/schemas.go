package validator

import "github.com/epicdm/campaignflow/internal/models"

type PublishPostPayload struct {
	PostID    int64    `json:"post_id" validate:"required,gt=0"`
	Platforms []string `json:"platforms" validate:"omitempty,dive,oneof=twitter facebook instagram linkedin tiktok youtube"`
}

type GenerateContentPayload struct {
	BrandID int64  `json:"brand_id" validate:"required,gt=0"`
	Topic   string `json:"topic" validate:"required,min=3,max=200"`
	Tone    string `json:"tone" validate:"omitempty,oneof=casual professional playful bold"`
	Count   int    `json:"count" validate:"omitempty,gte=1,lte=10"`
}

type SyncAnalyticsPayload struct {
	Platform string `json:"platform" validate:"required,oneof=twitter facebook instagram linkedin tiktok youtube"`
	Since    string `json:"since" validate:"omitempty,datetime=2006-01-02"`
}

type BrandAuditPayload struct {
	BrandID    int64  `json:"brand_id" validate:"required,gt=0"`
	WebsiteURL string `json:"website_url" validate:"required,url"`
	Depth      int    `json:"depth" validate:"omitempty,gte=1,lte=5"`
}

type CampaignLaunchPayload struct {
	CampaignID int64    `json:"campaign_id" validate:"required,gt=0"`
	Budget     float64  `json:"budget" validate:"required,gt=0"`
	Channels   []string `json:"channels" validate:"required,min=1,dive,oneof=twitter facebook instagram linkedin tiktok youtube"`
}

// schemas maps every job type to its canonical payload. Adding a job type
// means adding exactly one entry here; the exhaustiveness test enforces it.
var schemas = map[string]func() any{
	models.JobTypePublishPost:     func() any { return new(PublishPostPayload) },
	models.JobTypeGenerateContent: func() any { return new(GenerateContentPayload) },
	models.JobTypeSyncAnalytics:   func() any { return new(SyncAnalyticsPayload) },
	models.JobTypeBrandAudit:      func() any { return new(BrandAuditPayload) },
	models.JobTypeCampaignLaunch:  func() any { return new(CampaignLaunchPayload) },
}

// HasSchema reports whether a payload schema is registered for the job type.
func HasSchema(jobType string) bool {
	_, ok := schemas[jobType]
	return ok
}
