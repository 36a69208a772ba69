package transfer

import (
	"encoding/json"
	"time"
)

// JobSubmission is the wire shape accepted by the enqueue endpoint. Exactly
// one of TenantID/BrandID must be set; when BrandID is given its owning
// tenant is resolved and is authoritative.
type JobSubmission struct {
	JobType  string          `json:"job_type"`
	TenantID int64           `json:"tenant_id"`
	BrandID  int64           `json:"brand_id"`
	Payload  json.RawMessage `json:"payload"`
	Priority string          `json:"priority"`
	RunAt    string          `json:"run_at"`
	DedupKey string          `json:"dedup_key"`
}

type SlotAssignment struct {
	PostID        int64     `json:"post_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

type AssignSlotsRequest struct {
	BrandID int64   `json:"brand_id"`
	PostIDs []int64 `json:"post_ids"`
}
