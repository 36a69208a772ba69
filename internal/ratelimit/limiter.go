package ratelimit

import (
	"context"
	"time"

	"github.com/epicdm/campaignflow/internal/platform"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	Count   int
	Limit   int
	ResetAt time.Time
}

// Limiter answers admit/deny for a (tenant, scope) pair within a fixed
// window. Implementations may be process-local or backed by a shared store;
// callers must not assume the counters are global.
type Limiter interface {
	Admit(ctx context.Context, tenantID int64, scope string) (Decision, error)
}

// Hourly publish ceilings per platform, mirroring the platforms' API quotas.
var DefaultScopeLimits = map[string]int{
	platform.Twitter:   50,
	platform.Facebook:  35,
	platform.Instagram: 25,
	platform.LinkedIn:  20,
	platform.TikTok:    15,
	platform.YouTube:   10,
}

const DefaultLimit = 30

func limitFor(scope string, limits map[string]int, fallback int) int {
	if limit, ok := limits[scope]; ok {
		return limit
	}
	return fallback
}
