package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/epicdm/campaignflow/internal/platform"
	"github.com/epicdm/campaignflow/internal/ratelimit"
	"github.com/epicdm/campaignflow/internal/repository"
)

// RetryService re-drives failed and rate-limited publish attempts whose
// retry time has arrived, bounded by the attempt ceiling.
type RetryService interface {
	RunOnce(ctx context.Context) error
}

type retryService struct {
	d     dispatcher
	batch int
}

func NewRetryService(
	pr repository.PostRepository,
	vr repository.VariationRepository,
	ar repository.AttemptRepository,
	sa repository.SocialAccountRepository,
	registry *platform.Registry,
	limiter ratelimit.Limiter,
	media MediaResolver,
	batch int) RetryService {
	if batch <= 0 {
		batch = 50
	}
	return &retryService{
		d: dispatcher{
			pr:       pr,
			vr:       vr,
			ar:       ar,
			sa:       sa,
			registry: registry,
			limiter:  limiter,
			media:    media,
			now:      time.Now,
		},
		batch: batch,
	}
}

func (s *retryService) RunOnce(ctx context.Context) error {
	due, err := s.d.ar.ListDueRetries(ctx, s.d.now(), maxPublishAttempts, s.batch)
	if err != nil {
		return err
	}

	for _, attempt := range due {
		variation, err := s.d.vr.GetByID(ctx, attempt.VariationID)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if variation == nil || !variation.Retryable() {
			continue
		}

		post, err := s.d.pr.GetByID(ctx, variation.PostID)
		if err != nil || post == nil {
			if err != nil {
				slog.Info(err.Error())
			}
			continue
		}

		attemptNo := attempt.AttemptNumber + 1

		dec, err := s.d.limiter.Admit(ctx, post.TenantID, variation.Platform)
		if err != nil || !dec.Allowed {
			if err != nil {
				slog.Info(err.Error())
			}
			// Still limited: push the retry further out without publishing.
			if derr := s.d.recordDenied(ctx, post, variation, attemptNo, rateLimitRetryBackoff); derr != nil {
				slog.Info(derr.Error())
			}
		} else {
			s.d.attemptPublish(ctx, post, variation, attemptNo)
		}

		if err := s.d.refreshUnitStatus(ctx, post.ID); err != nil {
			slog.Info(err.Error())
		}
	}
	return nil
}
