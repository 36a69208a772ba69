package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/epicdm/campaignflow/internal/models"
	"github.com/epicdm/campaignflow/internal/platform"
	"github.com/epicdm/campaignflow/internal/ratelimit"
	"github.com/epicdm/campaignflow/internal/repository"
	"github.com/epicdm/campaignflow/internal/telemetry"
)

const (
	maxPublishAttempts = 3

	// Backoff schedule: a near-term retry after the first rate-limit denial,
	// then deliberately widening delays.
	rateLimitFirstRetry   = 15 * time.Minute
	rateLimitRetryBackoff = 30 * time.Minute
	failureRetryBackoff   = 60 * time.Minute
)

// MediaResolver turns stored media keys into URLs a platform can fetch.
type MediaResolver interface {
	ResolveURLs(ctx context.Context, keys []string) ([]string, error)
}

type PublisherService interface {
	Run()
	RunOnce(ctx context.Context) error
	PublishUnit(ctx context.Context, postID int64) error
}

type publisherService struct {
	d       dispatcher
	retry   RetryService
	workers int
	mu      sync.Mutex
}

func NewPublisherService(
	pr repository.PostRepository,
	vr repository.VariationRepository,
	ar repository.AttemptRepository,
	sa repository.SocialAccountRepository,
	registry *platform.Registry,
	limiter ratelimit.Limiter,
	media MediaResolver,
	retry RetryService,
	workers int) PublisherService {
	if workers <= 0 {
		workers = 10
	}
	return &publisherService{
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
		retry:   retry,
		workers: workers,
	}
}

// Run is the cron entry point. Passes never overlap: if the previous pass is
// still publishing, this trigger is skipped.
func (s *publisherService) Run() {
	if !s.mu.TryLock() {
		slog.Info("publishing pass still running, skipping trigger")
		return
	}
	defer s.mu.Unlock()

	ctx := context.Background()
	if err := s.RunOnce(ctx); err != nil {
		slog.Info(err.Error())
	}
	if s.retry != nil {
		if err := s.retry.RunOnce(ctx); err != nil {
			slog.Info(err.Error())
		}
	}
}

// RunOnce publishes every due content unit. Units are processed concurrently
// under a worker ceiling; variations within one unit run sequentially so the
// unit's final status is computed only after all its attempts finished.
func (s *publisherService) RunOnce(ctx context.Context) error {
	due, err := s.d.pr.ListDue(ctx, s.d.now(), 100)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.workers)

	for _, post := range due {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(post *models.ScheduledPost) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := s.PublishUnit(ctx, post.ID); err != nil {
				slog.Info(fmt.Sprintf("publishing post %d: %v", post.ID, err))
			}
		}(post)
	}

	wg.Wait()
	return nil
}

func (s *publisherService) PublishUnit(ctx context.Context, postID int64) error {
	post, err := s.d.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return ErrNotFound
	}

	if err := s.d.pr.UpdateStatus(ctx, models.PostStatusPublishing, postID); err != nil {
		return err
	}

	variations, err := s.d.vr.ListEligible(ctx, postID)
	if err != nil {
		return err
	}
	if len(variations) == 0 {
		// Nothing dispatchable: finalize the unit instead of re-scanning
		// it on every pass.
		all, aerr := s.d.vr.ListByPostID(ctx, postID)
		if aerr != nil {
			return aerr
		}
		status := models.PostStatusFailed
		for _, v := range all {
			if v.Status == models.VariationStatusPublished {
				status = models.PostStatusPublished
			}
		}
		return s.d.pr.UpdateStatus(ctx, status, postID)
	}

	for _, v := range variations {
		attemptNo, err := s.d.nextAttemptNumber(ctx, v.ID)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if attemptNo == 0 {
			// Backoff still pending; the retry pass re-drives it when due.
			continue
		}

		dec, err := s.d.limiter.Admit(ctx, post.TenantID, v.Platform)
		if err != nil || !dec.Allowed {
			if err != nil {
				slog.Info(err.Error())
			}
			// Rate limited variations stay retryable; the unit is not failed.
			if derr := s.d.recordDenied(ctx, post, v, attemptNo, rateLimitFirstRetry); derr != nil {
				slog.Info(derr.Error())
			}
			continue
		}

		s.d.attemptPublish(ctx, post, v, attemptNo)
	}

	return s.d.refreshUnitStatus(ctx, postID)
}

// dispatcher holds the publish mechanics shared by the scheduler pass and
// the retry/backoff pass.
type dispatcher struct {
	pr       repository.PostRepository
	vr       repository.VariationRepository
	ar       repository.AttemptRepository
	sa       repository.SocialAccountRepository
	registry *platform.Registry
	limiter  ratelimit.Limiter
	media    MediaResolver
	now      func() time.Time
}

// nextAttemptNumber returns the number for a fresh dispatch. A zero return
// with nil error means the variation's backoff has not expired; the retry
// pass owns it until then.
func (d *dispatcher) nextAttemptNumber(ctx context.Context, variationID int64) (int, error) {
	latest, err := d.ar.LatestByVariation(ctx, variationID)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return 1, nil
	}
	if latest.Status == models.AttemptStatusSuccess {
		return 0, fmt.Errorf("variation %d already published", variationID)
	}
	if latest.NextRetryAt.Valid && d.now().Before(latest.NextRetryAt.Time) {
		return 0, nil
	}
	return latest.AttemptNumber + 1, nil
}

// recordDenied logs a rate-limited attempt and schedules the retry. At the
// attempt ceiling the variation is finalized instead.
func (d *dispatcher) recordDenied(ctx context.Context, post *models.ScheduledPost, v *models.PostVariation, attemptNo int, retryIn time.Duration) error {
	telemetry.RateLimitDenials.WithLabelValues(v.Platform).Inc()
	telemetry.PublishAttempts.WithLabelValues(v.Platform, models.AttemptStatusRateLimited).Inc()

	attempt := &models.PublishAttempt{
		TenantID:      post.TenantID,
		VariationID:   v.ID,
		Platform:      v.Platform,
		Status:        models.AttemptStatusRateLimited,
		ErrorMessage:  "platform rate limit reached",
		AttemptNumber: attemptNo,
	}

	if attemptNo >= maxPublishAttempts {
		// No next-retry time: the ceiling makes this terminal.
		if _, err := d.ar.Create(ctx, attempt); err != nil {
			return err
		}
		return d.vr.MarkFailed(ctx, v.ID, "publish attempts exhausted while rate limited")
	}

	attempt.NextRetryAt = nullTime(d.now().Add(retryIn))
	if _, err := d.ar.Create(ctx, attempt); err != nil {
		return err
	}
	return d.vr.UpdateStatus(ctx, v.ID, models.VariationStatusScheduled)
}

// attemptPublish dispatches one admitted variation and records the outcome.
func (d *dispatcher) attemptPublish(ctx context.Context, post *models.ScheduledPost, v *models.PostVariation, attemptNo int) {
	if err := d.vr.UpdateStatus(ctx, v.ID, models.VariationStatusPublishing); err != nil {
		slog.Info(err.Error())
	}

	result, err := d.dispatch(ctx, post, v)
	if err != nil {
		telemetry.PublishAttempts.WithLabelValues(v.Platform, models.AttemptStatusFailed).Inc()
		attempt := &models.PublishAttempt{
			TenantID:      post.TenantID,
			VariationID:   v.ID,
			Platform:      v.Platform,
			Status:        models.AttemptStatusFailed,
			ErrorMessage:  err.Error(),
			AttemptNumber: attemptNo,
		}

		if attemptNo >= maxPublishAttempts {
			if _, cerr := d.ar.Create(ctx, attempt); cerr != nil {
				slog.Info(cerr.Error())
			}
			if merr := d.vr.MarkFailed(ctx, v.ID, err.Error()); merr != nil {
				slog.Info(merr.Error())
			}
			return
		}

		attempt.NextRetryAt = nullTime(d.now().Add(failureRetryBackoff))
		if _, cerr := d.ar.Create(ctx, attempt); cerr != nil {
			slog.Info(cerr.Error())
		}
		if uerr := d.vr.UpdateStatus(ctx, v.ID, models.VariationStatusScheduled); uerr != nil {
			slog.Info(uerr.Error())
		}
		return
	}

	telemetry.PublishAttempts.WithLabelValues(v.Platform, models.AttemptStatusSuccess).Inc()
	attempt := &models.PublishAttempt{
		TenantID:        post.TenantID,
		VariationID:     v.ID,
		Platform:        v.Platform,
		Status:          models.AttemptStatusSuccess,
		ExternalPostID:  nullString(result.PostID),
		ExternalPostURL: nullString(result.PostURL),
		AttemptNumber:   attemptNo,
	}
	if _, cerr := d.ar.Create(ctx, attempt); cerr != nil {
		slog.Info(cerr.Error())
	}
	if merr := d.vr.MarkPublished(ctx, v.ID, result.PostID, result.PostURL); merr != nil {
		slog.Info(merr.Error())
	}
}

func (d *dispatcher) dispatch(ctx context.Context, post *models.ScheduledPost, v *models.PostVariation) (*platform.PublishResult, error) {
	client, ok := d.registry.Client(v.Platform)
	if !ok {
		return nil, fmt.Errorf("no publish client for platform %s", v.Platform)
	}
	if !v.AccountID.Valid {
		return nil, errors.New("variation has no bound destination account")
	}

	account, err := d.sa.GetByID(ctx, v.AccountID.Int64)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.New("destination account not found")
	}

	var mediaURLs []string
	if len(v.MediaKeys) > 0 && d.media != nil {
		mediaURLs, err = d.media.ResolveURLs(ctx, v.MediaKeys)
		if err != nil {
			return nil, fmt.Errorf("resolving media: %w", err)
		}
	}

	caption := v.Caption
	if caption == "" {
		caption = post.Caption
	}

	return client.Publish(ctx, platform.PublishRequest{
		TenantID:    post.TenantID,
		AccountRef:  account.AccountRef,
		AccessToken: account.AccessToken,
		Title:       post.Title,
		Caption:     caption,
		MediaURLs:   mediaURLs,
	})
}

// refreshUnitStatus recomputes the unit status from its variations:
// published if any variation succeeded, scheduled while any is still
// retryable, failed only when none succeeded and none can be retried.
func (d *dispatcher) refreshUnitStatus(ctx context.Context, postID int64) error {
	variations, err := d.vr.ListByPostID(ctx, postID)
	if err != nil {
		return err
	}
	return d.pr.UpdateStatus(ctx, computeUnitStatus(variations), postID)
}

func computeUnitStatus(variations []*models.PostVariation) string {
	anyPublished := false
	anyRetryable := false
	for _, v := range variations {
		switch {
		case v.Status == models.VariationStatusPublished:
			anyPublished = true
		case v.Retryable() || v.Status == models.VariationStatusPublishing:
			anyRetryable = true
		}
	}

	if anyPublished {
		return models.PostStatusPublished
	}
	if anyRetryable {
		return models.PostStatusScheduled
	}
	return models.PostStatusFailed
}
