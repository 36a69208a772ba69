package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/epicdm/campaignflow/internal/repository"
	"github.com/epicdm/campaignflow/internal/service"
	"github.com/epicdm/campaignflow/internal/transfer"
	"github.com/epicdm/campaignflow/internal/validator"
)

type JobHandler struct {
	s service.JobService
}

func NewJobHandler(s service.JobService) *JobHandler {
	return &JobHandler{s: s}
}

func (h *JobHandler) EnqueueJob(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)

	var submission transfer.JobSubmission
	if err := c.BodyParser(&submission); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	req := service.EnqueueRequest{
		JobType:  submission.JobType,
		TenantID: tenantID,
		BrandID:  submission.BrandID,
		Payload:  submission.Payload,
		Priority: submission.Priority,
		DedupKey: submission.DedupKey,
	}
	if submission.RunAt != "" {
		runAt, err := time.Parse("2006-01-02T15:04", submission.RunAt)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid run_at format",
			})
		}
		req.RunAt = runAt
	}

	job, err := h.s.Enqueue(c.Context(), req)
	if err != nil {
		return jobErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(job)
}

func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)

	filter := repository.JobFilter{
		Status:  c.Query("status"),
		JobType: c.Query("job_type"),
		BrandID: int64(c.QueryInt("brand_id", 0)),
		Cursor:  int64(c.QueryInt("cursor", 0)),
		Limit:   c.QueryInt("limit", 20),
	}

	jobs, hasMore, err := h.s.List(c.Context(), tenantID, filter)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list jobs",
		})
	}

	var nextCursor int64
	if hasMore && len(jobs) > 0 {
		nextCursor = jobs[len(jobs)-1].ID
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"jobs":        jobs,
		"has_more":    hasMore,
		"next_cursor": nextCursor,
	})
}

func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	jobID := c.QueryInt("id", 0)

	job, err := h.s.Get(c.Context(), int64(jobID), tenantID)
	if err != nil {
		return jobErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(job)
}

func (h *JobHandler) CancelJob(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	jobID := c.QueryInt("id", 0)

	if err := h.s.Cancel(c.Context(), int64(jobID), tenantID); err != nil {
		return jobErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Job cancelled",
	})
}

func (h *JobHandler) RetryJob(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	jobID := c.QueryInt("id", 0)

	job, err := h.s.Retry(c.Context(), int64(jobID), tenantID)
	if err != nil {
		return jobErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(job)
}

func jobErrorResponse(c *fiber.Ctx, err error) error {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "payload validation failed",
			"fields": verr.Fields,
		})
	}

	var qerr *service.QuotaExceededError
	if errors.As(err, &qerr) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":   qerr.Error(),
			"scope":   qerr.Scope,
			"current": qerr.Current,
			"limit":   qerr.Limit,
		})
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	case errors.Is(err, service.ErrNotCancellable), errors.Is(err, service.ErrNotRetryable), errors.Is(err, service.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	slog.Error(err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
