package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/epicdm/campaignflow/internal/service"
	"github.com/epicdm/campaignflow/internal/transfer"
)

type ScheduleHandler struct {
	s service.AutoScheduleService
}

func NewScheduleHandler(s service.AutoScheduleService) *ScheduleHandler {
	return &ScheduleHandler{s: s}
}

func (h *ScheduleHandler) PreviewSlots(c *fiber.Ctx) error {
	brandID := c.QueryInt("brand_id", 0)
	if brandID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "brand_id is required",
		})
	}

	slots, err := h.s.CandidateSlots(c.Context(), int64(brandID))
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to compute slots",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"slots": slots})
}

func (h *ScheduleHandler) AssignSlots(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)

	var req transfer.AssignSlotsRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}
	if req.BrandID == 0 || len(req.PostIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "brand_id and post_ids are required",
		})
	}

	assignments, err := h.s.Assign(c.Context(), tenantID, req.BrandID, req.PostIDs)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to assign slots",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"assigned":   assignments,
		"unassigned": len(req.PostIDs) - len(assignments),
	})
}
