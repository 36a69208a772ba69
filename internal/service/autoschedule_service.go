package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/epicdm/campaignflow/internal/models"
	"github.com/epicdm/campaignflow/internal/repository"
	"github.com/epicdm/campaignflow/internal/transfer"
)

const defaultScheduleHorizon = 7 * 24 * time.Hour

// AutoScheduleService proposes future publish slots from a brand's posting
// windows and assigns unscheduled content to them chronologically.
type AutoScheduleService interface {
	CandidateSlots(ctx context.Context, brandID int64) ([]time.Time, error)
	Assign(ctx context.Context, tenantID, brandID int64, postIDs []int64) ([]transfer.SlotAssignment, error)
}

type autoScheduleService struct {
	wr      repository.PostingWindowRepository
	pr      repository.PostRepository
	horizon time.Duration
	now     func() time.Time
}

func NewAutoScheduleService(wr repository.PostingWindowRepository, pr repository.PostRepository) AutoScheduleService {
	return &autoScheduleService{
		wr:      wr,
		pr:      pr,
		horizon: defaultScheduleHorizon,
		now:     time.Now,
	}
}

// Weekday-only fallback used when a brand has no configured windows.
var defaultSlotTimes = []struct{ hour, minute int }{
	{9, 0},
	{12, 30},
	{17, 0},
}

// CandidateSlots returns free publish slots over the horizon, earliest
// first, excluding slots already occupied by scheduled content.
func (s *autoScheduleService) CandidateSlots(ctx context.Context, brandID int64) ([]time.Time, error) {
	from := s.now()
	to := from.Add(s.horizon)

	windows, err := s.wr.ListByBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}

	occupiedTimes, err := s.pr.ListScheduledTimes(ctx, brandID, from, to)
	if err != nil {
		return nil, err
	}
	occupied := make(map[int64]bool, len(occupiedTimes))
	for _, t := range occupiedTimes {
		occupied[t.UTC().Truncate(time.Minute).Unix()] = true
	}

	var slots []time.Time
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	for !day.After(to) {
		for _, slot := range s.slotsForDay(day, windows) {
			if !slot.After(from) || slot.After(to) {
				continue
			}
			if occupied[slot.Unix()] {
				continue
			}
			slots = append(slots, slot)
		}
		day = day.AddDate(0, 0, 1)
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots, nil
}

func (s *autoScheduleService) slotsForDay(day time.Time, windows []*models.PostingWindow) []time.Time {
	var slots []time.Time
	if len(windows) == 0 {
		// Default schedule covers weekdays only.
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			return nil
		}
		for _, w := range defaultSlotTimes {
			slots = append(slots, day.Add(time.Duration(w.hour)*time.Hour+time.Duration(w.minute)*time.Minute))
		}
		return slots
	}

	for _, w := range windows {
		if int(day.Weekday()) != w.Weekday {
			continue
		}
		slots = append(slots, day.Add(time.Duration(w.Hour)*time.Hour+time.Duration(w.Minute)*time.Minute))
	}
	return slots
}

// Assign pairs content ids with free slots in order until either list runs
// out. Partial assignment is expected, not an error.
func (s *autoScheduleService) Assign(ctx context.Context, tenantID, brandID int64, postIDs []int64) ([]transfer.SlotAssignment, error) {
	slots, err := s.CandidateSlots(ctx, brandID)
	if err != nil {
		return nil, err
	}

	var assignments []transfer.SlotAssignment
	slotIdx := 0
	for _, postID := range postIDs {
		if slotIdx >= len(slots) {
			break
		}

		post, err := s.pr.GetByID(ctx, postID)
		if err != nil {
			return assignments, err
		}
		if post == nil || post.TenantID != tenantID {
			slog.Info("skipping post not owned by tenant")
			continue
		}

		if err := s.pr.UpdateSchedule(ctx, postID, slots[slotIdx]); err != nil {
			return assignments, err
		}
		assignments = append(assignments, transfer.SlotAssignment{PostID: postID, ScheduledTime: slots[slotIdx]})
		slotIdx++
	}
	return assignments, nil
}
