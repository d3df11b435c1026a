package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/agenda-api/internal/repository"
	"github.com/medsched/agenda-api/pkg/metrics"
)

type Service struct {
	scheduleRepo repository.ScheduleRepository
	apptRepo     repository.AppointmentRepository
	metrics      *metrics.Metrics
}

func NewService(scheduleRepo repository.ScheduleRepository, apptRepo repository.AppointmentRepository, m *metrics.Metrics) *Service {
	return &Service{
		scheduleRepo: scheduleRepo,
		apptRepo:     apptRepo,
		metrics:      m,
	}
}

// isoWeekday maps time.Weekday to ISO numbering: Monday=1 .. Sunday=7.
func isoWeekday(date time.Time) int {
	wd := int(date.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// FreeSlots computes the bookable slot start times for a physician on a
// given date. Slots are always recomputed from the active rules and live
// appointment data; nothing is cached, which is what keeps schedule
// edits and bookings consistent without invalidation logic.
//
// A physician with no active rule for the resolved weekday gets an empty
// list: there is no fallback default schedule.
func (s *Service) FreeSlots(ctx context.Context, physicianID uuid.UUID, date time.Time) ([]string, error) {
	if s.metrics != nil {
		start := time.Now()
		defer func() {
			s.metrics.AvailabilityLatency.Observe(time.Since(start).Seconds())
		}()
	}

	rules, err := s.scheduleRepo.FindActiveForDay(ctx, physicianID, isoWeekday(date))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule rules: %w", err)
	}
	if len(rules) == 0 {
		return []string{}, nil
	}

	// Union across rules tolerates overlapping windows without
	// double-counting a slot.
	candidates := make(map[string]struct{})
	for _, rule := range rules {
		for _, slot := range GenerateSlots(rule) {
			candidates[slot] = struct{}{}
		}
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	occupied, err := s.apptRepo.ListOccupied(ctx, physicianID, dayStart, dayEnd, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch appointments: %w", err)
	}

	// Suppression is by exact minute. An appointment at an off-grid time
	// (one that matches no generated boundary) removes nothing here; the
	// booking validator is the authoritative collision check and works
	// on exact timestamps, not the slot grid.
	for _, appt := range occupied {
		delete(candidates, appt.ScheduledAt.UTC().Format("15:04"))
	}

	free := make([]string, 0, len(candidates))
	for slot := range candidates {
		free = append(free, slot)
	}
	sort.Strings(free)

	return free, nil
}
