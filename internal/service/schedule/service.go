package schedule

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medsched/agenda-api/internal/model"
	"github.com/medsched/agenda-api/internal/repository"
	apperrors "github.com/medsched/agenda-api/pkg/errors"
	"github.com/medsched/agenda-api/pkg/validator"
)

type Service struct {
	repo repository.ScheduleRepository
}

func NewService(repo repository.ScheduleRepository) *Service {
	return &Service{repo: repo}
}

// Create persists a new weekly rule. Only physicians create rules, and
// only for themselves; one active rule per weekday is allowed, so a
// second one is rejected until the first is deactivated.
func (s *Service) Create(ctx context.Context, actor model.Actor, req *model.CreateScheduleRuleRequest) (*model.WorkScheduleRule, error) {
	if actor.Role != model.UserRolePhysician {
		return nil, apperrors.Forbidden("only physicians can create work schedules")
	}
	if req.PhysicianID != actor.ID {
		return nil, apperrors.Forbidden("physicians can only manage their own schedule")
	}

	if !validator.IsTimeOfDay(req.StartTime) || !validator.IsTimeOfDay(req.EndTime) {
		return nil, apperrors.BadRequest("start and end times must be in HH:MM format", nil)
	}

	duration := req.SlotDurationMinutes
	if duration == 0 {
		duration = model.DefaultSlotDurationMinutes
	}
	if duration < 0 {
		return nil, apperrors.BadRequest("slot duration must be positive", nil)
	}

	existing, err := s.repo.FindActiveForDay(ctx, req.PhysicianID, req.DayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing rules: %w", err)
	}
	if len(existing) > 0 {
		return nil, apperrors.Conflict("an active schedule already exists for this day; deactivate it before creating a new one")
	}

	rule := &model.WorkScheduleRule{
		PhysicianID:         req.PhysicianID,
		DayOfWeek:           req.DayOfWeek,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		SlotDurationMinutes: duration,
		Active:              true,
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// Update applies a field-level partial update; nil fields keep their
// stored value.
func (s *Service) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateScheduleRuleRequest) (*model.WorkScheduleRule, error) {
	rule, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, rule); err != nil {
		return nil, err
	}

	if req.DayOfWeek != nil {
		if *req.DayOfWeek < model.DayOfWeekMin || *req.DayOfWeek > model.DayOfWeekMax {
			return nil, apperrors.BadRequest("day of week must be between 1 (Monday) and 7 (Sunday)", nil)
		}
		// Moving the rule to another weekday is subject to the same
		// one-active-rule-per-day constraint as creating one there.
		if *req.DayOfWeek != rule.DayOfWeek {
			existing, err := s.repo.FindActiveForDay(ctx, rule.PhysicianID, *req.DayOfWeek)
			if err != nil {
				return nil, fmt.Errorf("failed to check existing rules: %w", err)
			}
			for _, other := range existing {
				if other.ID != rule.ID {
					return nil, apperrors.Conflict("an active schedule already exists for this day; deactivate it before creating a new one")
				}
			}
		}
		rule.DayOfWeek = *req.DayOfWeek
	}
	if req.StartTime != nil {
		if !validator.IsTimeOfDay(*req.StartTime) {
			return nil, apperrors.BadRequest("start time must be in HH:MM format", nil)
		}
		rule.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		if !validator.IsTimeOfDay(*req.EndTime) {
			return nil, apperrors.BadRequest("end time must be in HH:MM format", nil)
		}
		rule.EndTime = *req.EndTime
	}
	if req.SlotDurationMinutes != nil {
		if *req.SlotDurationMinutes <= 0 {
			return nil, apperrors.BadRequest("slot duration must be positive", nil)
		}
		rule.SlotDurationMinutes = *req.SlotDurationMinutes
	}

	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// Deactivate soft-deletes the rule. The row stays so the shape of days
// already booked under it remains reconstructible.
func (s *Service) Deactivate(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	rule, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(actor, rule); err != nil {
		return err
	}
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) ListActive(ctx context.Context, physicianID uuid.UUID) ([]*model.WorkScheduleRule, error) {
	return s.repo.ListActive(ctx, physicianID)
}

func (s *Service) authorize(actor model.Actor, rule *model.WorkScheduleRule) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role != model.UserRolePhysician || rule.PhysicianID != actor.ID {
		return apperrors.Forbidden("physicians can only manage their own schedule")
	}
	return nil
}
