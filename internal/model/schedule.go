package model

import (
	"github.com/google/uuid"
)

// Day-of-week numbering follows ISO: 1 = Monday .. 7 = Sunday.
const (
	DayOfWeekMin = 1
	DayOfWeekMax = 7
)

const DefaultSlotDurationMinutes = 30

// WorkScheduleRule is a recurring weekly availability window for one
// physician. Rules are never hard-deleted; deactivation preserves the
// history behind already-booked appointments.
type WorkScheduleRule struct {
	Base
	PhysicianID         uuid.UUID `db:"physician_id" json:"physician_id"`
	DayOfWeek           int       `db:"day_of_week" json:"day_of_week"`
	StartTime           string    `db:"start_time" json:"start_time"`
	EndTime             string    `db:"end_time" json:"end_time"`
	SlotDurationMinutes int       `db:"slot_duration_minutes" json:"slot_duration_minutes"`
	Active              bool      `db:"active" json:"active"`
}

type CreateScheduleRuleRequest struct {
	PhysicianID         uuid.UUID `json:"physician_id" binding:"required"`
	DayOfWeek           int       `json:"day_of_week" binding:"required,min=1,max=7"`
	StartTime           string    `json:"start_time" binding:"required,hhmm"`
	EndTime             string    `json:"end_time" binding:"required,hhmm"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
}

// UpdateScheduleRuleRequest applies a field-level partial update; nil
// fields are left untouched.
type UpdateScheduleRuleRequest struct {
	DayOfWeek           *int    `json:"day_of_week" binding:"omitempty,min=1,max=7"`
	StartTime           *string `json:"start_time" binding:"omitempty,hhmm"`
	EndTime             *string `json:"end_time" binding:"omitempty,hhmm"`
	SlotDurationMinutes *int    `json:"slot_duration_minutes"`
}
