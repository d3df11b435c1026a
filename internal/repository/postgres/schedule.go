package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medsched/agenda-api/internal/model"
	"github.com/medsched/agenda-api/internal/repository"
	apperrors "github.com/medsched/agenda-api/pkg/errors"
)

type scheduleRepository struct {
	db *sqlx.DB
}

func NewScheduleRepository(db *sqlx.DB) repository.ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) Create(ctx context.Context, rule *model.WorkScheduleRule) error {
	query := `
		INSERT INTO work_schedule_rules (
			id, physician_id, day_of_week, start_time, end_time,
			slot_duration_minutes, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		rule.ID,
		rule.PhysicianID,
		rule.DayOfWeek,
		rule.StartTime,
		rule.EndTime,
		rule.SlotDurationMinutes,
		rule.Active,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule rule: %w", err)
	}
	return nil
}

func (r *scheduleRepository) Get(ctx context.Context, id uuid.UUID) (*model.WorkScheduleRule, error) {
	query := `
		SELECT id, physician_id, day_of_week, start_time, end_time,
			   slot_duration_minutes, active, created_at, updated_at
		FROM work_schedule_rules
		WHERE id = $1
	`
	var rule model.WorkScheduleRule
	err := r.db.GetContext(ctx, &rule, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("schedule rule", err)
		}
		return nil, fmt.Errorf("failed to get schedule rule: %w", err)
	}
	return &rule, nil
}

func (r *scheduleRepository) Update(ctx context.Context, rule *model.WorkScheduleRule) error {
	query := `
		UPDATE work_schedule_rules
		SET day_of_week = $1, start_time = $2, end_time = $3,
			slot_duration_minutes = $4, updated_at = $5
		WHERE id = $6
	`
	rule.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		rule.DayOfWeek,
		rule.StartTime,
		rule.EndTime,
		rule.SlotDurationMinutes,
		rule.UpdatedAt,
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("schedule rule", nil)
	}

	return nil
}

func (r *scheduleRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE work_schedule_rules
		SET active = false, updated_at = $1
		WHERE id = $2
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate schedule rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("schedule rule", nil)
	}

	return nil
}

func (r *scheduleRepository) ListActive(ctx context.Context, physicianID uuid.UUID) ([]*model.WorkScheduleRule, error) {
	query := `
		SELECT id, physician_id, day_of_week, start_time, end_time,
			   slot_duration_minutes, active, created_at, updated_at
		FROM work_schedule_rules
		WHERE physician_id = $1 AND active = true
		ORDER BY day_of_week ASC
	`
	var rules []*model.WorkScheduleRule
	err := r.db.SelectContext(ctx, &rules, query, physicianID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule rules: %w", err)
	}
	return rules, nil
}

func (r *scheduleRepository) FindActiveForDay(ctx context.Context, physicianID uuid.UUID, dayOfWeek int) ([]*model.WorkScheduleRule, error) {
	query := `
		SELECT id, physician_id, day_of_week, start_time, end_time,
			   slot_duration_minutes, active, created_at, updated_at
		FROM work_schedule_rules
		WHERE physician_id = $1 AND day_of_week = $2 AND active = true
		ORDER BY start_time ASC
	`
	var rules []*model.WorkScheduleRule
	err := r.db.SelectContext(ctx, &rules, query, physicianID, dayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("failed to find schedule rules for day: %w", err)
	}
	return rules, nil
}
