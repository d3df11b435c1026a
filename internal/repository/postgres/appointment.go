package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medsched/agenda-api/internal/model"
	"github.com/medsched/agenda-api/internal/repository"
	apperrors "github.com/medsched/agenda-api/pkg/errors"
)

type appointmentRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, physician_id, scheduled_at,
			consultation_type, status, notes, created_by,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.PhysicianID,
		appointment.ScheduledAt,
		appointment.ConsultationType,
		appointment.Status,
		appointment.Notes,
		appointment.CreatedBy,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		// The partial unique index on (physician_id, scheduled_at) for
		// non-cancelled rows closes the check-then-create race; a lost
		// race surfaces as the same conflict a synchronous validation
		// failure would.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperrors.Conflict("this time slot is already booked for the physician")
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, patient_id, physician_id, scheduled_at,
			   consultation_type, status, notes, created_by,
			   created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) GetDetail(ctx context.Context, id uuid.UUID) (*model.AppointmentDetail, error) {
	query := `
		SELECT a.id, a.patient_id, a.physician_id, a.scheduled_at,
			   a.consultation_type, a.status, a.notes, a.created_by,
			   a.created_at, a.updated_at,
			   p.full_name AS patient_name, p.cpf AS patient_cpf,
			   u.name AS physician_name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN users u ON u.id = a.physician_id
		WHERE a.id = $1
	`
	var detail model.AppointmentDetail
	err := r.db.GetContext(ctx, &detail, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment detail: %w", err)
	}
	return &detail, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET scheduled_at = $1, consultation_type = $2, status = $3,
			notes = $4, updated_at = $5
		WHERE id = $6
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		appointment.ScheduledAt,
		appointment.ConsultationType,
		appointment.Status,
		appointment.Notes,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperrors.Conflict("this time slot is already booked for the physician")
		}
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment", nil)
	}

	return nil
}

func (r *appointmentRepository) ListOccupied(ctx context.Context, physicianID uuid.UUID, dayStart, dayEnd time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, physician_id, scheduled_at,
			   consultation_type, status, notes, created_by,
			   created_at, updated_at
		FROM appointments
		WHERE physician_id = $1
		AND scheduled_at >= $2
		AND scheduled_at < $3
		AND status <> 'cancelled'
	`
	args := []interface{}{physicianID, dayStart, dayEnd}

	if excludeID != nil {
		query += " AND id <> $4"
		args = append(args, *excludeID)
	}

	query += " ORDER BY scheduled_at ASC"

	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list occupied appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ExistsForPatientOnDay(ctx context.Context, physicianID, patientID uuid.UUID, dayStart, dayEnd time.Time, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE physician_id = $1
			AND patient_id = $2
			AND scheduled_at >= $3
			AND scheduled_at < $4
			AND status <> 'cancelled'
	`
	args := []interface{}{physicianID, patientID, dayStart, dayEnd}

	if excludeID != nil {
		query += " AND id <> $5"
		args = append(args, *excludeID)
	}

	query += ")"

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to check patient day appointments: %w", err)
	}
	return exists, nil
}

func (r *appointmentRepository) ListDay(ctx context.Context, physicianID *uuid.UUID, dayStart, dayEnd time.Time) ([]*model.AppointmentDetail, error) {
	query := `
		SELECT a.id, a.patient_id, a.physician_id, a.scheduled_at,
			   a.consultation_type, a.status, a.notes, a.created_by,
			   a.created_at, a.updated_at,
			   p.full_name AS patient_name, p.cpf AS patient_cpf,
			   u.name AS physician_name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN users u ON u.id = a.physician_id
		WHERE a.scheduled_at >= $1
		AND a.scheduled_at < $2
	`
	args := []interface{}{dayStart, dayEnd}

	if physicianID != nil {
		query += " AND a.physician_id = $3"
		args = append(args, *physicianID)
	}

	query += " ORDER BY a.scheduled_at ASC"

	var appointments []*model.AppointmentDetail
	err := r.db.SelectContext(ctx, &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list day appointments: %w", err)
	}
	return appointments, nil
}
