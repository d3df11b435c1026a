package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/agenda-api/internal/model"
)

// All repository interfaces in one file
type (
	// ScheduleRepository handles weekly work-schedule rules.
	ScheduleRepository interface {
		Create(ctx context.Context, rule *model.WorkScheduleRule) error
		Get(ctx context.Context, id uuid.UUID) (*model.WorkScheduleRule, error)
		Update(ctx context.Context, rule *model.WorkScheduleRule) error
		Deactivate(ctx context.Context, id uuid.UUID) error
		ListActive(ctx context.Context, physicianID uuid.UUID) ([]*model.WorkScheduleRule, error)
		FindActiveForDay(ctx context.Context, physicianID uuid.UUID, dayOfWeek int) ([]*model.WorkScheduleRule, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		GetDetail(ctx context.Context, id uuid.UUID) (*model.AppointmentDetail, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		// ListOccupied returns non-cancelled appointments for the physician
		// inside [dayStart, dayEnd), optionally excluding one appointment id.
		ListOccupied(ctx context.Context, physicianID uuid.UUID, dayStart, dayEnd time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error)
		// ListDay returns the day view: appointments in [dayStart, dayEnd)
		// joined with patient and physician names, all statuses included.
		// A nil physicianID lists every physician's day.
		ListDay(ctx context.Context, physicianID *uuid.UUID, dayStart, dayEnd time.Time) ([]*model.AppointmentDetail, error)
		// ExistsForPatientOnDay reports whether the patient already holds a
		// non-cancelled appointment with the physician inside [dayStart,
		// dayEnd), optionally excluding one appointment id.
		ExistsForPatientOnDay(ctx context.Context, physicianID, patientID uuid.UUID, dayStart, dayEnd time.Time, excludeID *uuid.UUID) (bool, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByCPF(ctx context.Context, cpf string) (*model.Patient, error)
		List(ctx context.Context, search string) ([]*model.Patient, error)
	}

	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		ListPhysicians(ctx context.Context) ([]*model.User, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		FetchPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	}
)
