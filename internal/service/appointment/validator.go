package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/agenda-api/internal/model"
	apperrors "github.com/medsched/agenda-api/pkg/errors"
	"github.com/medsched/agenda-api/pkg/validator"
)

// Rejection reasons, used as metric labels and mapped to distinct
// user-facing messages. A single generic "conflict" would hide which
// corrective action applies.
const (
	reasonPastTime      = "past_time"
	reasonSlotOccupied  = "slot_occupied"
	reasonCPFCollision  = "cpf_collision"
	reasonPatientDayDup = "patient_day_duplicate"
)

var rejectionErrors = map[string]*apperrors.AppError{
	reasonPastTime:      apperrors.BadRequest("cannot book an appointment in the past", nil),
	reasonSlotOccupied:  apperrors.Conflict("this time slot is already booked for the physician"),
	reasonCPFCollision:  apperrors.Conflict("a patient with this CPF already exists; select the existing record instead of creating a new one"),
	reasonPatientDayDup: apperrors.Conflict("this patient already has an appointment with the physician on this date"),
}

// Validate runs the booking checks in order, short-circuiting on the
// first failure. It is read-only: persistence happens only after an Ok
// result, and the database's partial unique index backstops the narrow
// window between this check and the insert.
//
// excludeID is set when re-validating an edit of an existing appointment
// so it does not collide with itself.
func (s *Service) Validate(ctx context.Context, physicianID uuid.UUID, scheduledAt time.Time, identity model.PatientIdentity, excludeID *uuid.UUID) error {
	// 1. Future check: strictly-before-now is rejected regardless of
	// occupancy.
	if scheduledAt.Before(s.now()) {
		s.countRejection(reasonPastTime)
		return rejectionErrors[reasonPastTime]
	}

	dayStart := time.Date(scheduledAt.Year(), scheduledAt.Month(), scheduledAt.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	// 2. Occupancy: exact to-the-minute match among non-cancelled
	// appointments.
	occupied, err := s.apptRepo.ListOccupied(ctx, physicianID, dayStart, dayEnd, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check occupancy: %w", err)
	}
	wanted := scheduledAt.UTC().Format("15:04")
	for _, appt := range occupied {
		if appt.ScheduledAt.UTC().Format("15:04") == wanted {
			s.countRejection(reasonSlotOccupied)
			return rejectionErrors[reasonSlotOccupied]
		}
	}

	patient, err := s.resolveExistingPatient(ctx, identity)
	if err != nil {
		return err
	}

	// 4. Same-day duplicate: one booking per patient per physician per
	// day, regardless of time. Only reachable when the identity resolves
	// to an existing patient; a brand-new patient cannot hold one yet.
	if patient != nil {
		exists, err := s.apptRepo.ExistsForPatientOnDay(ctx, physicianID, patient.ID, dayStart, dayEnd, excludeID)
		if err != nil {
			return fmt.Errorf("failed to check patient day bookings: %w", err)
		}
		if exists {
			s.countRejection(reasonPatientDayDup)
			return rejectionErrors[reasonPatientDayDup]
		}
	}

	return nil
}

// resolveExistingPatient maps the submitted identity to a stored patient,
// enforcing check 3: raw identity whose CPF already belongs to a patient
// is rejected unless the caller selected that same patient's id.
func (s *Service) resolveExistingPatient(ctx context.Context, identity model.PatientIdentity) (*model.Patient, error) {
	if identity.PatientID != nil {
		patient, err := s.patientRepo.Get(ctx, *identity.PatientID)
		if err != nil {
			return nil, err
		}
		return patient, nil
	}

	cpf := validator.NormalizeCPF(identity.CPF)
	if cpf == "" {
		return nil, nil
	}

	if _, err := s.patientRepo.GetByCPF(ctx, cpf); err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up patient by cpf: %w", err)
	}

	// 3. Global identity collision: the CPF is taken and the caller did
	// not select the existing record.
	s.countRejection(reasonCPFCollision)
	return nil, rejectionErrors[reasonCPFCollision]
}

func (s *Service) countRejection(reason string) {
	if s.metrics != nil {
		s.metrics.BookingConflicts.WithLabelValues(reason).Inc()
	}
}
