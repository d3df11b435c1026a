package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medsched/agenda-api/internal/model"
	"github.com/medsched/agenda-api/internal/repository"
	apperrors "github.com/medsched/agenda-api/pkg/errors"
	"github.com/medsched/agenda-api/pkg/metrics"
	"github.com/medsched/agenda-api/pkg/validator"
)

type Service struct {
	apptRepo    repository.AppointmentRepository
	patientRepo repository.PatientRepository
	outboxRepo  repository.OutboxRepository
	metrics     *metrics.Metrics

	// now is swappable so the future check is testable.
	now func() time.Time
}

func NewService(apptRepo repository.AppointmentRepository, patientRepo repository.PatientRepository, outboxRepo repository.OutboxRepository, m *metrics.Metrics) *Service {
	return &Service{
		apptRepo:    apptRepo,
		patientRepo: patientRepo,
		outboxRepo:  outboxRepo,
		metrics:     m,
		now:         time.Now,
	}
}

// parseDateTime combines "YYYY-MM-DD" and "HH:MM" into the UTC wall-clock
// instant the clinic operates on.
func parseDateTime(date, timeOfDay string) (time.Time, error) {
	if !validator.IsTimeOfDay(timeOfDay) {
		return time.Time{}, apperrors.BadRequest("invalid time format, expected HH:MM", nil)
	}
	t, err := time.Parse("2006-01-02 15:04", date+" "+timeOfDay)
	if err != nil {
		return time.Time{}, apperrors.BadRequest("invalid date format, expected YYYY-MM-DD", err)
	}
	return t.UTC(), nil
}

func (s *Service) Create(ctx context.Context, actor model.Actor, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if req.PatientID == nil && (req.Name == "" || req.CPF == "") {
		return nil, apperrors.BadRequest("patient name and CPF are required when no patient is selected", nil)
	}

	scheduledAt, err := parseDateTime(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	if err := s.Validate(ctx, req.PhysicianID, scheduledAt, req.PatientIdentity, nil); err != nil {
		s.countBooking("rejected")
		return nil, err
	}

	patientID, err := s.ensurePatient(ctx, req.PatientIdentity)
	if err != nil {
		return nil, err
	}

	consultationType := req.ConsultationType
	if consultationType == "" {
		consultationType = model.DefaultConsultationType
	}

	appt := &model.Appointment{
		PatientID:        patientID,
		PhysicianID:      req.PhysicianID,
		ScheduledAt:      scheduledAt,
		ConsultationType: consultationType,
		Status:           model.AppointmentStatusScheduled,
		Notes:            req.Notes,
		CreatedBy:        actor.ID,
	}

	if err := s.apptRepo.Create(ctx, appt); err != nil {
		s.countBooking("rejected")
		return nil, err
	}
	s.countBooking("created")

	s.enqueueEvent(ctx, model.EventAppointmentCreated, appt, "")
	return appt, nil
}

// ensurePatient resolves the identity to a patient id, creating the
// record for a walk-in whose CPF is unknown. The validator has already
// rejected raw identities colliding with an existing CPF.
func (s *Service) ensurePatient(ctx context.Context, identity model.PatientIdentity) (uuid.UUID, error) {
	if identity.PatientID != nil {
		return *identity.PatientID, nil
	}

	patient := &model.Patient{
		FullName:   identity.Name,
		CPF:        validator.NormalizeCPF(identity.CPF),
		CEP:        identity.CEP,
		Street:     identity.Street,
		Number:     identity.Number,
		Complement: identity.Complement,
		District:   identity.District,
		City:       identity.City,
		State:      identity.State,
	}
	if err := s.patientRepo.Create(ctx, patient); err != nil {
		return uuid.Nil, err
	}
	return patient.ID, nil
}

func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.AppointmentDetail, error) {
	detail, err := s.apptRepo.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.Role == model.UserRolePhysician && detail.PhysicianID != actor.ID {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return detail, nil
}

// ListDay returns the day view. Physicians see their own agenda; admins
// and reception staff see every physician's day.
func (s *Service) ListDay(ctx context.Context, actor model.Actor, date time.Time) ([]*model.AppointmentDetail, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var physicianID *uuid.UUID
	if actor.Role == model.UserRolePhysician {
		id := actor.ID
		physicianID = &id
	}

	return s.apptRepo.ListDay(ctx, physicianID, dayStart, dayEnd)
}

// Update applies field edits and/or a status transition. Field edits are
// allowed only while the appointment is still Scheduled or Confirmed and
// are re-validated with the appointment's own id excluded so it does not
// collide with itself.
func (s *Service) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	appt, err := s.apptRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previousStatus := appt.Status

	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, apperrors.BadRequest(fmt.Sprintf("unknown status %q", *req.Status), nil)
		}
		// Terminal statuses admit no further status requests, including a
		// repeat of the current one: re-cancelling a cancelled appointment
		// is a conflict, not a no-op.
		if appt.Status.IsTerminal() {
			return nil, apperrors.Conflict(fmt.Sprintf("cannot change a %s appointment to %s", appt.Status, *req.Status))
		}
		if *req.Status != appt.Status && !appt.Status.CanTransition(*req.Status) {
			return nil, apperrors.Conflict(fmt.Sprintf("cannot change a %s appointment to %s", appt.Status, *req.Status))
		}
	}

	if req.HasFieldEdits() {
		if !appt.Status.Editable() {
			return nil, apperrors.Conflict(fmt.Sprintf("a %s appointment can no longer be edited", appt.Status))
		}

		date := appt.ScheduledAt.UTC().Format("2006-01-02")
		timeOfDay := appt.ScheduledAt.UTC().Format("15:04")
		if req.Date != nil {
			date = *req.Date
		}
		if req.Time != nil {
			timeOfDay = *req.Time
		}

		scheduledAt, err := parseDateTime(date, timeOfDay)
		if err != nil {
			return nil, err
		}

		if !scheduledAt.Equal(appt.ScheduledAt) {
			identity := model.PatientIdentity{PatientID: &appt.PatientID}
			if err := s.Validate(ctx, appt.PhysicianID, scheduledAt, identity, &appt.ID); err != nil {
				return nil, err
			}
			appt.ScheduledAt = scheduledAt
		}
		if req.ConsultationType != nil {
			appt.ConsultationType = *req.ConsultationType
		}
		if req.Notes != nil {
			appt.Notes = *req.Notes
		}
	}

	if req.Status != nil {
		appt.Status = *req.Status
	}

	if err := s.apptRepo.Update(ctx, appt); err != nil {
		return nil, err
	}

	eventType := model.EventAppointmentUpdated
	if appt.Status == model.AppointmentStatusCancelled && previousStatus != appt.Status {
		eventType = model.EventAppointmentCancelled
	}
	s.enqueueEvent(ctx, eventType, appt, previousStatus)

	return appt, nil
}

// Cancel is the system's sole delete semantic for appointments: a status
// flip, never a row removal. Only Scheduled and Confirmed appointments
// can be cancelled; cancelling twice is an invalid transition, not a
// no-op.
func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.apptRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !appt.Status.CanTransition(model.AppointmentStatusCancelled) {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot cancel a %s appointment", appt.Status))
	}

	previousStatus := appt.Status
	appt.Status = model.AppointmentStatusCancelled

	if err := s.apptRepo.Update(ctx, appt); err != nil {
		return nil, err
	}

	s.enqueueEvent(ctx, model.EventAppointmentCancelled, appt, previousStatus)
	return appt, nil
}

// enqueueEvent appends a lifecycle event to the outbox. Failures are
// logged, not surfaced: the booking itself already committed.
func (s *Service) enqueueEvent(ctx context.Context, eventType string, appt *model.Appointment, previous model.AppointmentStatus) {
	if s.outboxRepo == nil {
		return
	}

	payload, err := json.Marshal(model.AppointmentEventPayload{
		AppointmentID:  appt.ID,
		PhysicianID:    appt.PhysicianID,
		PatientID:      appt.PatientID,
		ScheduledAt:    appt.ScheduledAt,
		Status:         appt.Status,
		PreviousStatus: previous,
	})
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal appointment event")
		return
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Str("appointment_id", appt.ID.String()).Msg("failed to enqueue appointment event")
	}
}

func (s *Service) countBooking(outcome string) {
	if s.metrics != nil {
		s.metrics.BookingsTotal.WithLabelValues(outcome).Inc()
	}
}
