package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsched/agenda-api/internal/model"
	apperrors "github.com/medsched/agenda-api/pkg/errors"
)

type fakeAppointmentRepo struct {
	appointments map[uuid.UUID]*model.Appointment
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (f *fakeAppointmentRepo) Create(_ context.Context, appt *model.Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	cp := *appt
	f.appointments[appt.ID] = &cp
	return nil
}

func (f *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	appt, ok := f.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	cp := *appt
	return &cp, nil
}

func (f *fakeAppointmentRepo) GetDetail(_ context.Context, id uuid.UUID) (*model.AppointmentDetail, error) {
	appt, ok := f.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return &model.AppointmentDetail{Appointment: *appt}, nil
}

func (f *fakeAppointmentRepo) Update(_ context.Context, appt *model.Appointment) error {
	if _, ok := f.appointments[appt.ID]; !ok {
		return apperrors.NotFound("appointment", nil)
	}
	cp := *appt
	f.appointments[appt.ID] = &cp
	return nil
}

func (f *fakeAppointmentRepo) ListOccupied(_ context.Context, physicianID uuid.UUID, dayStart, dayEnd time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, a := range f.appointments {
		if a.PhysicianID != physicianID || a.Status == model.AppointmentStatusCancelled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.ScheduledAt.Before(dayStart) || !a.ScheduledAt.Before(dayEnd) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAppointmentRepo) ListDay(_ context.Context, physicianID *uuid.UUID, dayStart, dayEnd time.Time) ([]*model.AppointmentDetail, error) {
	var out []*model.AppointmentDetail
	for _, a := range f.appointments {
		if physicianID != nil && a.PhysicianID != *physicianID {
			continue
		}
		if a.ScheduledAt.Before(dayStart) || !a.ScheduledAt.Before(dayEnd) {
			continue
		}
		out = append(out, &model.AppointmentDetail{Appointment: *a})
	}
	return out, nil
}

func (f *fakeAppointmentRepo) ExistsForPatientOnDay(_ context.Context, physicianID, patientID uuid.UUID, dayStart, dayEnd time.Time, excludeID *uuid.UUID) (bool, error) {
	for _, a := range f.appointments {
		if a.PhysicianID != physicianID || a.PatientID != patientID {
			continue
		}
		if a.Status == model.AppointmentStatusCancelled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.ScheduledAt.Before(dayStart) || !a.ScheduledAt.Before(dayEnd) {
			continue
		}
		return true, nil
	}
	return false, nil
}

type fakePatientRepo struct {
	patients map[uuid.UUID]*model.Patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{patients: make(map[uuid.UUID]*model.Patient)}
}

func (f *fakePatientRepo) Create(_ context.Context, p *model.Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	for _, existing := range f.patients {
		if existing.CPF == p.CPF {
			return apperrors.Conflict("a patient with this CPF already exists")
		}
	}
	cp := *p
	f.patients[p.ID] = &cp
	return nil
}

func (f *fakePatientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, apperrors.NotFound("patient", nil)
	}
	cp := *p
	return &cp, nil
}

func (f *fakePatientRepo) GetByCPF(_ context.Context, cpf string) (*model.Patient, error) {
	for _, p := range f.patients {
		if p.CPF == cpf {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("patient", nil)
}

func (f *fakePatientRepo) List(_ context.Context, _ string) ([]*model.Patient, error) {
	var out []*model.Patient
	for _, p := range f.patients {
		out = append(out, p)
	}
	return out, nil
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (f *fakeOutboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	f.events = append(f.events, e)
	return nil
}
func (f *fakeOutboxRepo) FetchPending(_ context.Context, _ int) ([]*model.OutboxEvent, error) {
	return f.events, nil
}
func (f *fakeOutboxRepo) MarkProcessed(_ context.Context, _ uuid.UUID) error { return nil }
func (f *fakeOutboxRepo) MarkFailed(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

type fixture struct {
	svc      *Service
	appts    *fakeAppointmentRepo
	patients *fakePatientRepo
	outbox   *fakeOutboxRepo
}

// frozenNow keeps the future check deterministic.
var frozenNow = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	appts := newFakeAppointmentRepo()
	patients := newFakePatientRepo()
	outbox := &fakeOutboxRepo{}
	svc := NewService(appts, patients, outbox, nil)
	svc.now = func() time.Time { return frozenNow }
	return &fixture{svc: svc, appts: appts, patients: patients, outbox: outbox}
}

func receptionist() model.Actor {
	return model.Actor{ID: uuid.New(), Role: model.UserRoleReceptionist}
}

func createRequest(physicianID uuid.UUID) *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		PhysicianID: physicianID,
		Date:        "2030-01-02",
		Time:        "09:00",
		PatientIdentity: model.PatientIdentity{
			Name: "Maria Souza",
			CPF:  "529.982.247-25",
		},
	}
}

func TestCreateWalkInBooking(t *testing.T) {
	f := newFixture()
	physicianID := uuid.New()

	appt, err := f.svc.Create(context.Background(), receptionist(), createRequest(physicianID))
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusScheduled, appt.Status)
	assert.Equal(t, model.DefaultConsultationType, appt.ConsultationType)
	assert.Equal(t, time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC), appt.ScheduledAt)

	// A patient record was created with the CPF normalized to digits.
	patient, err := f.patients.GetByCPF(context.Background(), "52998224725")
	require.NoError(t, err)
	assert.Equal(t, "Maria Souza", patient.FullName)
	assert.Equal(t, patient.ID, appt.PatientID)

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, model.EventAppointmentCreated, f.outbox.events[0].EventType)
}

func TestCreateRequiresNameAndCPFForWalkIn(t *testing.T) {
	f := newFixture()
	req := createRequest(uuid.New())
	req.CPF = ""

	_, err := f.svc.Create(context.Background(), receptionist(), req)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.StatusCode())
}

func TestCreateRejectsPastTime(t *testing.T) {
	f := newFixture()
	req := createRequest(uuid.New())
	req.Date = "2029-12-31"

	_, err := f.svc.Create(context.Background(), receptionist(), req)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.StatusCode())
	assert.Contains(t, appErr.Message, "past")
}

func TestCreateRejectsOccupiedSlot(t *testing.T) {
	f := newFixture()
	physicianID := uuid.New()

	_, err := f.svc.Create(context.Background(), receptionist(), createRequest(physicianID))
	require.NoError(t, err)

	second := createRequest(physicianID)
	second.Name = "João Lima"
	second.CPF = "111.444.777-35"

	_, err = f.svc.Create(context.Background(), receptionist(), second)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	appErr, _ := apperrors.AsAppError(err)
	assert.Contains(t, appErr.Message, "already booked")
}

func TestCreateRejectsRawIdentityWithKnownCPF(t *testing.T) {
	f := newFixture()
	physicianID := uuid.New()

	_, err := f.svc.Create(context.Background(), receptionist(), createRequest(physicianID))
	require.NoError(t, err)

	// Same CPF, different physician and time: still rejected, the caller
	// must select the existing record instead.
	again := createRequest(uuid.New())
	again.Time = "10:00"

	_, err = f.svc.Create(context.Background(), receptionist(), again)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	appErr, _ := apperrors.AsAppError(err)
	assert.Contains(t, appErr.Message, "select the existing record")
}

func TestCreateRejectsSameDayDuplicateForPatient(t *testing.T) {
	f := newFixture()
	physicianID := uuid.New()

	first, err := f.svc.Create(context.Background(), receptionist(), createRequest(physicianID))
	require.NoError(t, err)

	second := createRequest(physicianID)
	second.Time = "10:00"
	second.PatientID = &first.PatientID
	second.Name = ""
	second.CPF = ""

	_, err = f.svc.Create(context.Background(), receptionist(), second)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	appErr, _ := apperrors.AsAppError(err)
	assert.Contains(t, appErr.Message, "already has an appointment")
}

func TestCreateAllowsSamePatientDifferentDay(t *testing.T) {
	f := newFixture()
	physicianID := uuid.New()

	first, err := f.svc.Create(context.Background(), receptionist(), createRequest(physicianID))
	require.NoError(t, err)

	second := createRequest(physicianID)
	second.Date = "2030-01-03"
	second.PatientID = &first.PatientID
	second.Name = ""
	second.CPF = ""

	_, err = f.svc.Create(context.Background(), receptionist(), second)
	assert.NoError(t, err)
}

func TestCreateAllowsRebookingCancelledSlot(t *testing.T) {
	f := newFixture()
	physicianID := uuid.New()
	actor := receptionist()

	first, err := f.svc.Create(context.Background(), actor, createRequest(physicianID))
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), actor, first.ID)
	require.NoError(t, err)

	second := createRequest(physicianID)
	second.Name = "João Lima"
	second.CPF = "111.444.777-35"

	_, err = f.svc.Create(context.Background(), actor, second)
	assert.NoError(t, err)
}

func TestUpdateRescheduleExcludesOwnAppointment(t *testing.T) {
	f := newFixture()
	physicianID := uuid.New()
	actor := receptionist()

	appt, err := f.svc.Create(context.Background(), actor, createRequest(physicianID))
	require.NoError(t, err)

	// Moving to a new time on the same day must not collide with the
	// appointment's own current slot.
	newTime := "10:00"
	updated, err := f.svc.Update(context.Background(), actor, appt.ID, &model.UpdateAppointmentRequest{Time: &newTime})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC), updated.ScheduledAt)
}

func TestUpdateRescheduleIntoOccupiedSlotFails(t *testing.T) {
	f := newFixture()
	physicianID := uuid.New()
	actor := receptionist()

	first, err := f.svc.Create(context.Background(), actor, createRequest(physicianID))
	require.NoError(t, err)

	second := createRequest(physicianID)
	second.Time = "10:00"
	second.Name = "João Lima"
	second.CPF = "111.444.777-35"
	secondAppt, err := f.svc.Create(context.Background(), actor, second)
	require.NoError(t, err)

	intoFirst := "09:00"
	_, err = f.svc.Update(context.Background(), actor, secondAppt.ID, &model.UpdateAppointmentRequest{Time: &intoFirst})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	_ = first
}

func TestUpdateStatusTransition(t *testing.T) {
	f := newFixture()
	actor := receptionist()

	appt, err := f.svc.Create(context.Background(), actor, createRequest(uuid.New()))
	require.NoError(t, err)

	confirmed := model.AppointmentStatusConfirmed
	updated, err := f.svc.Update(context.Background(), actor, appt.ID, &model.UpdateAppointmentRequest{Status: &confirmed})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, updated.Status)

	attended := model.AppointmentStatusAttended
	updated, err = f.svc.Update(context.Background(), actor, appt.ID, &model.UpdateAppointmentRequest{Status: &attended})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusAttended, updated.Status)

	// Attended is terminal.
	scheduled := model.AppointmentStatusScheduled
	_, err = f.svc.Update(context.Background(), actor, appt.ID, &model.UpdateAppointmentRequest{Status: &scheduled})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	f := newFixture()
	actor := receptionist()

	appt, err := f.svc.Create(context.Background(), actor, createRequest(uuid.New()))
	require.NoError(t, err)

	bogus := model.AppointmentStatus("rescheduled")
	_, err = f.svc.Update(context.Background(), actor, appt.ID, &model.UpdateAppointmentRequest{Status: &bogus})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.StatusCode())
}

func TestUpdateFieldEditsBlockedAfterAttended(t *testing.T) {
	f := newFixture()
	actor := receptionist()

	appt, err := f.svc.Create(context.Background(), actor, createRequest(uuid.New()))
	require.NoError(t, err)

	attended := model.AppointmentStatusAttended
	_, err = f.svc.Update(context.Background(), actor, appt.ID, &model.UpdateAppointmentRequest{Status: &attended})
	require.NoError(t, err)

	notes := "chegou atrasado"
	_, err = f.svc.Update(context.Background(), actor, appt.ID, &model.UpdateAppointmentRequest{Notes: &notes})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestCancelFlipsStatusAndKeepsRow(t *testing.T) {
	f := newFixture()
	actor := receptionist()

	appt, err := f.svc.Create(context.Background(), actor, createRequest(uuid.New()))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), actor, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)

	stored, err := f.appts.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, stored.Status)

	require.Len(t, f.outbox.events, 2)
	assert.Equal(t, model.EventAppointmentCancelled, f.outbox.events[1].EventType)
}

func TestCancelTwiceIsConflict(t *testing.T) {
	f := newFixture()
	actor := receptionist()

	appt, err := f.svc.Create(context.Background(), actor, createRequest(uuid.New()))
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), actor, appt.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), actor, appt.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestUpdateStatusRejectedOnTerminalAppointment(t *testing.T) {
	f := newFixture()
	actor := receptionist()

	appt, err := f.svc.Create(context.Background(), actor, createRequest(uuid.New()))
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), actor, appt.ID)
	require.NoError(t, err)
	eventsAfterCancel := len(f.outbox.events)

	// Re-submitting the terminal status is a conflict, not a no-op 200.
	cancelled := model.AppointmentStatusCancelled
	_, err = f.svc.Update(context.Background(), actor, appt.ID, &model.UpdateAppointmentRequest{Status: &cancelled})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	// No spurious lifecycle event either.
	assert.Len(t, f.outbox.events, eventsAfterCancel)

	attended := model.AppointmentStatusAttended
	_, err = f.svc.Update(context.Background(), actor, appt.ID, &model.UpdateAppointmentRequest{Status: &attended})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestUpdateSameStatusBeforeTerminalIsNoOp(t *testing.T) {
	f := newFixture()
	actor := receptionist()

	appt, err := f.svc.Create(context.Background(), actor, createRequest(uuid.New()))
	require.NoError(t, err)

	scheduled := model.AppointmentStatusScheduled
	updated, err := f.svc.Update(context.Background(), actor, appt.ID, &model.UpdateAppointmentRequest{Status: &scheduled})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusScheduled, updated.Status)
}

func TestCancelUnknownAppointment(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Cancel(context.Background(), receptionist(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListDayScopesPhysicianToOwnAgenda(t *testing.T) {
	f := newFixture()
	physicianID := uuid.New()
	otherPhysician := uuid.New()
	actor := receptionist()

	_, err := f.svc.Create(context.Background(), actor, createRequest(physicianID))
	require.NoError(t, err)

	other := createRequest(otherPhysician)
	other.Name = "João Lima"
	other.CPF = "111.444.777-35"
	_, err = f.svc.Create(context.Background(), actor, other)
	require.NoError(t, err)

	day := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)

	own, err := f.svc.ListDay(context.Background(), model.Actor{ID: physicianID, Role: model.UserRolePhysician}, day)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, physicianID, own[0].PhysicianID)

	all, err := f.svc.ListDay(context.Background(), actor, day)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetHidesOtherPhysiciansAppointments(t *testing.T) {
	f := newFixture()
	physicianID := uuid.New()
	actor := receptionist()

	appt, err := f.svc.Create(context.Background(), actor, createRequest(physicianID))
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), model.Actor{ID: uuid.New(), Role: model.UserRolePhysician}, appt.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	detail, err := f.svc.Get(context.Background(), model.Actor{ID: physicianID, Role: model.UserRolePhysician}, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, detail.ID)
}

func TestParseDateTimeRejectsBadInput(t *testing.T) {
	_, err := parseDateTime("2030-01-02", "9:00")
	require.Error(t, err)

	_, err = parseDateTime("02/01/2030", "09:00")
	require.Error(t, err)

	got, err := parseDateTime("2030-01-02", "09:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC), got)
}
