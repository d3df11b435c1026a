package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusAttended  AppointmentStatus = "attended"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// statusTransitions is the closed transition table. Attended, Cancelled
// and NoShow are terminal: nothing leads out of them through this engine.
var statusTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {
		AppointmentStatusConfirmed,
		AppointmentStatusAttended,
		AppointmentStatusCancelled,
		AppointmentStatusNoShow,
	},
	AppointmentStatusConfirmed: {
		AppointmentStatusAttended,
		AppointmentStatusCancelled,
		AppointmentStatusNoShow,
	},
}

// CanTransition reports whether the status change is allowed by the
// transition table.
func (s AppointmentStatus) CanTransition(to AppointmentStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leads out of s.
func (s AppointmentStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// Editable reports whether date/time/type/notes edits are still allowed.
func (s AppointmentStatus) Editable() bool {
	return s == AppointmentStatusScheduled || s == AppointmentStatusConfirmed
}

// Valid reports whether s is one of the known statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed,
		AppointmentStatusAttended, AppointmentStatusCancelled,
		AppointmentStatusNoShow:
		return true
	}
	return false
}

const DefaultConsultationType = "Consulta Padrão"

type Appointment struct {
	Base
	PatientID        uuid.UUID         `db:"patient_id" json:"patient_id"`
	PhysicianID      uuid.UUID         `db:"physician_id" json:"physician_id"`
	ScheduledAt      time.Time         `db:"scheduled_at" json:"scheduled_at"`
	ConsultationType string            `db:"consultation_type" json:"consultation_type"`
	Status           AppointmentStatus `db:"status" json:"status"`
	Notes            string            `db:"notes" json:"notes,omitempty"`
	CreatedBy        uuid.UUID         `db:"created_by" json:"created_by"`
}

// AppointmentDetail is an appointment joined with the names the day view
// renders.
type AppointmentDetail struct {
	Appointment
	PatientName   string `db:"patient_name" json:"patient_name"`
	PatientCPF    string `db:"patient_cpf" json:"patient_cpf"`
	PhysicianName string `db:"physician_name" json:"physician_name"`
}

// PatientIdentity is how a booking names its patient: either an existing
// record by id, or raw identity fields for a walk-in.
type PatientIdentity struct {
	PatientID  *uuid.UUID `json:"patient_id"`
	Name       string     `json:"patient_name"`
	CPF        string     `json:"patient_cpf" binding:"omitempty,cpf"`
	CEP        string     `json:"cep"`
	Street     string     `json:"street"`
	Number     string     `json:"number"`
	Complement string     `json:"complement"`
	District   string     `json:"district"`
	City       string     `json:"city"`
	State      string     `json:"state"`
}

type CreateAppointmentRequest struct {
	PhysicianID      uuid.UUID `json:"physician_id" binding:"required"`
	Date             string    `json:"date" binding:"required"`
	Time             string    `json:"time" binding:"required,hhmm"`
	ConsultationType string    `json:"consultation_type"`
	Notes            string    `json:"notes"`
	PatientIdentity
}

type UpdateAppointmentRequest struct {
	Date             *string            `json:"date"`
	Time             *string            `json:"time" binding:"omitempty,hhmm"`
	ConsultationType *string            `json:"consultation_type"`
	Notes            *string            `json:"notes"`
	Status           *AppointmentStatus `json:"status"`
}

// HasFieldEdits reports whether the update touches bookable fields, as
// opposed to being a pure status transition.
func (r *UpdateAppointmentRequest) HasFieldEdits() bool {
	return r.Date != nil || r.Time != nil || r.ConsultationType != nil || r.Notes != nil
}
