package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Actor is the authenticated identity performing an operation. Every
// service operation that mutates state takes the actor explicitly; there
// is no ambient "current user".
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role UserRole  `json:"role"`
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == UserRoleAdmin
}
