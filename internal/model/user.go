package model

type UserRole string

const (
	UserRolePhysician    UserRole = "PHYSICIAN"
	UserRoleAdmin        UserRole = "ADMIN"
	UserRoleReceptionist UserRole = "RECEPTIONIST"
)

// User is a staff account. Physicians are users with the PHYSICIAN role;
// their user id doubles as the physician id referenced by schedule rules
// and appointments.
type User struct {
	Base
	Name         string   `db:"name" json:"name"`
	Email        string   `db:"email" json:"email"`
	PasswordHash string   `db:"password_hash" json:"-"`
	Role         UserRole `db:"role" json:"role"`
	Specialty    string   `db:"specialty" json:"specialty,omitempty"`
	Active       bool     `db:"active" json:"active"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
