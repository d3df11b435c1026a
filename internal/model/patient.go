package model

import (
	"time"
)

// Patient identity. CPF is the national identifier and is globally unique
// across patients; it is the de-duplication key for bookings.
type Patient struct {
	Base
	FullName   string     `db:"full_name" json:"full_name"`
	CPF        string     `db:"cpf" json:"cpf"`
	BirthDate  *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Phone      string     `db:"phone" json:"phone,omitempty"`
	Email      string     `db:"email" json:"email,omitempty"`
	CEP        string     `db:"cep" json:"cep,omitempty"`
	Street     string     `db:"street" json:"street,omitempty"`
	Number     string     `db:"number" json:"number,omitempty"`
	Complement string     `db:"complement" json:"complement,omitempty"`
	District   string     `db:"district" json:"district,omitempty"`
	City       string     `db:"city" json:"city,omitempty"`
	State      string     `db:"state" json:"state,omitempty"`
}

type CreatePatientRequest struct {
	FullName   string `json:"full_name" binding:"required"`
	CPF        string `json:"cpf" binding:"required,cpf"`
	BirthDate  string `json:"birth_date"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	CEP        string `json:"cep"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
}
