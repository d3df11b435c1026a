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

type patientRepository struct {
	db *sqlx.DB
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, full_name, cpf, birth_date, phone, email,
			cep, street, number, complement, district, city, state,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = patient.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.FullName,
		patient.CPF,
		patient.BirthDate,
		patient.Phone,
		patient.Email,
		patient.CEP,
		patient.Street,
		patient.Number,
		patient.Complement,
		patient.District,
		patient.City,
		patient.State,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperrors.Conflict("a patient with this CPF already exists")
		}
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `
		SELECT id, full_name, cpf, birth_date, phone, email,
			   cep, street, number, complement, district, city, state,
			   created_at, updated_at
		FROM patients
		WHERE id = $1
	`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByCPF(ctx context.Context, cpf string) (*model.Patient, error) {
	query := `
		SELECT id, full_name, cpf, birth_date, phone, email,
			   cep, street, number, complement, district, city, state,
			   created_at, updated_at
		FROM patients
		WHERE cpf = $1
	`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, cpf)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, fmt.Errorf("failed to get patient by cpf: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context, search string) ([]*model.Patient, error) {
	query := `
		SELECT id, full_name, cpf, birth_date, phone, email,
			   cep, street, number, complement, district, city, state,
			   created_at, updated_at
		FROM patients
	`
	args := []interface{}{}

	if search != "" {
		query += " WHERE full_name ILIKE $1 OR cpf LIKE $1"
		args = append(args, "%"+search+"%")
	}

	query += " ORDER BY full_name ASC"

	var patients []*model.Patient
	err := r.db.SelectContext(ctx, &patients, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}
