package patient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/agenda-api/internal/model"
	"github.com/medsched/agenda-api/internal/repository"
	apperrors "github.com/medsched/agenda-api/pkg/errors"
	"github.com/medsched/agenda-api/pkg/validator"
)

type Service struct {
	repo repository.PatientRepository
}

func NewService(repo repository.PatientRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	cpf := validator.NormalizeCPF(req.CPF)
	if !validator.IsCPF(cpf) {
		return nil, apperrors.BadRequest("CPF must have 11 digits", nil)
	}

	var birthDate *time.Time
	if req.BirthDate != "" {
		parsed, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			return nil, apperrors.BadRequest("birth date must be in YYYY-MM-DD format", err)
		}
		birthDate = &parsed
	}

	patient := &model.Patient{
		FullName:   req.FullName,
		CPF:        cpf,
		BirthDate:  birthDate,
		Phone:      req.Phone,
		Email:      req.Email,
		CEP:        req.CEP,
		Street:     req.Street,
		Number:     req.Number,
		Complement: req.Complement,
		District:   req.District,
		City:       req.City,
		State:      req.State,
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByCPF(ctx context.Context, cpf string) (*model.Patient, error) {
	return s.repo.GetByCPF(ctx, validator.NormalizeCPF(cpf))
}

func (s *Service) List(ctx context.Context, search string) ([]*model.Patient, error) {
	return s.repo.List(ctx, search)
}
