package physician

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/medsched/agenda-api/internal/model"
	"github.com/medsched/agenda-api/internal/repository"
)

const directoryCacheKey = "physicians"

// Service serves the physician directory the booking UI renders in its
// dropdowns. The directory changes rarely, so reads go through a short
// TTL cache; everything slot-related stays uncached by design.
type Service struct {
	repo  repository.UserRepository
	cache *gocache.Cache
}

func NewService(repo repository.UserRepository) *Service {
	return &Service{
		repo:  repo,
		cache: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	if cached, ok := s.cache.Get(directoryCacheKey); ok {
		return cached.([]*model.User), nil
	}

	physicians, err := s.repo.ListPhysicians(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.Set(directoryCacheKey, physicians, gocache.DefaultExpiration)
	return physicians, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.repo.Get(ctx, id)
}
