package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsched/agenda-api/internal/model"
	"github.com/medsched/agenda-api/pkg/auth"
	apperrors "github.com/medsched/agenda-api/pkg/errors"
	"github.com/medsched/agenda-api/pkg/security"
)

type fakeUserRepo struct {
	users map[string]*model.User
}

func (f *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperrors.NotFound("user", nil)
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	return nil, apperrors.NotFound("user", nil)
}

func (f *fakeUserRepo) ListPhysicians(_ context.Context) ([]*model.User, error) {
	return nil, nil
}

func newAuthFixture(t *testing.T) (*Service, *model.User) {
	t.Helper()
	hasher := security.NewBcryptHasher(4)

	hash, err := hasher.Hash("correct horse")
	require.NoError(t, err)

	user := &model.User{
		Base:         model.Base{ID: uuid.New()},
		Name:         "Dr. Carlos Pereira",
		Email:        "carlos@clinic.example",
		PasswordHash: hash,
		Role:         model.UserRolePhysician,
		Active:       true,
	}

	repo := &fakeUserRepo{users: map[string]*model.User{user.Email: user}}
	jwtSvc := auth.NewJWTService("test-secret", time.Hour)
	return NewService(repo, jwtSvc, hasher), user
}

func TestLoginSuccess(t *testing.T) {
	svc, user := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), user.Email, "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, user.ID, resp.User.ID)

	claims, err := svc.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.UserRolePhysician, claims.Role)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, user := newAuthFixture(t)

	_, errUnknown := svc.Login(context.Background(), "nobody@clinic.example", "correct horse")
	_, errWrongPassword := svc.Login(context.Background(), user.Email, "wrong password")

	require.Error(t, errUnknown)
	require.Error(t, errWrongPassword)

	unknownErr, ok := apperrors.AsAppError(errUnknown)
	require.True(t, ok)
	wrongErr, ok := apperrors.AsAppError(errWrongPassword)
	require.True(t, ok)

	assert.Equal(t, 401, unknownErr.StatusCode())
	assert.Equal(t, wrongErr.Message, unknownErr.Message)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken(context.Background(), "not-a-token")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 401, appErr.StatusCode())
}
