package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/Gopika0263/donation-api/internal/models"
	appErrors "github.com/Gopika0263/donation-api/pkg/errors"
)

type userRepoStub struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{byEmail: make(map[string]*models.User), byID: make(map[string]*models.User)}
}

func (r *userRepoStub) Create(ctx context.Context, user *models.User) error {
	if _, exists := r.byEmail[user.Email]; exists {
		return &pq.Error{Code: "23505"}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	copy := *user
	r.byEmail[user.Email] = &copy
	r.byID[user.ID] = &copy
	return nil
}

func (r *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := r.byEmail[email]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := r.byID[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func newAuthService(repo *userRepoStub, audit *auditStub) *AuthService {
	if repo == nil {
		repo = newUserRepoStub()
	}
	if audit == nil {
		audit = &auditStub{}
	}
	return NewAuthService(repo, audit, nil, nil, AuthConfig{
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
		Issuer:      "donation-api-test",
	})
}

func TestAuthServiceRegisterAndLogin(t *testing.T) {
	repo := newUserRepoStub()
	audit := &auditStub{}
	svc := newAuthService(repo, audit)
	ctx := context.Background()

	res, err := svc.Register(ctx, models.RegisterRequest{
		Name:     "Asha",
		Email:    "Asha@Example.com",
		Password: "secret123",
		Role:     models.RoleDonor,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.Equal(t, models.RoleDonor, res.User.Role)
	require.Equal(t, "asha@example.com", res.User.Email)

	login, err := svc.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, login.Token)
	require.Equal(t, res.User.ID, login.User.ID)

	// one register entry and one login entry
	require.Len(t, audit.logs, 2)
	require.Equal(t, models.AuditActionRegister, audit.logs[0].Action)
	require.Equal(t, models.AuditActionLogin, audit.logs[1].Action)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	svc := newAuthService(nil, nil)
	ctx := context.Background()

	req := models.RegisterRequest{Name: "Asha", Email: "asha@example.com", Password: "secret123", Role: models.RoleDonor}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterRejectsAdminRole(t *testing.T) {
	svc := newAuthService(nil, nil)
	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Root",
		Email:    "root@example.com",
		Password: "secret123",
		Role:     models.RoleAdmin,
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	repo := newUserRepoStub()
	svc := newAuthService(repo, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, models.RegisterRequest{
		Name:     "Asha",
		Email:    "asha@example.com",
		Password: "secret123",
		Role:     models.RoleDonor,
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "wrongpass"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	repo.byEmail["asha@example.com"].Active = false
	_, err = svc.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "secret123"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := newAuthService(nil, nil)
	ctx := context.Background()

	res, err := svc.Register(ctx, models.RegisterRequest{
		Name:     "Hope NGO",
		Email:    "ngo@example.com",
		Password: "secret123",
		Role:     models.RoleReceiver,
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	require.Equal(t, res.User.ID, claims.UserID)
	require.Equal(t, models.RoleReceiver, claims.Role)

	_, err = svc.ValidateToken(res.Token + "tampered")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	other := newAuthService(nil, nil)
	other.config.TokenSecret = "different-secret"
	_, err = other.ValidateToken(res.Token)
	require.Error(t, err)
}

func TestAuthServiceMe(t *testing.T) {
	repo := newUserRepoStub()
	svc := newAuthService(repo, nil)
	ctx := context.Background()

	res, err := svc.Register(ctx, models.RegisterRequest{
		Name:     "Asha",
		Email:    "asha@example.com",
		Password: "secret123",
		Role:     models.RoleDonor,
	})
	require.NoError(t, err)

	info, err := svc.Me(ctx, &models.JWTClaims{UserID: res.User.ID})
	require.NoError(t, err)
	require.Equal(t, "asha@example.com", info.Email)

	_, err = svc.Me(ctx, &models.JWTClaims{UserID: "ghost"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.Me(ctx, nil)
	require.Error(t, err)
}
