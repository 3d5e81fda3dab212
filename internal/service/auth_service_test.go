package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
)

type mockAuthRepo struct {
	seq        int
	professors map[string]*models.Professor
	tokens     map[string]*models.RefreshToken
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		professors: map[string]*models.Professor{},
		tokens:     map[string]*models.RefreshToken{},
	}
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.Professor, error) {
	for _, professor := range m.professors {
		if professor.Email == email {
			copy := *professor
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.Professor, error) {
	if professor, ok := m.professors[id]; ok {
		copy := *professor
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, professor *models.Professor) error {
	m.seq++
	professor.ID = fmt.Sprintf("prof%d", m.seq)
	copy := *professor
	m.professors[professor.ID] = &copy
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	copy := *token
	m.tokens[token.Token] = &copy
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := m.tokens[token]; ok {
		copy := *stored
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.tokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func newAuthFixture() (*AuthService, *mockAuthRepo) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "lettermanager-api",
	})
	return svc, repo
}

func registerAndLogin(t *testing.T, svc *AuthService) *models.LoginResponse {
	t.Helper()
	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "ada@example.edu",
		Password: "correct-horse",
		FullName: "Dr. Ada Lovelace",
	})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ada@example.edu",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	return resp
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, repo := newAuthFixture()

	professor, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "ada@example.edu",
		Password: "correct-horse",
		FullName: "Dr. Ada Lovelace",
	})
	require.NoError(t, err)
	assert.True(t, professor.Active)
	assert.NotEqual(t, "correct-horse", professor.PasswordHash)
	assert.True(t, professor.HeaderLayout.ShowName)
	assert.Len(t, repo.professors, 1)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newAuthFixture()
	registerAndLogin(t, svc)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "ada@example.edu",
		Password: "another-pass",
		FullName: "Someone Else",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture()
	registerAndLogin(t, svc)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ada@example.edu",
		Password: "wrong-horse",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture()

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.edu",
		Password: "whatever1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, repo := newAuthFixture()
	resp := registerAndLogin(t, svc)
	repo.professors[resp.Professor.ID].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ada@example.edu",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAccessTokenRoundtrip(t *testing.T) {
	svc, _ := newAuthFixture()
	resp := registerAndLogin(t, svc)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.Professor.ID, claims.ProfessorID)
	assert.Equal(t, "ada@example.edu", claims.Email)
	assert.Equal(t, "Dr. Ada Lovelace", claims.FullName)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc, _ := newAuthFixture()
	resp := registerAndLogin(t, svc)

	other := NewAuthService(newMockAuthRepo(), validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: 15 * time.Minute,
	})
	_, err := other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, repo := newAuthFixture()
	resp := registerAndLogin(t, svc)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: resp.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, refreshed.RefreshToken)
	assert.True(t, repo.tokens[resp.RefreshToken].Revoked)

	// The used token is spent; replaying it must fail.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: resp.RefreshToken,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	svc, repo := newAuthFixture()
	resp := registerAndLogin(t, svc)
	repo.tokens[resp.RefreshToken].ExpiresAt = time.Now().UTC().Add(-time.Minute)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: resp.RefreshToken,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutRevokesOwnTokenOnly(t *testing.T) {
	svc, repo := newAuthFixture()
	resp := registerAndLogin(t, svc)

	err := svc.Logout(context.Background(), resp.RefreshToken, "someone-else")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.tokens[resp.RefreshToken].Revoked)

	require.NoError(t, svc.Logout(context.Background(), resp.RefreshToken, resp.Professor.ID))
	assert.True(t, repo.tokens[resp.RefreshToken].Revoked)

	// Logging out twice is a no-op.
	require.NoError(t, svc.Logout(context.Background(), resp.RefreshToken, resp.Professor.ID))
}
