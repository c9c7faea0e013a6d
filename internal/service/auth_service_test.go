package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-calendar-api/internal/models"
	appErrors "github.com/noah-isme/school-calendar-api/pkg/errors"
)

type mockAuthRepo struct {
	user *models.User
	err  error
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.user == nil || m.user.Username != username {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func newAuthService(t *testing.T, repo *mockAuthRepo) *AuthService {
	t.Helper()
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "school-calendar-api",
	})
}

func teacherUser(t *testing.T) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("teacher123"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{ID: 2, Username: "teacher", PasswordHash: string(hash), Role: models.RoleTeacher, FullName: "Test Teacher"}
}

func TestLoginSuccess(t *testing.T) {
	svc := newAuthService(t, &mockAuthRepo{user: teacherUser(t)})

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "teacher", Password: "teacher123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, int64(2), res.User.ID)
	assert.Equal(t, models.RoleTeacher, res.User.Role)

	identity, err := svc.Resolve(res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{UserID: 2, Role: models.RoleTeacher}, identity)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthService(t, &mockAuthRepo{user: teacherUser(t)})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "teacher", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "nobody", Password: "teacher123"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginValidatesPayload(t *testing.T) {
	svc := newAuthService(t, &mockAuthRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "teacher"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "password", appErr.Field)
}

func TestLoginStorageFailure(t *testing.T) {
	svc := newAuthService(t, &mockAuthRepo{err: errors.New("connection refused")})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "teacher", Password: "x"})
	assert.ErrorIs(t, err, appErrors.ErrStorage)
}

func TestResolveEmptyToken(t *testing.T) {
	svc := newAuthService(t, &mockAuthRepo{})

	_, err := svc.Resolve("")
	assert.ErrorIs(t, err, appErrors.ErrUnauthenticated)
}

func TestResolveRejectsInvalidTokens(t *testing.T) {
	svc := newAuthService(t, &mockAuthRepo{})
	user := teacherUser(t)

	valid, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().UTC() }

	other := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "other", Issuer: "school-calendar-api"})
	foreign, _, err := other.generateAccessToken(user)
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, claims *models.JWTClaims) string {
		token, err := jwt.NewWithClaims(method, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		return token
	}
	registered := jwt.RegisteredClaims{
		Issuer:    "school-calendar-api",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	wrongAlg := sign(jwt.SigningMethodHS384, &models.JWTClaims{UserID: 2, Role: models.RoleTeacher, RegisteredClaims: registered})
	unknownRole := sign(jwt.SigningMethodHS256, &models.JWTClaims{UserID: 2, Role: "janitor", RegisteredClaims: registered})

	cases := map[string]string{
		"malformed":     "not-a-token",
		"expired":       expired,
		"bad signature": foreign,
		"wrong alg":     wrongAlg,
		"unknown role":  unknownRole,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Resolve(token)
			assert.ErrorIs(t, err, appErrors.ErrInvalidCredential)
		})
	}

	_, err = svc.Resolve(valid)
	assert.NoError(t, err)
}

func TestValidateTokenReturnsClaims(t *testing.T) {
	svc := newAuthService(t, &mockAuthRepo{})

	token, _, err := svc.generateAccessToken(teacherUser(t))
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "teacher", claims.Username)
	assert.Equal(t, "Test Teacher", claims.FullName)
	assert.Equal(t, "2", claims.Subject)
}
