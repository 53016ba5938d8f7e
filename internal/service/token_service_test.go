package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-exam-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-exam-scheduler/pkg/errors"
)

func TestTokenServiceIssueAndValidate(t *testing.T) {
	svc := NewTokenService("secret")

	token, expiresAt, err := svc.Issue("user-1", models.RoleTeacher, "t@example.com", "Teacher One", time.Hour)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestTokenServiceRejectsExpiredAndForeignTokens(t *testing.T) {
	svc := NewTokenService("secret")
	token, _, err := svc.Issue("user-1", models.RoleAdmin, "", "", time.Minute)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = NewTokenService("other").ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenServiceRejectsOtherAlgorithms(t *testing.T) {
	claims := models.JWTClaims{UserID: "u", Role: models.RoleAdmin}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenService("secret").ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenServiceIssueRequiresSecret(t *testing.T) {
	_, _, err := NewTokenService("").Issue("u", models.RoleAdmin, "", "", time.Minute)
	assert.Error(t, err)
}
