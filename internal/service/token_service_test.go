package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-shift-api/internal/models"
	appErrors "github.com/noah-isme/sma-shift-api/pkg/errors"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "shift-api", Audience: []string{"shift-admin"}})
	user := &models.User{ID: "admin-1", Email: "admin@example.com", FullName: "Admin", Role: models.RoleAdmin}

	token, expiresAt, err := svc.IssueToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestTokenServiceRejectsForeignTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "shift-api"})
	user := &models.User{ID: "admin-1", Role: models.RoleAdmin}

	other := NewTokenService(TokenConfig{Secret: "other", Issuer: "shift-api"})
	token, _, err := other.IssueToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	wrongIssuer := NewTokenService(TokenConfig{Secret: "secret", Issuer: "someone-else"})
	token, _, err = wrongIssuer.IssueToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	expired := NewTokenService(TokenConfig{Secret: "secret", Issuer: "shift-api"})
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err = expired.IssueToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
