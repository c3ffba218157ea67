package service

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T, secret string) *TokenService {
	t.Helper()
	svc, err := NewTokenService(&config.Config{SecretKey: secret, VariantTokenMaxAge: 24 * time.Hour}, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

func TestVariantTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(t, "secret")

	token, err := svc.SignVariantToken(42)
	require.NoError(t, err)
	assert.True(t, svc.CheckVariantToken(token, 42))
	assert.False(t, svc.CheckVariantToken(token, 43), "token is bound to its variant")
}

func TestVariantTokenExpires(t *testing.T) {
	svc := newTestTokenService(t, "secret")
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	token, err := svc.SignVariantToken(7)
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(23 * time.Hour) }
	assert.True(t, svc.CheckVariantToken(token, 7))

	svc.now = func() time.Time { return issued.Add(25 * time.Hour) }
	assert.False(t, svc.CheckVariantToken(token, 7))
}

func TestVariantTokenRejectsOtherKeys(t *testing.T) {
	signer := newTestTokenService(t, "secret-a")
	checker := newTestTokenService(t, "secret-b")

	token, err := signer.SignVariantToken(1)
	require.NoError(t, err)
	assert.False(t, checker.CheckVariantToken(token, 1))
	assert.False(t, checker.CheckVariantToken("not-a-token", 1))
	assert.False(t, checker.CheckVariantToken("", 1))
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService(&config.Config{}, zerolog.Nop())
	assert.Error(t, err)
}
