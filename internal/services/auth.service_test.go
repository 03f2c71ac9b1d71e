package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestAuthRoundTrip(t *testing.T) {
	auth, err := NewAuthService(testSecret, "", time.Hour)
	require.NoError(t, err)

	token, expires, err := auth.GenerateToken("db-01")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "db-01", claims.ServerName)
	assert.Equal(t, tokenIssuer, claims.Issuer)
}

func TestAuthRejectsForeignAndExpiredTokens(t *testing.T) {
	auth, err := NewAuthService(testSecret, "", time.Hour)
	require.NoError(t, err)
	other, err := NewAuthService(strings.Repeat("z", 40), "", time.Hour)
	require.NoError(t, err)

	foreign, _, err := other.GenerateToken("x")
	require.NoError(t, err)
	_, err = auth.ValidateToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, _, err := auth.GenerateToken("x")
	require.NoError(t, err)
	auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = auth.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthShortSecretRejected(t *testing.T) {
	_, err := NewAuthService("short", "", time.Hour)
	assert.Error(t, err)
}

func TestAuthPersistsGeneratedSecret(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "secret")

	first, err := NewAuthService("", keyFile, time.Hour)
	require.NoError(t, err)
	data, err := os.ReadFile(keyFile)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(strings.TrimSpace(string(data))), minSecretLen)

	token, _, err := first.GenerateToken("host")
	require.NoError(t, err)

	second, err := NewAuthService("", keyFile, time.Hour)
	require.NoError(t, err)
	_, err = second.ValidateToken(token)
	assert.NoError(t, err, "a restarted service must accept tokens issued before")
}
