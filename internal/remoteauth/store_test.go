package remoteauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *AuthStore {
	s, err := NewAuthStore()
	require.NoError(t, err)
	return s
}

func TestGetOrCreateCode_StableUntilExpiry(t *testing.T) {
	s := newStore(t)
	code1, err := s.GetOrCreateCode()
	require.NoError(t, err)
	code2, err := s.GetOrCreateCode()
	require.NoError(t, err)
	assert.Equal(t, code1, code2)
}

func TestTryPair_Success(t *testing.T) {
	s := newStore(t)
	code, err := s.GetOrCreateCode()
	require.NoError(t, err)

	token, expiresIn, err := s.TryPair(code, "127.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, TokenTTL, expiresIn)
	assert.True(t, s.ValidateToken(token))
}

func TestTryPair_Atomicity_CodeInvalidatedOnFirstUse(t *testing.T) {
	s := newStore(t)
	code, err := s.GetOrCreateCode()
	require.NoError(t, err)

	_, _, err = s.TryPair(code, "127.0.0.1")
	require.NoError(t, err)

	_, _, err = s.TryPair(code, "127.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestTryPair_RateLimitedAfterFiveFailures(t *testing.T) {
	s := newStore(t)
	_, err := s.GetOrCreateCode()
	require.NoError(t, err)

	var lastErr error
	for i := 0; i < 6; i++ {
		_, _, lastErr = s.TryPair("000000", "10.0.0.1")
	}
	assert.ErrorIs(t, lastErr, ErrRateLimited)
}

func TestValidateToken_RejectsUnknown(t *testing.T) {
	s := newStore(t)
	assert.False(t, s.ValidateToken("not-a-real-token"))
}

func TestRefreshToken_RevokesOldMintsNew(t *testing.T) {
	s := newStore(t)
	code, err := s.GetOrCreateCode()
	require.NoError(t, err)
	token, _, err := s.TryPair(code, "127.0.0.1")
	require.NoError(t, err)

	newToken, _, err := s.RefreshToken(token)
	require.NoError(t, err)
	assert.NotEqual(t, token, newToken)
	assert.False(t, s.ValidateToken(token))
	assert.True(t, s.ValidateToken(newToken))
}

func TestListAndRevokeTokens(t *testing.T) {
	s := newStore(t)
	code, err := s.GetOrCreateCode()
	require.NoError(t, err)
	token, _, err := s.TryPair(code, "127.0.0.1")
	require.NoError(t, err)

	tokens := s.ListTokens()
	require.Len(t, tokens, 1)

	assert.True(t, s.RevokeToken(tokens[0].ID))
	assert.False(t, s.ValidateToken(token))
	assert.False(t, s.RevokeToken(tokens[0].ID))
}

func TestRefreshAge_IsBeforeTTL(t *testing.T) {
	assert.Less(t, RefreshAge, TokenTTL)
	assert.Equal(t, 72000*time.Second, RefreshAge)
}
