package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/commentsync/internal/domain"
)

func TestTokens_IssueAndParse(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	raw, err := tokens.Issue(domain.User{ID: "7", DisplayName: "Alice"})
	require.NoError(t, err)

	user, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.User{ID: "7", DisplayName: "Alice"}, user)
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	valid, err := tokens.Issue(domain.User{ID: "7"})
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokens("other", time.Hour).Parse(valid)
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokens("secret", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Parse(valid)
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("unsigned", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "7"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tokens.Parse(raw)
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("no subject", func(t *testing.T) {
		raw, err := tokens.Issue(domain.User{})
		require.NoError(t, err)
		_, err = tokens.Parse(raw)
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Parse("not-a-token")
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
	})
}
