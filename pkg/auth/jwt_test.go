package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewIssuer_MissingSecret(t *testing.T) {
	t.Parallel()

	_, err := NewIssuer("", time.Hour)
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssueAndParse(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2024, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	iss, err := NewIssuer("super-secret", 90*24*time.Hour)
	require.NoError(t, err)

	tok, err := iss.WithClock(fixedClock(issuedAt)).Issue("user-123")
	require.NoError(t, err)

	// one second before expiry still valid
	claims, err := iss.WithClock(fixedClock(issuedAt.Add(90*24*time.Hour - time.Second))).Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.ID)
	assert.Equal(t, issuedAt.Unix(), claims.IssuedAtUnix(), "iat is truncated to whole seconds")
}

func TestParse_Expired(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	iss, err := NewIssuer("secret", time.Hour)
	require.NoError(t, err)

	tok, err := iss.WithClock(fixedClock(issuedAt)).Issue("u1")
	require.NoError(t, err)

	_, err = iss.WithClock(fixedClock(issuedAt.Add(time.Hour + time.Second))).Parse(tok)
	require.ErrorIs(t, err, ErrTokenExpired)
	assert.False(t, errors.Is(err, ErrTokenInvalid))
}

func TestParse_WrongSecret(t *testing.T) {
	t.Parallel()

	right, _ := NewIssuer("right-secret", time.Hour)
	wrong, _ := NewIssuer("wrong-secret", time.Hour)

	tok, err := right.Issue("u2")
	require.NoError(t, err)

	_, err = wrong.Parse(tok)
	require.ErrorIs(t, err, ErrTokenInvalid)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	iss, _ := NewIssuer("k", time.Hour)
	for _, raw := range []string{"", "not.a.jwt", "abc"} {
		_, err := iss.Parse(raw)
		assert.ErrorIs(t, err, ErrTokenInvalid, "input %q", raw)
	}
}

func TestParse_RejectsNoneAlgorithm(t *testing.T) {
	t.Parallel()

	iss, _ := NewIssuer("k", time.Hour)
	claims := Claims{
		ID: "u3",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.Parse(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
