package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dayplanhq/go-session-engine/internal/errors"
	"github.com/dayplanhq/go-session-engine/token"
)

func mintToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func TestDecodeClaims(t *testing.T) {
	expiry := time.Now().Add(1 * time.Hour).Truncate(time.Second)
	issued := time.Now().Truncate(time.Second)

	raw := mintToken(t, jwtlib.MapClaims{
		"sub":   "provider-subject-1",
		"email": "john.doe@example.com",
		"exp":   expiry.Unix(),
		"iat":   issued.Unix(),
	})

	claims, err := token.DecodeClaims(raw)
	require.NoError(t, err)
	require.Equal(t, "provider-subject-1", claims.Subject)
	require.Equal(t, "john.doe@example.com", claims.Email)
	require.Equal(t, expiry.Unix(), claims.ExpiresAt.Unix())
	require.Equal(t, issued.Unix(), claims.IssuedAt.Unix())
}

func TestDecodeClaimsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":              "",
		"not a token":        "definitely-not-a-jwt",
		"two segments":       "abc.def",
		"bad base64 payload": "eyJhbGciOiJIUzI1NiJ9.!!!not-base64!!!.signature",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := token.DecodeClaims(raw)
			require.ErrorIs(t, err, apperrors.ErrMalformedToken)
		})
	}
}

func TestDecodeClaimsMissingExpiry(t *testing.T) {
	raw := mintToken(t, jwtlib.MapClaims{"sub": "subject-without-exp"})

	_, err := token.DecodeClaims(raw)
	require.ErrorIs(t, err, apperrors.ErrMalformedToken)
}

func TestCredentialUsable(t *testing.T) {
	now := time.Now()
	margin := 5 * time.Minute

	usable := &token.Credential{Value: "tok", ExpiresAt: now.Add(1 * time.Hour)}
	require.True(t, usable.Usable(now, margin))

	insideMargin := &token.Credential{Value: "tok", ExpiresAt: now.Add(2 * time.Minute)}
	require.False(t, insideMargin.Usable(now, margin))

	expired := &token.Credential{Value: "tok", ExpiresAt: now.Add(-1 * time.Minute)}
	require.False(t, expired.Usable(now, margin))

	var nilCredential *token.Credential
	require.False(t, nilCredential.Usable(now, margin))
}
