package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	apperrors "github.com/dayplanhq/go-session-engine/internal/errors"
)

// Claims is the decoded claims segment of a bearer token. Decoding is
// unverified: the values are used for lifecycle decisions (when to
// refresh), never for authorization — the backend verifies signatures.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// DecodeClaims extracts the claims segment of a JWT without verifying the
// signature. Malformed input of any kind returns ErrMalformedToken; it
// never panics.
func DecodeClaims(rawToken string) (Claims, error) {
	if rawToken == "" {
		return Claims{}, errors.Wrap(apperrors.ErrMalformedToken, "[DecodeClaims] empty token")
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return Claims{}, errors.Wrap(apperrors.ErrMalformedToken, err.Error())
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, errors.Wrap(apperrors.ErrMalformedToken, "[DecodeClaims] error extracting claims")
	}

	claims := Claims{}

	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, errors.Wrap(apperrors.ErrMalformedToken, "[DecodeClaims] missing exp claim")
	}
	claims.ExpiresAt = exp.Time

	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}

	return claims, nil
}
