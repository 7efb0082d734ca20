package exchange

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
)

// IdentityClaims is the provider's identity assertion after verification.
type IdentityClaims struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// AssertionVerifier checks the provider's ID token and returns its
// claims. Injected so tests do not need the provider's published keys.
type AssertionVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*IdentityClaims, error)
}

// OIDCVerifier verifies assertions against the provider's discovery
// document and signing keys.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier performs provider discovery for the issuer and builds a
// verifier bound to our client ID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrap(err, "[NewOIDCVerifier] provider discovery")
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Verify checks signature, issuer, audience, and expiry, then extracts
// the identity claims.
func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (*IdentityClaims, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "[OIDCVerifier.Verify]")
	}

	var claims struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "[OIDCVerifier.Verify] extract claims")
	}

	return &IdentityClaims{
		Subject: claims.Sub,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
