package token

import (
	"context"

	"golang.org/x/oauth2"
)

// Source obtains a fresh bearer token from the identity provider for the
// active identity session. Refresh must always hit the provider; caching
// is the Manager's job.
type Source interface {
	Refresh(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (string, error)

func (f SourceFunc) Refresh(ctx context.Context) (string, error) {
	return f(ctx)
}

// NewRefreshTokenSource builds a Source from the provider's refresh token
// obtained during the code exchange. A fresh oauth2 token source is built
// per call so every Refresh performs the refresh grant rather than
// returning oauth2's own cached token.
//
// The bearer credential must be a JWT (the Manager derives expiry from
// its claims), so the refreshed ID token is preferred; providers that
// issue JWT access tokens work through the fallback.
func NewRefreshTokenSource(cfg *oauth2.Config, refreshToken string) Source {
	return SourceFunc(func(ctx context.Context) (string, error) {
		tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			return "", err
		}
		if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
			return idToken, nil
		}
		return tok.AccessToken, nil
	})
}
