package exchange

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/dayplanhq/go-session-engine/backend"
	"github.com/dayplanhq/go-session-engine/identity"
	apperrors "github.com/dayplanhq/go-session-engine/internal/errors"
	"github.com/dayplanhq/go-session-engine/internal/utils"
	"github.com/dayplanhq/go-session-engine/token"
)

// AccountSyncer is the one backend operation the processor needs.
type AccountSyncer interface {
	SyncAccount(ctx context.Context, payload backend.AccountSyncPayload) (*backend.AccountSyncResult, error)
}

// CredentialManager is the slice of the token manager the processor
// drives: installing the session's refresh source and forcing the first
// refresh.
type CredentialManager interface {
	SetSource(source token.Source)
	ForceRefresh(ctx context.Context) error
}

// Result is the outcome of a processed callback.
type Result struct {
	Identity       *identity.Session
	IsNewAccount   bool
	CalendarTokens backend.CalendarTokens
	GrantedScopes  []string
}

// Processor validates the CSRF state, exchanges the authorization code,
// binds a local identity session, and syncs the account to the backend.
type Processor struct {
	oauthConfig *oauth2.Config
	txns        *TxnStore
	verifier    AssertionVerifier
	identities  identity.Repo
	accounts    AccountSyncer
	credentials CredentialManager
	log         zerolog.Logger
	nowTime     func() time.Time // nowTime function (injectable for testing)
}

// ProcessorOption defines a function type to modify the Processor instance.
type ProcessorOption func(*Processor)

// WithProcessorNowTime sets the now time function (primarily for testing)
func WithProcessorNowTime(nowFunc func() time.Time) ProcessorOption {
	return func(p *Processor) {
		p.nowTime = nowFunc
	}
}

// WithProcessorLogger sets the logger.
func WithProcessorLogger(log zerolog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.log = log
	}
}

// NewProcessor initializes a Processor with required dependencies.
func NewProcessor(
	oauthConfig *oauth2.Config,
	txns *TxnStore,
	verifier AssertionVerifier,
	identities identity.Repo,
	accounts AccountSyncer,
	credentials CredentialManager,
	options ...ProcessorOption,
) (*Processor, error) {
	if oauthConfig == nil {
		return nil, errors.New("[NewProcessor] oauthConfig is required")
	}
	if txns == nil {
		return nil, errors.New("[NewProcessor] transaction store is required")
	}
	if verifier == nil {
		return nil, errors.New("[NewProcessor] verifier is required")
	}
	if identities == nil {
		return nil, errors.New("[NewProcessor] identities repo is required")
	}
	if accounts == nil {
		return nil, errors.New("[NewProcessor] account syncer is required")
	}
	if credentials == nil {
		return nil, errors.New("[NewProcessor] credential manager is required")
	}

	processor := &Processor{
		oauthConfig: oauthConfig,
		txns:        txns,
		verifier:    verifier,
		identities:  identities,
		accounts:    accounts,
		credentials: credentials,
		log:         zerolog.Nop(),
		nowTime:     time.Now,
	}

	for _, opt := range options {
		opt(processor)
	}

	return processor, nil
}

// AuthCodeURL begins an OAuth transaction and returns the provider
// authorize URL carrying the CSRF state. offline access and forced
// consent guarantee a refresh token comes back with the exchange.
func (p *Processor) AuthCodeURL(ctx context.Context) (string, error) {
	state, err := p.txns.Begin(ctx)
	if err != nil {
		return "", errors.Wrap(err, "[Processor.AuthCodeURL] begin transaction")
	}

	return p.oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	), nil
}

// ProcessCallback runs the five exchange steps strictly in order. Any
// failure is terminal for this attempt; the transaction is consumed
// either way.
func (p *Processor) ProcessCallback(ctx context.Context, code, state string) (*Result, error) {
	// Step 1: the CSRF transaction is single use, bounded to the
	// validity window.
	if err := p.txns.Consume(ctx, state); err != nil {
		return nil, errors.Wrap(err, "[Processor.ProcessCallback] state validation")
	}

	// Step 2: exchange the code with the provider's token endpoint.
	oauth2Token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrTokenExchangeFailed, err.Error())
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || rawIDToken == "" || oauth2Token.AccessToken == "" {
		return nil, errors.Wrap(apperrors.ErrIncompleteTokenResponse, "[Processor.ProcessCallback] missing access or identity token")
	}

	// Step 3: verify the assertion and bind a local session. The session
	// ID, not the provider subject, is the canonical account key.
	claims, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrIncompleteTokenResponse, err.Error())
	}

	session := identity.NewSession(claims.Subject, claims.Email, claims.Name, claims.Picture, p.nowTime())
	if err := p.identities.Bind(session); err != nil {
		return nil, errors.Wrap(err, "[Processor.ProcessCallback] bind session")
	}

	calendarTokens := backend.CalendarTokens{
		AccessToken:  oauth2Token.AccessToken,
		RefreshToken: oauth2Token.RefreshToken,
	}
	if !oauth2Token.Expiry.IsZero() {
		calendarTokens.ExpiresAt = utils.Ptr(oauth2Token.Expiry)
	}

	scope, _ := oauth2Token.Extra("scope").(string)

	// Step 4: one normalized payload to the backend account endpoint.
	syncResult, err := p.accounts.SyncAccount(ctx, backend.AccountSyncPayload{
		UserData: backend.UserData{
			PrimaryID:      session.ID,
			Email:          session.Email,
			DisplayName:    session.DisplayName,
			PhotoURL:       session.PhotoURL,
			CalendarTokens: calendarTokens,
		},
		Tokens: backend.ProviderTokens{
			AccessToken:  oauth2Token.AccessToken,
			RefreshToken: oauth2Token.RefreshToken,
			IDToken:      rawIDToken,
			ExpiresIn:    expiresIn(oauth2Token.Expiry, p.nowTime()),
			Scope:        scope,
			TokenType:    oauth2Token.TokenType,
		},
	})
	if err != nil {
		return nil, err
	}

	// Step 5: install the session's refresh source and force a fresh
	// credential so immediately-following authenticated calls do not
	// race against provider propagation.
	p.credentials.SetSource(token.NewRefreshTokenSource(p.oauthConfig, oauth2Token.RefreshToken))
	if err := p.credentials.ForceRefresh(ctx); err != nil {
		return nil, errors.Wrap(err, "[Processor.ProcessCallback] post-exchange refresh")
	}

	p.log.Info().Str("session_id", session.ID).Bool("new_account", syncResult.IsNewUser).Msg("callback processed")

	return &Result{
		Identity:       session,
		IsNewAccount:   syncResult.IsNewUser,
		CalendarTokens: calendarTokens,
		GrantedScopes:  strings.Fields(scope),
	}, nil
}

func expiresIn(expiry time.Time, now time.Time) int64 {
	if expiry.IsZero() {
		return 0
	}
	return int64(expiry.Sub(now).Seconds())
}
