package token

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	apperrors "github.com/dayplanhq/go-session-engine/internal/errors"
	"github.com/dayplanhq/go-session-engine/statestore"
)

const defaultSafetyMargin = 5 * time.Minute

// Manager owns the cached bearer credential for the active identity
// session and wraps every outbound backend call with credential
// resolution and a single retry-on-unauthorized policy.
type Manager struct {
	baseURL      string
	httpClient   *http.Client
	store        statestore.Store
	log          zerolog.Logger
	safetyMargin time.Duration
	nowTime      func() time.Time // nowTime function (injectable for testing)

	mu         sync.Mutex
	source     Source
	credential *Credential
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithHTTPClient sets the transport used for outbound calls.
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) {
		m.httpClient = client
	}
}

// WithSafetyMargin sets how close to expiry a cached credential may be
// before it is refreshed rather than reused.
func WithSafetyMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) {
		m.safetyMargin = margin
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// WithSource sets the credential source at construction. It can also be
// installed later via SetSource once the code exchange has produced a
// refresh token.
func WithSource(source Source) ManagerOption {
	return func(m *Manager) {
		m.source = source
	}
}

// NewManager initializes a Manager for the given backend base URL. The
// cache is seeded from the device-scoped store when a persisted blob
// exists; the stored expiry is discarded and re-derived from the token's
// own claims.
func NewManager(baseURL string, store statestore.Store, options ...ManagerOption) (*Manager, error) {
	if baseURL == "" {
		return nil, errors.New("[NewManager] baseURL is required")
	}
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}

	manager := &Manager{
		baseURL:      baseURL,
		httpClient:   http.DefaultClient,
		store:        store,
		log:          zerolog.Nop(),
		safetyMargin: defaultSafetyMargin,
		nowTime:      time.Now,
	}

	for _, opt := range options {
		opt(manager)
	}

	manager.seedFromStore()
	return manager, nil
}

// SetSource installs the credential source for the active session.
func (m *Manager) SetSource(source Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = source
}

type requestOptions struct {
	skipAuth bool
}

// RequestOption modifies a single Request call.
type RequestOption func(*requestOptions)

// SkipAuth issues the call with no credential attached.
func SkipAuth() RequestOption {
	return func(o *requestOptions) {
		o.skipAuth = true
	}
}

// Request issues an authenticated call against the backend. On a 401 the
// cached credential is invalidated, refreshed once, and the call retried
// exactly once; whatever the retry yields is returned. Transport errors
// propagate unchanged.
func (m *Manager) Request(ctx context.Context, method, path string, body any, opts ...RequestOption) (*http.Response, error) {
	options := requestOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	if options.skipAuth {
		return m.issue(ctx, method, path, body, "")
	}

	credential, err := m.resolveCredential(ctx, false)
	if err != nil {
		return nil, err
	}

	resp, err := m.issue(ctx, method, path, body, credential)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// One forced refresh, one retry; further 401s are returned as-is so a
	// persistently broken credential can never loop.
	drain(resp)
	m.log.Warn().Str("path", path).Msg("unauthorized response, refreshing credential and retrying once")

	m.Invalidate(ctx)
	credential, err = m.resolveCredential(ctx, true)
	if err != nil {
		return nil, err
	}
	return m.issue(ctx, method, path, body, credential)
}

// ForceRefresh obtains a fresh credential regardless of the cache state.
// Used right after the code exchange so immediately-following calls do
// not race against provider propagation.
func (m *Manager) ForceRefresh(ctx context.Context) error {
	_, err := m.resolveCredential(ctx, true)
	return err
}

// Invalidate drops the cached credential from memory and the device store.
func (m *Manager) Invalidate(ctx context.Context) {
	m.mu.Lock()
	m.credential = nil
	m.mu.Unlock()

	if err := m.store.Delete(ctx, statestore.ScopeDevice, statestore.KeyCachedCredential); err != nil {
		m.log.Warn().Err(err).Msg("failed to remove persisted credential")
	}
}

// resolveCredential returns a usable token value, refreshing through the
// source when the cache is empty, expiring, or force is set.
func (m *Manager) resolveCredential(ctx context.Context, force bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !force && m.credential.Usable(m.nowTime(), m.safetyMargin) {
		return m.credential.Value, nil
	}

	if m.source == nil {
		return "", errors.Wrap(apperrors.ErrAuthenticationFailed, "[Manager.resolveCredential] no credential source")
	}

	value, err := m.source.Refresh(ctx)
	if err != nil {
		return "", errors.Wrap(apperrors.ErrAuthenticationFailed, err.Error())
	}

	claims, err := DecodeClaims(value)
	if err != nil {
		return "", errors.Wrap(apperrors.ErrAuthenticationFailed, err.Error())
	}

	m.credential = &Credential{
		Value:       value,
		ExpiresAt:   claims.ExpiresAt,
		RefreshedAt: m.nowTime(),
	}
	m.persistLocked(ctx)

	return value, nil
}

// persistLocked writes the credential blob to the device store so it can
// be reused across restarts. Persistence failure is not fatal; the next
// run simply refreshes again.
func (m *Manager) persistLocked(ctx context.Context) {
	blob, err := json.Marshal(m.credential)
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to encode credential blob")
		return
	}
	if err := m.store.Set(ctx, statestore.ScopeDevice, statestore.KeyCachedCredential, string(blob)); err != nil {
		m.log.Warn().Err(err).Msg("failed to persist credential blob")
	}
}

// seedFromStore loads a persisted credential blob. The stored expiry is
// never trusted: it is re-derived from the token's own claims, and blobs
// that fail to decode are dropped.
func (m *Manager) seedFromStore() {
	ctx := context.Background()

	raw, ok, err := m.store.Get(ctx, statestore.ScopeDevice, statestore.KeyCachedCredential)
	if err != nil || !ok {
		return
	}

	var stored Credential
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		m.log.Warn().Err(err).Msg("dropping undecodable credential blob")
		_ = m.store.Delete(ctx, statestore.ScopeDevice, statestore.KeyCachedCredential)
		return
	}

	claims, err := DecodeClaims(stored.Value)
	if err != nil {
		m.log.Warn().Err(err).Msg("dropping persisted credential with malformed token")
		_ = m.store.Delete(ctx, statestore.ScopeDevice, statestore.KeyCachedCredential)
		return
	}

	m.mu.Lock()
	m.credential = &Credential{
		Value:       stored.Value,
		ExpiresAt:   claims.ExpiresAt,
		RefreshedAt: stored.RefreshedAt,
	}
	m.mu.Unlock()
}

// issue performs one HTTP attempt. Bodies are re-encoded per attempt so a
// retry never reuses a consumed reader.
func (m *Manager) issue(ctx context.Context, method, path string, body any, credential string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "[Manager.issue] encode body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.issue] build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	return m.httpClient.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
