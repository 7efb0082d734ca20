package statestore

import "context"

// Scope separates short-lived flow state from state that must survive
// restarts. ScopeTab mirrors a browser tab's session storage: hand-off
// flags and transaction records that belong to one flow. ScopeDevice
// mirrors local storage: credentials and destinations reused across runs.
type Scope string

const (
	ScopeTab    Scope = "tab"
	ScopeDevice Scope = "device"
)

// Well-known keys. These are shared, mutable hand-off channels between
// flows; every reader must treat absence as a valid state.
const (
	// KeyOrchestrationActive (tab) marks an orchestration run in
	// progress so competing flows defer to it.
	KeyOrchestrationActive = "orchestration_active"

	// KeyFinalRedirect (device) is the destination to navigate to once a
	// run completes.
	KeyFinalRedirect = "final_redirect"

	// KeyCachedCredential (device) holds the persisted credential blob
	// {token, expiresAt, refreshedAt}.
	KeyCachedCredential = "cached_credential"

	// KeyOAuthTransaction (tab) holds the CSRF transaction record
	// {state, timestamp}.
	KeyOAuthTransaction = "oauth_transaction"
)

// Store is the process-wide two-tier key/value store. Implementations
// must be safe for concurrent use; callers must not assume a key they
// read is still present when they write.
type Store interface {
	// Get returns the value and whether the key exists. A missing key is
	// not an error.
	Get(ctx context.Context, scope Scope, key string) (string, bool, error)

	// Set stores or replaces the value.
	Set(ctx context.Context, scope Scope, key, value string) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, scope Scope, key string) error

	// ClearScope removes every key in the scope.
	ClearScope(ctx context.Context, scope Scope) error
}
