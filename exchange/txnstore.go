package exchange

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	apperrors "github.com/dayplanhq/go-session-engine/internal/errors"
	"github.com/dayplanhq/go-session-engine/statestore"
)

const (
	stateGenerationLength = 32
	defaultStateValidity  = 10 * time.Minute
)

// Transaction is the ephemeral CSRF-protection record paired with a
// provider redirect. Persisted JSON shape: {state, timestamp}.
type Transaction struct {
	State     string    `json:"state"`
	CreatedAt time.Time `json:"timestamp"`
}

// TxnStore manages OAuth transactions in the tab scope of the state
// store. A state value is accepted exactly once and only within the
// validity window; the record is deleted on any validation attempt.
type TxnStore struct {
	store    statestore.Store
	validity time.Duration
	nowTime  func() time.Time // nowTime function (injectable for testing)
}

// TxnStoreOption defines a function type to modify the TxnStore instance.
type TxnStoreOption func(*TxnStore)

// WithValidity sets the window within which a state is accepted.
func WithValidity(validity time.Duration) TxnStoreOption {
	return func(s *TxnStore) {
		s.validity = validity
	}
}

// WithTxnNowTime sets the now time function (primarily for testing)
func WithTxnNowTime(nowFunc func() time.Time) TxnStoreOption {
	return func(s *TxnStore) {
		s.nowTime = nowFunc
	}
}

// NewTxnStore creates a transaction store over the given state store.
func NewTxnStore(store statestore.Store, options ...TxnStoreOption) (*TxnStore, error) {
	if store == nil {
		return nil, errors.New("[NewTxnStore] store is required")
	}

	txnStore := &TxnStore{
		store:    store,
		validity: defaultStateValidity,
		nowTime:  time.Now,
	}

	for _, opt := range options {
		opt(txnStore)
	}

	return txnStore, nil
}

// Begin generates a new CSRF state and records the transaction. Any
// previous pending transaction in this tab is replaced.
func (s *TxnStore) Begin(ctx context.Context) (string, error) {
	stateBytes := make([]byte, stateGenerationLength)
	if _, err := rand.Read(stateBytes); err != nil {
		return "", errors.Wrap(err, "[TxnStore.Begin] rand.Read")
	}
	state := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(stateBytes)

	blob, err := json.Marshal(Transaction{State: state, CreatedAt: s.nowTime()})
	if err != nil {
		return "", errors.Wrap(err, "[TxnStore.Begin] encode transaction")
	}

	if err := s.store.Set(ctx, statestore.ScopeTab, statestore.KeyOAuthTransaction, string(blob)); err != nil {
		return "", errors.Wrap(err, "[TxnStore.Begin] store transaction")
	}
	return state, nil
}

// Consume validates the presented state against the recorded transaction.
// The record is deleted before validation completes, success or failure,
// so a state can never be accepted twice.
func (s *TxnStore) Consume(ctx context.Context, state string) error {
	raw, ok, err := s.store.Get(ctx, statestore.ScopeTab, statestore.KeyOAuthTransaction)

	// Single use: remove the record regardless of what validation says.
	_ = s.store.Delete(ctx, statestore.ScopeTab, statestore.KeyOAuthTransaction)

	if err != nil {
		return errors.Wrap(err, "[TxnStore.Consume] read transaction")
	}
	if !ok {
		return errors.Wrap(apperrors.ErrInvalidState, "[TxnStore.Consume] no pending transaction")
	}

	var txn Transaction
	if err := json.Unmarshal([]byte(raw), &txn); err != nil {
		return errors.Wrap(apperrors.ErrInvalidState, "[TxnStore.Consume] undecodable transaction")
	}

	if state == "" || txn.State != state {
		return errors.Wrap(apperrors.ErrInvalidState, "[TxnStore.Consume] state mismatch")
	}
	if s.nowTime().Sub(txn.CreatedAt) > s.validity {
		return errors.Wrap(apperrors.ErrInvalidState, "[TxnStore.Consume] transaction expired")
	}
	return nil
}
