package exchange_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dayplanhq/go-session-engine/exchange"
	apperrors "github.com/dayplanhq/go-session-engine/internal/errors"
	"github.com/dayplanhq/go-session-engine/statestore"
)

func TestTransactionSingleUse(t *testing.T) {
	store := statestore.NewMemoryStore()
	txns, err := exchange.NewTxnStore(store)
	require.NoError(t, err)

	state, err := txns.Begin(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, state)

	require.NoError(t, txns.Consume(context.Background(), state))

	// Validating the same state twice always fails the second time.
	err = txns.Consume(context.Background(), state)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestTransactionConsumedEvenOnFailure(t *testing.T) {
	store := statestore.NewMemoryStore()
	txns, err := exchange.NewTxnStore(store)
	require.NoError(t, err)

	state, err := txns.Begin(context.Background())
	require.NoError(t, err)

	// A mismatched attempt burns the record too.
	err = txns.Consume(context.Background(), "some-other-state")
	require.ErrorIs(t, err, apperrors.ErrInvalidState)

	err = txns.Consume(context.Background(), state)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestTransactionExpiry(t *testing.T) {
	now := time.Now()
	currentTime := now

	store := statestore.NewMemoryStore()
	txns, err := exchange.NewTxnStore(store, exchange.WithTxnNowTime(func() time.Time { return currentTime }))
	require.NoError(t, err)

	state, err := txns.Begin(context.Background())
	require.NoError(t, err)

	// 11 minutes later the otherwise-correct state is rejected.
	currentTime = now.Add(11 * time.Minute)
	err = txns.Consume(context.Background(), state)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestTransactionWithinWindow(t *testing.T) {
	now := time.Now()
	currentTime := now

	store := statestore.NewMemoryStore()
	txns, err := exchange.NewTxnStore(store, exchange.WithTxnNowTime(func() time.Time { return currentTime }))
	require.NoError(t, err)

	state, err := txns.Begin(context.Background())
	require.NoError(t, err)

	currentTime = now.Add(1 * time.Minute)
	require.NoError(t, txns.Consume(context.Background(), state))
}

func TestConsumeWithNoPendingTransaction(t *testing.T) {
	store := statestore.NewMemoryStore()
	txns, err := exchange.NewTxnStore(store)
	require.NoError(t, err)

	err = txns.Consume(context.Background(), "never-issued")
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}
