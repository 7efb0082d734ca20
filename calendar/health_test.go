package calendar_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dayplanhq/go-session-engine/calendar"
	"github.com/dayplanhq/go-session-engine/identity"
	apperrors "github.com/dayplanhq/go-session-engine/internal/errors"
)

// fakeProber plays back a status or error and counts probes.
type fakeProber struct {
	status int
	err    error
	probes atomic.Int32
}

func (p *fakeProber) EventsForDay(_ context.Context, _ time.Time) (int, error) {
	p.probes.Add(1)
	if p.err != nil {
		return 0, p.err
	}
	return p.status, nil
}

func setupService(t *testing.T, probe *fakeProber, withIdentity bool) *calendar.Service {
	t.Helper()

	identities := identity.NewInMemoryRepo()
	if withIdentity {
		session := identity.NewSession("provider-subject-1", "john.doe@example.com", "John Doe", "", time.Now())
		require.NoError(t, identities.Bind(session))
	}

	service, err := calendar.NewService(probe, identities)
	require.NoError(t, err)
	return service
}

func TestValidateHealthy(t *testing.T) {
	probe := &fakeProber{status: http.StatusOK}
	service := setupService(t, probe, true)

	result := service.Validate(context.Background(), "", false)
	require.True(t, result.Healthy)
	require.Empty(t, result.Error)
	require.False(t, result.NeedsReauth)
}

func TestValidateMemoizesSuccess(t *testing.T) {
	probe := &fakeProber{status: http.StatusOK}
	service := setupService(t, probe, true)

	require.True(t, service.Validate(context.Background(), "", false).Healthy)

	// Any number of later calls short-circuit without a network call.
	for i := 0; i < 5; i++ {
		result := service.Validate(context.Background(), "", false)
		require.True(t, result.Healthy)
		require.Equal(t, calendar.SkipAlreadyValidated, result.SkipReason)
	}
	require.Equal(t, int32(1), probe.probes.Load())
}

func TestValidateSkipsDuringOAuthFlow(t *testing.T) {
	probe := &fakeProber{status: http.StatusOK}
	service := setupService(t, probe, true)

	result := service.Validate(context.Background(), "connecting", false)
	require.False(t, result.Healthy)
	require.Equal(t, calendar.SkipOAuthInProgress, result.SkipReason)

	result = service.Validate(context.Background(), "", true)
	require.Equal(t, calendar.SkipOAuthInProgress, result.SkipReason)

	require.Equal(t, int32(0), probe.probes.Load())
}

func TestValidateSkipsWithoutIdentity(t *testing.T) {
	probe := &fakeProber{status: http.StatusOK}
	service := setupService(t, probe, false)

	result := service.Validate(context.Background(), "", false)
	require.Equal(t, calendar.SkipNoUser, result.SkipReason)
	require.Equal(t, int32(0), probe.probes.Load())
}

func TestValidateAuthFailureNeedsReauth(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusBadRequest} {
		probe := &fakeProber{status: status}
		service := setupService(t, probe, true)

		result := service.Validate(context.Background(), "", false)
		require.False(t, result.Healthy)
		require.Equal(t, calendar.ErrorCalendarAuthFailed, result.Error)
		require.True(t, result.NeedsReauth)
	}
}

func TestValidateAPIErrorIsTransient(t *testing.T) {
	probe := &fakeProber{status: http.StatusBadGateway}
	service := setupService(t, probe, true)

	result := service.Validate(context.Background(), "", false)
	require.False(t, result.Healthy)
	require.Equal(t, calendar.ErrorCalendarAPI, result.Error)
	require.False(t, result.NeedsReauth)

	// A transient failure is not memoized; the next call probes again.
	service.Validate(context.Background(), "", false)
	require.Equal(t, int32(2), probe.probes.Load())
}

func TestValidateNetworkError(t *testing.T) {
	probe := &fakeProber{err: apperrors.ErrNetworkError}
	service := setupService(t, probe, true)

	result := service.Validate(context.Background(), "", false)
	require.False(t, result.Healthy)
	require.Equal(t, calendar.ErrorNetwork, result.Error)
}

func TestResetClearsMemoization(t *testing.T) {
	probe := &fakeProber{status: http.StatusOK}
	service := setupService(t, probe, true)

	require.True(t, service.Validate(context.Background(), "", false).Healthy)
	service.Reset()

	result := service.Validate(context.Background(), "", false)
	require.True(t, result.Healthy)
	require.Empty(t, result.SkipReason)
	require.Equal(t, int32(2), probe.probes.Load())
}
