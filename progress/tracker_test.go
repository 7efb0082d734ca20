package progress_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dayplanhq/go-session-engine/progress"
)

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	require.Fail(t, "condition not met within "+timeout.String())
}

func TestNavigationWaitsForMinimumDisplayTime(t *testing.T) {
	tracker := progress.NewTracker(progress.WithPollInterval(5 * time.Millisecond))

	var readyFired atomic.Int32
	tracker.Start(60*time.Millisecond, func() { readyFired.Add(1) })
	defer tracker.Stop()

	// Content ready immediately, but the minimum display time has not
	// elapsed: navigation stays gated.
	tracker.MarkContentReady()
	require.False(t, tracker.CanNavigate())
	require.True(t, tracker.IsLoading())

	waitFor(t, 1*time.Second, tracker.CanNavigate)
	require.False(t, tracker.IsLoading())
	require.Equal(t, int32(1), readyFired.Load())
	require.Equal(t, 100, tracker.Progress())
}

func TestNavigationWaitsForContentReady(t *testing.T) {
	tracker := progress.NewTracker(progress.WithPollInterval(5 * time.Millisecond))

	var readyFired atomic.Int32
	tracker.Start(10*time.Millisecond, func() { readyFired.Add(1) })
	defer tracker.Stop()

	// Minimum time passes, but content is not ready yet.
	time.Sleep(40 * time.Millisecond)
	require.False(t, tracker.CanNavigate())

	// The later of the two conditions performs the check.
	tracker.MarkContentReady()
	require.True(t, tracker.CanNavigate())
	require.Equal(t, int32(1), readyFired.Load())
}

func TestSafetyTimeoutForcesNavigation(t *testing.T) {
	tracker := progress.NewTracker(
		progress.WithPollInterval(5*time.Millisecond),
		progress.WithSafetyTimeout(50*time.Millisecond),
	)

	var readyFired atomic.Int32
	// Content never becomes ready and the minimum display time is far
	// beyond the safety ceiling.
	tracker.Start(10*time.Second, func() { readyFired.Add(1) })
	defer tracker.Stop()

	waitFor(t, 1*time.Second, tracker.CanNavigate)
	require.Equal(t, int32(1), readyFired.Load())
	require.Equal(t, 100, tracker.Progress())
}

func TestProgressIsCappedUntilNavigable(t *testing.T) {
	tracker := progress.NewTracker(progress.WithPollInterval(5 * time.Millisecond))

	tracker.Start(30*time.Millisecond, func() {})
	defer tracker.Stop()

	time.Sleep(60 * time.Millisecond)
	// Min time elapsed but not ready: progress holds below 100.
	require.LessOrEqual(t, tracker.Progress(), 90)
	require.False(t, tracker.CanNavigate())
}

func TestStopPreventsReadyCallback(t *testing.T) {
	tracker := progress.NewTracker(
		progress.WithPollInterval(5*time.Millisecond),
		progress.WithSafetyTimeout(30*time.Millisecond),
	)

	var readyFired atomic.Int32
	tracker.Start(10*time.Millisecond, func() { readyFired.Add(1) })
	tracker.Stop()

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, int32(0), readyFired.Load())
	require.False(t, tracker.IsLoading())
}
