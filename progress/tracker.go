package progress

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultPollInterval  = 100 * time.Millisecond
	defaultSafetyTimeout = 15 * time.Second

	// Progress holds below this until content is actually ready, so the
	// bar never sits at 100% on a screen that cannot navigate yet.
	preReadyProgressCap = 90
)

// Tracker gates navigation away from a loading screen on two independent
// conditions: a minimum display time and a content-ready signal. A hard
// safety timeout forces navigation so the UI can never hang indefinitely.
type Tracker struct {
	log           zerolog.Logger
	pollInterval  time.Duration
	safetyTimeout time.Duration

	mu          sync.Mutex
	started     time.Time
	minDisplay  time.Duration
	elapsed     time.Duration
	ready       bool
	canNavigate bool
	loading     bool
	onReady     func()
	stop        chan struct{}
}

// TrackerOption defines a function type to modify the Tracker instance.
type TrackerOption func(*Tracker)

// WithPollInterval sets the elapsed-time polling interval.
func WithPollInterval(interval time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.pollInterval = interval
	}
}

// WithSafetyTimeout sets the hard ceiling on perceived wait time.
func WithSafetyTimeout(timeout time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.safetyTimeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.log = log
	}
}

// NewTracker creates a Tracker.
func NewTracker(options ...TrackerOption) *Tracker {
	tracker := &Tracker{
		log:           zerolog.Nop(),
		pollInterval:  defaultPollInterval,
		safetyTimeout: defaultSafetyTimeout,
	}

	for _, opt := range options {
		opt(tracker)
	}

	return tracker
}

// Start begins tracking. onReady fires exactly once, when both the
// minimum display time has elapsed and MarkContentReady has been called,
// or when the safety timeout forces navigation.
func (t *Tracker) Start(minDisplay time.Duration, onReady func()) {
	t.mu.Lock()
	t.started = time.Now()
	t.minDisplay = minDisplay
	t.elapsed = 0
	t.ready = false
	t.canNavigate = false
	t.loading = true
	t.onReady = onReady
	t.stop = make(chan struct{})
	stop := t.stop
	t.mu.Unlock()

	go t.poll(stop)
}

// poll maintains the elapsed counter independent of content readiness.
func (t *Tracker) poll(stop chan struct{}) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			t.elapsed = time.Since(t.started)

			if t.elapsed >= t.safetyTimeout && !t.canNavigate {
				t.log.Warn().
					Dur("elapsed", t.elapsed).
					Msg("safety timeout reached, forcing navigation")
				fire := t.permitLocked()
				t.mu.Unlock()
				fire()
				return
			}

			fire := t.checkGateLocked()
			done := t.canNavigate
			t.mu.Unlock()
			fire()
			if done {
				return
			}
		}
	}
}

// MarkContentReady signals that the destination content is prepared.
// Whichever of the two conditions completes second performs the gate
// check, so call order does not matter.
func (t *Tracker) MarkContentReady() {
	t.mu.Lock()
	t.ready = true
	t.elapsed = time.Since(t.started)
	fire := t.checkGateLocked()
	t.mu.Unlock()
	fire()
}

// checkGateLocked permits navigation when both conditions hold. Returns
// the callback to invoke outside the lock (a no-op when not triggered).
func (t *Tracker) checkGateLocked() func() {
	if t.canNavigate || !t.ready || t.elapsed < t.minDisplay {
		return func() {}
	}
	return t.permitLocked()
}

func (t *Tracker) permitLocked() func() {
	t.canNavigate = true
	t.loading = false
	onReady := t.onReady
	t.onReady = nil
	if onReady == nil {
		return func() {}
	}
	return onReady
}

// Stop cancels the polling timer. Pending gate conditions are abandoned;
// onReady does not fire after Stop.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.loading = false
	t.onReady = nil
}

// IsLoading reports whether the loading screen should still be shown.
func (t *Tracker) IsLoading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loading
}

// CanNavigate reports whether navigation away is permitted.
func (t *Tracker) CanNavigate() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canNavigate
}

// Progress returns a 0-100 value derived from elapsed time against the
// minimum display time, capped until navigation is permitted.
func (t *Tracker) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.canNavigate {
		return 100
	}
	if t.minDisplay <= 0 {
		return preReadyProgressCap
	}

	pct := int(float64(t.elapsed) / float64(t.minDisplay) * 100)
	if pct > preReadyProgressCap {
		pct = preReadyProgressCap
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}
