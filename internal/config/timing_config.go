package config

import "time"

// TimingConfig collects the engine's time bounds. Every retry or wait in
// the engine is bounded by one of these.
type TimingConfig interface {
	GetStateValidity() time.Duration
	GetTokenSafetyMargin() time.Duration
	GetMinDisplayTime() time.Duration
	GetSafetyTimeout() time.Duration
	GetCompletionGrace() time.Duration
	GetErrorRedirectDelay() time.Duration
	GetProgressPollInterval() time.Duration
}

type Timing struct{}

var _ TimingConfig = Timing{}

// GetStateValidity is the window within which a CSRF state is accepted.
func (Timing) GetStateValidity() time.Duration {
	return 10 * time.Minute
}

// GetTokenSafetyMargin is how close to expiry a cached credential may be
// before it is refreshed rather than reused.
func (Timing) GetTokenSafetyMargin() time.Duration {
	return 5 * time.Minute
}

// GetMinDisplayTime is the minimum time the loading screen is shown.
func (Timing) GetMinDisplayTime() time.Duration {
	return 3 * time.Second
}

// GetSafetyTimeout is the hard ceiling on perceived wait time.
func (Timing) GetSafetyTimeout() time.Duration {
	return 15 * time.Second
}

// GetCompletionGrace is the pause between reaching 100% and navigating.
func (Timing) GetCompletionGrace() time.Duration {
	return 1500 * time.Millisecond
}

// GetErrorRedirectDelay is how long a fatal error message is shown before
// redirecting back to the safe entry point.
func (Timing) GetErrorRedirectDelay() time.Duration {
	return 3 * time.Second
}

func (Timing) GetProgressPollInterval() time.Duration {
	return 100 * time.Millisecond
}
