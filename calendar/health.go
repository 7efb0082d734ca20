package calendar

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/dayplanhq/go-session-engine/identity"
)

// Skip and error reasons reported by Validate.
const (
	SkipAlreadyValidated = "already_validated"
	SkipOAuthInProgress  = "oauth_in_progress"
	SkipNoUser           = "no_user"

	ErrorCalendarAuthFailed = "calendar_auth_failed"
	ErrorCalendarAPI        = "calendar_api_error"
	ErrorNetwork            = "network_error"
)

// Prober performs the single authenticated calendar read.
type Prober interface {
	EventsForDay(ctx context.Context, date time.Time) (int, error)
}

// Result describes the calendar health record after a validation attempt.
type Result struct {
	Healthy     bool   `json:"healthy"`
	SkipReason  string `json:"skipReason,omitempty"`
	Error       string `json:"error,omitempty"`
	NeedsReauth bool   `json:"needsReauth,omitempty"`
}

// Service determines whether the connected calendar integration is
// actually usable, not just flagged as connected. Probes are memoized:
// one success short-circuits every later call for the session until
// Reset. Validate is serialized, so at most one probe is ever in flight.
type Service struct {
	probe      Prober
	identities identity.Repo
	log        zerolog.Logger
	nowTime    func() time.Time // nowTime function (injectable for testing)

	mu        sync.Mutex
	validated bool
	lastSkip  string
	lastError string
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// NewService initializes a Service with required dependencies.
func NewService(probe Prober, identities identity.Repo, options ...ServiceOption) (*Service, error) {
	if probe == nil {
		return nil, errors.New("[NewService] probe is required")
	}
	if identities == nil {
		return nil, errors.New("[NewService] identities repo is required")
	}

	service := &Service{
		probe:      probe,
		identities: identities,
		log:        zerolog.Nop(),
		nowTime:    time.Now,
	}

	for _, opt := range options {
		opt(service)
	}

	return service, nil
}

// Validate checks that the connected calendar actually answers. stage is
// the orchestration stage currently running, empty when none;
// orchestratorActive is the cooperative in-progress flag other flows
// check before probing.
func (s *Service) Validate(ctx context.Context, stage string, orchestratorActive bool) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.validated {
		s.lastSkip = SkipAlreadyValidated
		return Result{Healthy: true, SkipReason: SkipAlreadyValidated}
	}

	// A running auth or orchestration flow is the very thing that
	// establishes the connection; probing now would race it.
	if orchestratorActive || stage != "" {
		s.lastSkip = SkipOAuthInProgress
		return Result{SkipReason: SkipOAuthInProgress}
	}

	if _, ok := s.identities.Current(); !ok {
		s.lastSkip = SkipNoUser
		return Result{SkipReason: SkipNoUser}
	}

	status, err := s.probe.EventsForDay(ctx, s.nowTime())
	if err != nil {
		s.lastError = ErrorNetwork
		s.log.Warn().Err(err).Msg("calendar probe failed to reach backend")
		return Result{Error: ErrorNetwork}
	}

	switch {
	case status >= 200 && status < 300:
		s.validated = true
		s.lastSkip = ""
		s.lastError = ""
		return Result{Healthy: true}
	case status == http.StatusUnauthorized || status == http.StatusBadRequest:
		// The provider reports expired or revoked calendar credentials
		// as 401, or 400 on some token endpoints.
		s.lastError = ErrorCalendarAuthFailed
		s.log.Warn().Int("status", status).Msg("calendar credentials need reauthorization")
		return Result{Error: ErrorCalendarAuthFailed, NeedsReauth: true}
	default:
		s.lastError = ErrorCalendarAPI
		s.log.Warn().Int("status", status).Msg("calendar probe returned unexpected status")
		return Result{Error: ErrorCalendarAPI}
	}
}

// Reset clears the memoized validation, forcing the next Validate to
// probe again. Called after the calendar-reconnection flow.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.validated = false
	s.lastSkip = ""
	s.lastError = ""
}

// LastOutcome reports the most recent skip and error reasons, for
// surfacing in diagnostics endpoints.
func (s *Service) LastOutcome() (skipReason, errorReason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastSkip, s.lastError
}
