package orchestrator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/dayplanhq/go-session-engine/backend"
	apperrors "github.com/dayplanhq/go-session-engine/internal/errors"
	"github.com/dayplanhq/go-session-engine/statestore"
)

// Stage is one step of the post-authentication sequence. Stages are
// totally ordered for a run: connecting → generating → complete, with
// error terminal from any stage.
type Stage string

const (
	StageConnecting Stage = "connecting"
	StageGenerating Stage = "generating"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// Progress checkpoints per stage.
const (
	progressConnecting = 10
	progressConnected  = 60
	progressGenerating = 75
	progressDone       = 100
)

const defaultCompletionGrace = 1500 * time.Millisecond

// Transition is emitted on every stage or progress change. The
// presentation layer subscribes to these instead of being mutated by
// callbacks.
type Transition struct {
	Stage    Stage
	Progress int
	Message  string
}

// Backend is the slice of the backend client a run drives.
type Backend interface {
	ConnectCalendar(ctx context.Context, credentials backend.CalendarTokens, timezone string) error
	GenerateSchedule(ctx context.Context, date time.Time) error
}

// Orchestrator sequences calendar verification, schedule generation, and
// completion for one post-authentication run.
type Orchestrator struct {
	backend Backend
	store   statestore.Store
	log     zerolog.Logger
	nowTime func() time.Time // nowTime function (injectable for testing)

	calendarStage   bool
	calendarScope   string
	completionGrace time.Duration
	timezone        string
	mainAppRoute    string

	transitions chan Transition
	onComplete  func(redirect string)
	onError     func(message string)
}

// Option defines a function type to modify the Orchestrator instance.
type Option func(*Orchestrator)

// WithCalendarStage controls whether the run begins with the
// calendar-connection stage. Flows that re-run orchestration for an
// already-connected calendar skip it.
func WithCalendarStage(enabled bool) Option {
	return func(o *Orchestrator) {
		o.calendarStage = enabled
	}
}

// WithCalendarScope sets the provider scope the credential must carry
// for the calendar stage to proceed.
func WithCalendarScope(scope string) Option {
	return func(o *Orchestrator) {
		o.calendarScope = scope
	}
}

// WithCompletionGrace sets the pause between reaching 100% and invoking
// the completion callback.
func WithCompletionGrace(grace time.Duration) Option {
	return func(o *Orchestrator) {
		o.completionGrace = grace
	}
}

// WithTimezone sets the IANA timezone reported on calendar connect.
// Empty keeps the process-local timezone.
func WithTimezone(timezone string) Option {
	return func(o *Orchestrator) {
		if timezone != "" {
			o.timezone = timezone
		}
	}
}

// WithMainAppRoute sets the fallback navigation destination.
func WithMainAppRoute(route string) Option {
	return func(o *Orchestrator) {
		o.mainAppRoute = route
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(o *Orchestrator) {
		o.nowTime = nowFunc
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// New initializes an Orchestrator for a single run.
func New(b Backend, store statestore.Store, onComplete func(redirect string), onError func(message string), options ...Option) (*Orchestrator, error) {
	if b == nil {
		return nil, errors.New("[orchestrator.New] backend is required")
	}
	if store == nil {
		return nil, errors.New("[orchestrator.New] store is required")
	}
	if onComplete == nil {
		return nil, errors.New("[orchestrator.New] onComplete is required")
	}
	if onError == nil {
		return nil, errors.New("[orchestrator.New] onError is required")
	}

	orch := &Orchestrator{
		backend:         b,
		store:           store,
		log:             zerolog.Nop(),
		nowTime:         time.Now,
		calendarStage:   true,
		calendarScope:   "https://www.googleapis.com/auth/calendar",
		completionGrace: defaultCompletionGrace,
		timezone:        time.Local.String(),
		mainAppRoute:    "/dashboard",
		transitions:     make(chan Transition, 16),
		onComplete:      onComplete,
		onError:         onError,
	}

	for _, opt := range options {
		opt(orch)
	}

	return orch, nil
}

// Transitions is the event stream the presentation layer subscribes to.
func (o *Orchestrator) Transitions() <-chan Transition {
	return o.transitions
}

// Active reports whether an orchestration run holds the in-progress flag.
// Competing flows check this before starting their own run.
func Active(ctx context.Context, store statestore.Store) bool {
	value, ok, err := store.Get(ctx, statestore.ScopeTab, statestore.KeyOrchestrationActive)
	return err == nil && ok && value == "true"
}

// Run executes the state machine once. The in-progress flag is held for
// the duration of the run and removed on every exit path, including
// cancellation, so other flows can detect and defer to an active run.
func (o *Orchestrator) Run(ctx context.Context, credentials backend.CalendarTokens, grantedScopes []string) error {
	if err := o.store.Set(ctx, statestore.ScopeTab, statestore.KeyOrchestrationActive, "true"); err != nil {
		return errors.Wrap(err, "[Orchestrator.Run] set in-progress flag")
	}
	// Cleanup must survive a cancelled ctx.
	cleanupCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := o.store.Delete(cleanupCtx, statestore.ScopeTab, statestore.KeyOrchestrationActive); err != nil {
			o.log.Warn().Err(err).Msg("failed to clear in-progress flag")
		}
		close(o.transitions)
	}()

	if o.calendarStage {
		if err := o.runConnecting(ctx, credentials, grantedScopes); err != nil {
			return err
		}
	}

	o.runGenerating(ctx)

	return o.runComplete(ctx, cleanupCtx)
}

func (o *Orchestrator) runConnecting(ctx context.Context, credentials backend.CalendarTokens, grantedScopes []string) error {
	o.emit(Transition{Stage: StageConnecting, Progress: progressConnecting, Message: "Connecting your calendar"})

	if !hasScope(grantedScopes, o.calendarScope) {
		return o.fail("Calendar access not granted", apperrors.ErrCalendarAccessDenied)
	}

	if err := o.backend.ConnectCalendar(ctx, credentials, o.timezone); err != nil {
		return o.fail("Could not connect your calendar", err)
	}

	o.emit(Transition{Stage: StageConnecting, Progress: progressConnected, Message: "Calendar connected"})
	return nil
}

// runGenerating never fails the run: the user must not be blocked from
// reaching the application because of a background step. The backend
// decides whether generation is actually necessary.
func (o *Orchestrator) runGenerating(ctx context.Context) {
	o.emit(Transition{Stage: StageGenerating, Progress: progressGenerating, Message: "Preparing today's schedule"})

	if err := o.backend.GenerateSchedule(ctx, o.nowTime()); err != nil {
		o.log.Warn().Err(err).Msg("schedule generation failed, continuing to completion")
	}

	o.emit(Transition{Stage: StageGenerating, Progress: progressDone, Message: ""})
}

func (o *Orchestrator) runComplete(ctx context.Context, cleanupCtx context.Context) error {
	// Short grace period for perceptual continuity before navigating.
	select {
	case <-time.After(o.completionGrace):
	case <-ctx.Done():
		return ctx.Err()
	}

	redirect := o.mainAppRoute
	if dest, ok, err := o.store.Get(cleanupCtx, statestore.ScopeDevice, statestore.KeyFinalRedirect); err == nil && ok && dest != "" {
		redirect = dest
		_ = o.store.Delete(cleanupCtx, statestore.ScopeDevice, statestore.KeyFinalRedirect)
	}

	// The run is over: drop every transaction and mutex flag it may have
	// left behind.
	if err := o.store.ClearScope(cleanupCtx, statestore.ScopeTab); err != nil {
		o.log.Warn().Err(err).Msg("failed to clear tab-scoped flags")
	}

	o.emit(Transition{Stage: StageComplete, Progress: progressDone, Message: ""})
	o.log.Info().Str("redirect", redirect).Msg("orchestration complete")
	o.onComplete(redirect)
	return nil
}

// fail transitions to the terminal error stage. There is no automatic
// retry; retrying is a user-initiated action.
func (o *Orchestrator) fail(message string, err error) error {
	o.log.Error().Err(err).Msg(message)
	o.emit(Transition{Stage: StageError, Progress: 0, Message: message})
	o.onError(message)
	return err
}

// emit publishes a transition without ever blocking the run; a slow or
// absent subscriber loses updates rather than stalling orchestration.
func (o *Orchestrator) emit(t Transition) {
	select {
	case o.transitions <- t:
	default:
		o.log.Warn().Str("stage", string(t.Stage)).Msg("transition dropped, subscriber not keeping up")
	}
}

func hasScope(scopes []string, want string) bool {
	for _, scope := range scopes {
		if scope == want {
			return true
		}
	}
	return false
}
