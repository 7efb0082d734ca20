package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	apperrors "github.com/dayplanhq/go-session-engine/internal/errors"
	"github.com/dayplanhq/go-session-engine/token"
)

// Requester issues calls against the backend. Satisfied by token.Manager,
// which owns credential resolution and the bounded 401 retry.
type Requester interface {
	Request(ctx context.Context, method, path string, body any, opts ...token.RequestOption) (*http.Response, error)
}

// Client is the typed interface to the application backend.
type Client struct {
	api Requester
	log zerolog.Logger
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a backend client riding on the given requester.
func NewClient(api Requester, options ...ClientOption) (*Client, error) {
	if api == nil {
		return nil, errors.New("[NewClient] api requester is required")
	}

	client := &Client{
		api: api,
		log: zerolog.Nop(),
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

// SyncAccount submits the normalized identity payload to the backend's
// account endpoint. The payload carries its own provider tokens, so the
// call is issued unauthenticated.
func (c *Client) SyncAccount(ctx context.Context, payload AccountSyncPayload) (*AccountSyncResult, error) {
	resp, err := c.api.Request(ctx, http.MethodPost, "/api/auth/oauth-callback", payload, token.SkipAuth())
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrBackendSyncFailed, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Wrapf(apperrors.ErrBackendSyncFailed, "[SyncAccount] backend returned %d", resp.StatusCode)
	}

	var result AccountSyncResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(apperrors.ErrBackendSyncFailed, "[SyncAccount] decode response")
	}
	return &result, nil
}

// ConnectCalendar establishes the calendar connection for the active
// session.
func (c *Client) ConnectCalendar(ctx context.Context, credentials CalendarTokens, timezone string) error {
	body := map[string]any{
		"credentials": credentials,
		"timezone":    timezone,
	}

	resp, err := c.api.Request(ctx, http.MethodPost, "/api/calendar/connect", body)
	if err != nil {
		return errors.Wrap(err, "[ConnectCalendar]")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Wrapf(apperrors.ErrCalendarAPIError, "[ConnectCalendar] backend returned %d", resp.StatusCode)
	}
	return nil
}

// EventsForDay reads the connected calendar's events for the given day
// and returns the HTTP status. Callers map the status to health; a
// transport error means no status was obtained at all.
func (c *Client) EventsForDay(ctx context.Context, date time.Time) (int, error) {
	path := "/api/calendar/events?date=" + date.Format("2006-01-02")

	resp, err := c.api.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, errors.Wrap(err, "[EventsForDay]")
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

// GenerateSchedule asks the backend to generate the day's schedule. The
// backend decides whether generation is actually necessary, so the call
// is idempotent from the caller's perspective.
func (c *Client) GenerateSchedule(ctx context.Context, date time.Time) error {
	body := map[string]string{"date": date.Format("2006-01-02")}

	resp, err := c.api.Request(ctx, http.MethodPost, "/api/schedule/generate", body)
	if err != nil {
		return errors.Wrap(apperrors.ErrGenerationFailed, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Wrapf(apperrors.ErrGenerationFailed, "[GenerateSchedule] backend returned %d", resp.StatusCode)
	}
	return nil
}
