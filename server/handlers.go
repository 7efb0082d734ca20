package server

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"

	"github.com/dayplanhq/go-session-engine/orchestrator"
	"github.com/dayplanhq/go-session-engine/progress"
	"github.com/dayplanhq/go-session-engine/statestore"
)

// LoginHandler begins an OAuth transaction and redirects the browser to
// the identity provider.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Remember where to land after the run completes, if the caller
		// asked for somewhere specific.
		if dest := r.URL.Query().Get("redirect"); dest != "" && dest[0] == '/' {
			if err := s.store.Set(r.Context(), statestore.ScopeDevice, statestore.KeyFinalRedirect, dest); err != nil {
				s.log.Warn().Err(err).Msg("failed to store final redirect destination")
			}
		}

		authURL, err := s.processor.AuthCodeURL(r.Context())
		if err != nil {
			s.log.Err(err).Msg("failed to begin authorization")
			http.Error(w, "Failed to begin authorization", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, authURL, http.StatusSeeOther)
	}
}

// CallbackHandler receives the provider redirect, runs the exchange, and
// drives the post-authentication run before navigating to the app.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")
		errorDesc := r.FormValue("error_description")

		// A provider-reported error or missing parameters are terminal
		// for this attempt.
		if errorParam != "" {
			s.renderFatal(w, fmt.Sprintf("Authorization failed: %s - %s", errorParam, errorDesc))
			return
		}
		if code == "" || state == "" {
			s.renderFatal(w, "Missing code or state parameter")
			return
		}

		result, err := s.processor.ProcessCallback(r.Context(), code, state)
		if err != nil {
			s.log.Err(err).Msg("callback processing failed")
			s.renderFatal(w, "Sign-in failed. Please try again.")
			return
		}

		completed := make(chan string, 1)
		failed := make(chan string, 1)
		run, err := s.newRun(
			func(redirect string) { completed <- redirect },
			func(message string) { failed <- message },
		)
		if err != nil {
			s.log.Err(err).Msg("failed to build orchestration run")
			s.renderFatal(w, "Sign-in failed. Please try again.")
			return
		}

		go s.logTransitions(run)

		// The loading gate bounds perceived wait both ways: the response
		// is held for at least the minimum display time, and the safety
		// timeout forces it out even if something below stalls.
		navigable := make(chan struct{})
		gate := progress.NewTracker(
			progress.WithPollInterval(s.config.GetProgressPollInterval()),
			progress.WithSafetyTimeout(s.config.GetSafetyTimeout()),
			progress.WithLogger(s.log),
		)
		gate.Start(s.config.GetMinDisplayTime(), func() { close(navigable) })
		defer gate.Stop()

		if err := run.Run(r.Context(), result.CalendarTokens, result.GrantedScopes); err != nil {
			message := "Sign-in failed. Please try again."
			select {
			case m := <-failed:
				message = m
			default:
			}
			s.renderFatal(w, message)
			return
		}

		gate.MarkContentReady()
		select {
		case <-navigable:
		case <-r.Context().Done():
			return
		}

		redirect := s.config.GetMainAppRoute()
		select {
		case dest := <-completed:
			redirect = dest
		default:
		}
		http.Redirect(w, r, redirect, http.StatusSeeOther)
	}
}

// HealthzHandler reports process liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// CalendarHealthHandler runs (or short-circuits) the calendar probe and
// reports the health record. Route guards call this before deciding
// whether to start a reconnect flow.
func (s *Server) CalendarHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active := orchestrator.Active(r.Context(), s.store)
		result := s.health.Validate(r.Context(), "", active)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(result)
	}
}

// logTransitions drains a run's event stream into the log. The
// subscription keeps the stream flowing even with no UI attached.
func (s *Server) logTransitions(run *orchestrator.Orchestrator) {
	for transition := range run.Transitions() {
		s.log.Info().
			Str("stage", string(transition.Stage)).
			Int("progress", transition.Progress).
			Str("message", transition.Message).
			Msg("orchestration transition")
	}
}

// renderFatal shows a short message and auto-redirects back to the safe
// entry point after the configured delay.
func (s *Server) renderFatal(w http.ResponseWriter, message string) {
	delay := int(s.config.GetErrorRedirectDelay().Seconds())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w,
		`<!DOCTYPE html><html><head><meta http-equiv="refresh" content="%d;url=%s"></head><body><p>%s</p><p>Redirecting you back to sign in&hellip;</p></body></html>`,
		delay, RouteLogin, html.EscapeString(message))
}
