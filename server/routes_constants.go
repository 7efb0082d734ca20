package server

// Route paths served by the engine's front door.
const (
	RouteLogin          = "/auth/login"
	RouteCallback       = "/auth/callback"
	RouteHealthz        = "/healthz"
	RouteCalendarHealth = "/api/health/calendar"
)
