package config

// BackendConfig describes the application backend the engine talks to.
type BackendConfig interface {
	GetBackendBaseURL() string
	GetMainAppRoute() string
	GetLoginRoute() string
}

type Backend struct{}

var _ BackendConfig = Backend{}

func (Backend) GetBackendBaseURL() string {
	return GetEnv("BACKEND_BASE_URL", "http://localhost:3001")
}

// GetMainAppRoute is the destination after a completed orchestration run,
// unless a final redirect destination was stored during the flow.
func (Backend) GetMainAppRoute() string {
	return GetEnv("MAIN_APP_ROUTE", "/dashboard")
}

// GetLoginRoute is the safe entry point fatal errors redirect back to.
func (Backend) GetLoginRoute() string {
	return GetEnv("LOGIN_ROUTE", "/auth/login")
}
