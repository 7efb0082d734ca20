package config

import "strings"

// ProviderConfig describes the identity provider this engine is a
// confidential client of.
type ProviderConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetIssuer() string
	GetAuthURL() string
	GetTokenURL() string
	GetScopes() []string
	GetCalendarScope() string
	GetRedirectPath() string
}

type Provider struct{}

var _ ProviderConfig = Provider{}

func (Provider) GetClientID() string {
	return GetEnv("OAUTH_CLIENT_ID", "")
}

func (Provider) GetClientSecret() string {
	return GetEnv("OAUTH_CLIENT_SECRET", "")
}

func (Provider) GetIssuer() string {
	return GetEnv("OAUTH_ISSUER", "https://accounts.google.com")
}

func (Provider) GetAuthURL() string {
	return GetEnv("OAUTH_AUTH_URL", "https://accounts.google.com/o/oauth2/v2/auth")
}

func (Provider) GetTokenURL() string {
	return GetEnv("OAUTH_TOKEN_URL", "https://oauth2.googleapis.com/token")
}

func (Provider) GetScopes() []string {
	scopes := GetEnv("OAUTH_SCOPES", "openid email profile https://www.googleapis.com/auth/calendar")
	return strings.Fields(scopes)
}

// GetCalendarScope returns the scope the provider credential must carry
// for the calendar-connection stage to proceed.
func (Provider) GetCalendarScope() string {
	return GetEnv("OAUTH_CALENDAR_SCOPE", "https://www.googleapis.com/auth/calendar")
}

func (Provider) GetRedirectPath() string {
	return GetEnv("OAUTH_REDIRECT_PATH", "/auth/callback")
}
