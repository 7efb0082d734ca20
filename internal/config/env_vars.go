package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar   = "PORT"
	appNameVar   = "APP_NAME"
	baseURLVar   = "BASE_URL"
	redisAddrVar = "REDIS_ADDR"
	timezoneVar  = "APP_TIMEZONE"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Session Engine")
}

// GetBaseURL returns the base URL this engine is reachable at
// (e.g. "http://localhost:8080"). Used to build the OAuth redirect URI.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

// GetRedisAddr returns the Redis address backing the device-scoped state
// store. Empty means the in-memory store is used.
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "")
}

// GetTimezone returns the IANA timezone reported on calendar connect.
// Empty means the process-local timezone.
func (EnvVars) GetTimezone() string {
	return GetEnv(timezoneVar, "")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
