package config

type Config interface {
	EnvConfig
	ProviderConfig
	BackendConfig
	TimingConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetRedisAddr() string
	GetTimezone() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Provider
	Backend
	Timing
}

func New() Config {
	return mainConfig{}
}
