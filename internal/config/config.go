package config

type Config interface {
	EnvConfig
	OIDCConfig
	RefreshConfig
	GateConfig
}

type EnvConfig interface {
	GetAppName() string
	GetAppBaseURL() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	OIDC
	Refresh
	Gate
}

func New() Config {
	return mainConfig{}
}
