package config

import "os"

const (
	appNameVar    = "APP_NAME"
	appBaseURLVar = "APP_BASE_URL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Pemda SSO App")
}

// GetAppBaseURL returns the base URL the application itself is served from
// (e.g. "http://localhost:3000"). The IdP issuer is derived from this host
// unless OIDC_ISSUER_URL is set explicitly.
func (EnvVars) GetAppBaseURL() string {
	return GetEnv(appBaseURLVar, "http://localhost:3000")
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
