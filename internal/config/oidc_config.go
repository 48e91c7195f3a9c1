package config

import "time"

type OIDCConfig interface {
	GetRealm() string
	GetClientID() string
	GetIssuerURL() string
	GetIdPPort() string
	GetRedirectURL() string
	GetPostLogoutRedirectURL() string
	GetRequestTimeout() time.Duration
}

type OIDC struct{}

var _ OIDCConfig = OIDC{}

func (OIDC) GetRealm() string {
	return GetEnv("OIDC_REALM", "PemdaSSO")
}

func (OIDC) GetClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "web-app")
}

// GetIssuerURL returns an explicit issuer base URL. When empty, the issuer
// is derived from the application host and the well-known IdP port.
func (OIDC) GetIssuerURL() string {
	return GetEnv("OIDC_ISSUER_URL", "")
}

// GetIdPPort is the port the IdP is assumed to listen on when the issuer is
// derived from the application host rather than configured explicitly.
func (OIDC) GetIdPPort() string {
	return GetEnv("OIDC_IDP_PORT", "8080")
}

func (OIDC) GetRedirectURL() string {
	return GetEnv("OIDC_REDIRECT_URL", "")
}

func (OIDC) GetPostLogoutRedirectURL() string {
	return GetEnv("OIDC_POST_LOGOUT_REDIRECT_URL", "")
}

func (OIDC) GetRequestTimeout() time.Duration {
	return 10 * time.Second
}
