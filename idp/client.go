package idp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pemdasso/accountclient/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Client implements Connector against a standards-compliant OIDC provider
// using the authorization-code flow with PKCE.
//
// Discovery is lazy: the provider metadata is fetched on first use so that
// an unreachable IdP surfaces as a sign-on check failure (which the session
// store maps to its Unavailable state) rather than a construction error.
type Client struct {
	issuerURL             string
	clientID              string
	redirectURL           string
	postLogoutRedirectURL string
	scopes                []string
	resumeToken           string
	httpClient            *http.Client

	lock     sync.Mutex
	provider *oidc.Provider
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

var _ Connector = (*Client)(nil)

// Option modifies a Client instance.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for discovery and token requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithResumeToken provides a refresh token from a previous visit, held by
// the host application. CheckSignOn uses it to resume the session silently.
func WithResumeToken(refreshToken string) Option {
	return func(c *Client) {
		c.resumeToken = refreshToken
	}
}

// WithScopes overrides the default requested scopes (openid profile email).
func WithScopes(scopes ...string) Option {
	return func(c *Client) {
		c.scopes = scopes
	}
}

// Config is the slice of configuration the client needs.
type Config interface {
	config.EnvConfig
	config.OIDCConfig
}

// New creates an IdP client from configuration. The issuer is the explicit
// OIDC_ISSUER_URL when set, otherwise it is derived from the application
// host and the well-known IdP port.
func New(cfg Config, options ...Option) (*Client, error) {
	base := cfg.GetIssuerURL()
	if base == "" {
		derived, err := DeriveIssuerBaseURL(cfg.GetAppBaseURL(), cfg.GetIdPPort())
		if err != nil {
			return nil, errors.Wrap(err, "[idp.New] failed to derive issuer URL")
		}
		base = derived
	}
	if cfg.GetRealm() == "" {
		return nil, errors.New("[idp.New] realm is required")
	}
	if cfg.GetClientID() == "" {
		return nil, errors.New("[idp.New] client ID is required")
	}

	c := &Client{
		issuerURL:             strings.TrimSuffix(base, "/") + "/realms/" + cfg.GetRealm(),
		clientID:              cfg.GetClientID(),
		redirectURL:           cfg.GetRedirectURL(),
		postLogoutRedirectURL: cfg.GetPostLogoutRedirectURL(),
		scopes:                []string{oidc.ScopeOpenID, "profile", "email"},
		httpClient:            &http.Client{Timeout: cfg.GetRequestTimeout()},
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// DeriveIssuerBaseURL maps the application's own base URL to the IdP base
// URL by convention: same scheme and hostname, fixed well-known port.
func DeriveIssuerBaseURL(appBaseURL, idpPort string) (string, error) {
	u, err := url.Parse(appBaseURL)
	if err != nil {
		return "", errors.Wrap(err, "parsing app base URL")
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return "", errors.Errorf("app base URL %q has no scheme or host", appBaseURL)
	}
	return fmt.Sprintf("%s://%s:%s", u.Scheme, u.Hostname(), idpPort), nil
}

// IssuerURL returns the realm issuer this client talks to.
func (c *Client) IssuerURL() string {
	return c.issuerURL
}

// AccountEndpoint returns the root of the realm's account REST resource.
func (c *Client) AccountEndpoint() string {
	return c.issuerURL + "/account"
}

// ensureProvider performs OIDC discovery once and caches the result.
func (c *Client) ensureProvider(ctx context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.provider != nil {
		return nil
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, c.httpClient), c.issuerURL)
	if err != nil {
		return errors.Wrapf(ErrDiscoveryFailed, "%s: %v", c.issuerURL, err)
	}

	c.provider = provider
	c.oauth = &oauth2.Config{
		ClientID:    c.clientID,
		Endpoint:    provider.Endpoint(),
		RedirectURL: c.redirectURL,
		Scopes:      c.scopes,
	}
	c.verifier = provider.Verifier(&oidc.Config{ClientID: c.clientID})
	log.Debug().Str("issuer", c.issuerURL).Msg("OIDC discovery complete")
	return nil
}

// CheckSignOn resolves the current sign-on status. When a resume token is
// available it is redeemed with the refresh grant; a rejected resume token
// means the user is simply signed out, not an error.
func (c *Client) CheckSignOn(ctx context.Context) (*Tokens, error) {
	if err := c.ensureProvider(ctx); err != nil {
		return nil, err
	}
	if c.resumeToken == "" {
		return nil, nil
	}

	tokens, err := c.Refresh(ctx, c.resumeToken)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenInvalid) {
			log.Debug().Msg("resume token rejected, signed out")
			return nil, nil
		}
		return nil, err
	}
	return tokens, nil
}

func (c *Client) LoginURL(ctx context.Context, h Handoff) (string, error) {
	if err := c.ensureProvider(ctx); err != nil {
		return "", err
	}
	return c.oauth.AuthCodeURL(h.State,
		oidc.Nonce(h.Nonce),
		oauth2.SetAuthURLParam("code_challenge", h.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	), nil
}

// Exchange trades the authorization code from the callback for tokens. The
// ID token signature is verified against the provider's JWKS and its nonce
// must match the one sent in the login hand-off.
func (c *Client) Exchange(ctx context.Context, code string, h Handoff) (*Tokens, error) {
	if err := c.ensureProvider(ctx); err != nil {
		return nil, err
	}

	ctx = oidc.ClientContext(ctx, c.httpClient)
	oauth2Token, err := c.oauth.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", h.CodeVerifier))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Exchange] token exchange failed")
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, ErrNoIDToken
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Exchange] ID token verification failed")
	}
	if idToken.Nonce != h.Nonce {
		return nil, ErrNonceMismatch
	}

	return &Tokens{
		AccessToken:  oauth2Token.AccessToken,
		RefreshToken: oauth2Token.RefreshToken,
		RawIDToken:   rawIDToken,
		Expiry:       oauth2Token.Expiry,
	}, nil
}

// Refresh renews tokens with the refresh-token grant. An invalid_grant
// response from the token endpoint marks the refresh token as terminally
// invalid; everything else is a transient failure.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if err := c.ensureProvider(ctx); err != nil {
		return nil, err
	}

	ctx = oidc.ClientContext(ctx, c.httpClient)
	tok, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			return nil, errors.Wrap(ErrRefreshTokenInvalid, retrieveErr.ErrorDescription)
		}
		return nil, errors.Wrap(err, "[Client.Refresh] token refresh failed")
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	return &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		RawIDToken:   rawIDToken,
		Expiry:       tok.Expiry,
	}, nil
}

// LogoutURL builds the provider's end-session URL with an ID token hint and
// the configured post-logout redirect.
func (c *Client) LogoutURL(ctx context.Context, idTokenHint string) (string, error) {
	if err := c.ensureProvider(ctx); err != nil {
		return "", err
	}

	var claims struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := c.provider.Claims(&claims); err != nil || claims.EndSessionEndpoint == "" {
		// Keycloak always advertises it; fall back to the conventional path.
		claims.EndSessionEndpoint = c.issuerURL + "/protocol/openid-connect/logout"
	}

	q := url.Values{}
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if c.postLogoutRedirectURL != "" {
		q.Set("post_logout_redirect_uri", c.postLogoutRedirectURL)
	}
	if len(q) == 0 {
		return claims.EndSessionEndpoint, nil
	}
	return claims.EndSessionEndpoint + "?" + q.Encode(), nil
}
