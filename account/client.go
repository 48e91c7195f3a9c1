package account

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// TokenFunc supplies the current access token at call time. Wire it to
// session.Store.AccessToken so the client never holds a stale copy.
type TokenFunc func() (string, bool)

// Client is a stateless typed client for the IdP's account-management REST
// resource, rooted at {issuer}/realms/{realm}/account. Every request
// carries a bearer token obtained from the token func; every non-2xx
// response maps onto the package error taxonomy.
type Client struct {
	endpoint   string
	token      TokenFunc
	httpClient *http.Client
}

// Option modifies the Client instance.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates an account API client. endpoint is the account resource root,
// typically idp.Client.AccountEndpoint().
func New(endpoint string, token TokenFunc, options ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("[account.New] endpoint is required")
	}
	if token == nil {
		return nil, errors.New("[account.New] token func is required")
	}

	c := &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// GetProfile fetches the user's profile.
func (c *Client) GetProfile(ctx context.Context) (*UserProfile, error) {
	var profile UserProfile
	if err := c.do(ctx, http.MethodGet, "", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile submits a (possibly partial) profile update.
func (c *Client) UpdateProfile(ctx context.Context, profile *UserProfile) error {
	return c.do(ctx, http.MethodPost, "", profile, nil)
}

// credential wire shapes, per the account API's grouped response.
type credentialWire struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	UserLabel   *string `json:"userLabel,omitempty"`
	CreatedDate int64   `json:"createdDate"`
}

type credentialMetadataWire struct {
	Credential credentialWire `json:"credential"`
}

type credentialGroupWire struct {
	Type                    string                   `json:"type"`
	Category                string                   `json:"category"`
	DisplayName             string                   `json:"displayName"`
	UserCredentialMetadatas []credentialMetadataWire `json:"userCredentialMetadatas"`
}

// ListCredentials fetches the user's credentials, grouped by type in the
// server's order.
func (c *Client) ListCredentials(ctx context.Context) ([]CredentialGroup, error) {
	var wire []credentialGroupWire
	if err := c.do(ctx, http.MethodGet, "/credentials", nil, &wire); err != nil {
		return nil, err
	}

	groups := make([]CredentialGroup, 0, len(wire))
	for _, g := range wire {
		credType := mapCredentialType(g.Type, g.Category)
		group := CredentialGroup{
			Type:        credType,
			DisplayName: g.DisplayName,
			Credentials: make([]CredentialRecord, 0, len(g.UserCredentialMetadatas)),
		}
		for _, meta := range g.UserCredentialMetadatas {
			group.Credentials = append(group.Credentials, CredentialRecord{
				ID:        meta.Credential.ID,
				Type:      credType,
				CreatedAt: time.UnixMilli(meta.Credential.CreatedDate),
				Label:     meta.Credential.UserLabel,
			})
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func mapCredentialType(credType, category string) CredentialType {
	switch {
	case credType == "password":
		return CredentialPassword
	case category == "two-factor":
		return CredentialSecondFactor
	default:
		return CredentialOther
	}
}

// RemoveCredential deletes a stored credential by id.
func (c *Client) RemoveCredential(ctx context.Context, credentialID string) error {
	return c.do(ctx, http.MethodDelete, "/credentials/"+url.PathEscape(credentialID), nil, nil)
}

type deviceSessionWire struct {
	ID         string          `json:"id"`
	IPAddress  string          `json:"ipAddress"`
	Started    int64           `json:"started"`
	LastAccess int64           `json:"lastAccess"`
	Expires    int64           `json:"expires"`
	Clients    []SessionClient `json:"clients"`
	Current    bool            `json:"current"`
	Browser    string          `json:"browser"`
	OS         *string         `json:"os,omitempty"`
	Device     *string         `json:"device,omitempty"`
}

// ListSessions fetches the user's active device sessions.
func (c *Client) ListSessions(ctx context.Context) ([]DeviceSession, error) {
	var wire []deviceSessionWire
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &wire); err != nil {
		return nil, err
	}

	sessions := make([]DeviceSession, 0, len(wire))
	for _, s := range wire {
		sessions = append(sessions, DeviceSession{
			ID:           s.ID,
			IPAddress:    s.IPAddress,
			StartedAt:    time.Unix(s.Started, 0),
			LastAccessAt: time.Unix(s.LastAccess, 0),
			ExpiresAt:    time.Unix(s.Expires, 0),
			Browser:      s.Browser,
			OS:           s.OS,
			Device:       s.Device,
			Current:      s.Current,
			Clients:      s.Clients,
		})
	}
	return sessions, nil
}

// TerminateSession remotely logs out a device session by id. Refusing to
// terminate the current session is the controller's responsibility; this
// client sends whatever it is told.
func (c *Client) TerminateSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), nil, nil)
}

// ListLinkedIdentities fetches all identity providers configured on the
// realm with their link status.
func (c *Client) ListLinkedIdentities(ctx context.Context) ([]LinkedIdentity, error) {
	var identities []LinkedIdentity
	if err := c.do(ctx, http.MethodGet, "/linked-accounts", nil, &identities); err != nil {
		return nil, err
	}
	return identities, nil
}

// UnlinkIdentity removes the link to an identity provider.
func (c *Client) UnlinkIdentity(ctx context.Context, providerName string) error {
	err := c.do(ctx, http.MethodDelete, "/linked-accounts/"+url.PathEscape(providerName), nil, nil)
	if errors.Is(err, ErrNotFound) {
		return errors.Wrapf(ErrNotLinked, "%q", providerName)
	}
	return err
}

// BeginLinkIdentity asks the server for the redirect that starts linking a
// new identity provider. No local state changes; the caller must follow
// the redirect at most once per user gesture.
func (c *Client) BeginLinkIdentity(ctx context.Context, providerAlias, redirectURI string) (*LinkHandoff, error) {
	path := "/linked-accounts/" + url.PathEscape(providerAlias) +
		"?providerId=" + url.QueryEscape(providerAlias) +
		"&redirectUri=" + url.QueryEscape(redirectURI)

	var handoff LinkHandoff
	if err := c.do(ctx, http.MethodGet, path, nil, &handoff); err != nil {
		return nil, err
	}
	return &handoff, nil
}

// do executes one request: bearer auth from the token func, JSON in/out,
// status codes mapped to the error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, ok := c.token()
	if !ok {
		return errors.Wrap(ErrUnauthorized, "no access token")
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[Client.do] failed to encode request body")
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "[Client.do] failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err, Timeout: isTimeout(err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrap(err, "[Client.do] failed to decode response")
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ValidationError{Message: serverMessage(respBody, resp.Status)}
	default:
		// 5xx: transient from the client's point of view.
		return &NetworkError{Err: errors.Errorf("server returned %s", resp.Status)}
	}
}

// serverMessage extracts the human-readable rejection message the account
// API puts in its error body, falling back to the raw body or status line.
func serverMessage(body []byte, status string) string {
	var wire struct {
		ErrorMessage     string `json:"errorMessage"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(body, &wire); err == nil {
		switch {
		case wire.ErrorMessage != "":
			return wire.ErrorMessage
		case wire.ErrorDescription != "":
			return wire.ErrorDescription
		case wire.Error != "":
			return wire.Error
		}
	}
	if len(body) > 0 {
		return string(body)
	}
	return status
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
