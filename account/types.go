package account

import (
	"time"

	"github.com/pemdasso/accountclient/internal/utils"
)

// UserProfile is the account API's profile representation. A partial
// profile (zero-valued fields omitted from JSON) is accepted for updates.
type UserProfile struct {
	Username      string              `json:"username,omitempty"`
	FirstName     string              `json:"firstName,omitempty"`
	LastName      string              `json:"lastName,omitempty"`
	Email         string              `json:"email,omitempty"`
	EmailVerified bool                `json:"emailVerified,omitempty"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
}

// CredentialType is the closed set of credential kinds this layer
// distinguishes.
type CredentialType string

const (
	CredentialPassword     CredentialType = "password"
	CredentialSecondFactor CredentialType = "second-factor"
	CredentialOther        CredentialType = "other"
)

// CredentialRecord is a read-only snapshot of one stored credential.
// Never cached beyond a single list load.
type CredentialRecord struct {
	ID        string
	Type      CredentialType
	CreatedAt time.Time
	Label     *string
}

// DisplayLabel is the user-visible name for the credential: the label the
// user gave it, or empty when none was set.
func (r CredentialRecord) DisplayLabel() string {
	return utils.Value(r.Label)
}

// CredentialGroup is an ordered group of credentials of one type, as the
// server groups them.
type CredentialGroup struct {
	Type        CredentialType
	DisplayName string
	Credentials []CredentialRecord
}

// SessionClient is one client application participating in a device
// session.
type SessionClient struct {
	ClientID string `json:"clientId"`
	InUse    bool   `json:"inUse"`
}

// DeviceSession is one of the user's active sessions at the IdP. Exactly
// one entry of a fetched list has Current set; that entry must never be
// offered for remote termination.
type DeviceSession struct {
	ID           string
	IPAddress    string
	StartedAt    time.Time
	LastAccessAt time.Time
	ExpiresAt    time.Time
	Browser      string
	OS           *string
	Device       *string
	Current      bool
	Clients      []SessionClient
}

// DisplayName is the session's device description for session lists:
// "Browser / OS", degrading to whichever part the IdP reported.
func (s DeviceSession) DisplayName() string {
	os := utils.Value(s.OS)
	switch {
	case s.Browser != "" && os != "":
		return s.Browser + " / " + os
	case s.Browser != "":
		return s.Browser
	default:
		return os
	}
}

// LinkedIdentity is one identity provider configured on the realm and its
// link status for the current user. Uniqueness key is ProviderName.
type LinkedIdentity struct {
	ProviderAlias  string  `json:"providerAlias"`
	ProviderName   string  `json:"providerName"`
	DisplayName    string  `json:"displayName,omitempty"`
	Connected      bool    `json:"connected"`
	Social         bool    `json:"social"`
	LinkedUsername *string `json:"linkedUsername,omitempty"`
}

// LinkHandoff is the redirect instruction for linking a new identity
// provider. Following it is a browser navigation owned by the host.
type LinkHandoff struct {
	RedirectURL string `json:"accountLinkUri"`
}
