package security

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pemdasso/accountclient/account"
	"github.com/pemdasso/accountclient/refresh"
	"github.com/pemdasso/accountclient/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// API is the account client surface the controller orchestrates.
type API interface {
	GetProfile(ctx context.Context) (*account.UserProfile, error)
	UpdateProfile(ctx context.Context, profile *account.UserProfile) error
	ListCredentials(ctx context.Context) ([]account.CredentialGroup, error)
	RemoveCredential(ctx context.Context, credentialID string) error
	ListSessions(ctx context.Context) ([]account.DeviceSession, error)
	TerminateSession(ctx context.Context, sessionID string) error
	ListLinkedIdentities(ctx context.Context) ([]account.LinkedIdentity, error)
	UnlinkIdentity(ctx context.Context, providerName string) error
	BeginLinkIdentity(ctx context.Context, providerAlias, redirectURI string) (*account.LinkHandoff, error)
}

// SessionReader exposes the current session for the self-termination check.
type SessionReader interface {
	Snapshot() (session.Session, session.Status)
}

// Refresher renews the access token when a call comes back unauthorized.
type Refresher interface {
	ForceRefresh(ctx context.Context) (refresh.Outcome, error)
}

// Confirmer is the synchronous decision point for destructive operations.
// The host owns the presentation; the controller will not proceed without
// an affirmative answer.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Deps holds all collaborator dependencies for the Controller.
type Deps struct {
	API       API
	Sessions  SessionReader
	Refresher Refresher
	Confirmer Confirmer
}

// Controller orchestrates account-security operations with UI-independent
// policy: refresh-after-write on every mutation, confirmation before
// destructive calls, local rejection of self-termination, one
// refresh-and-retry on unauthorized, and backoff on transient failures.
type Controller struct {
	deps       Deps
	maxTries   uint
	maxElapsed time.Duration
}

// Option defines a function type to modify the Controller instance.
type Option func(*Controller)

// WithMaxTries sets how often a transient read failure is retried.
func WithMaxTries(tries uint) Option {
	return func(c *Controller) {
		c.maxTries = tries
	}
}

// WithMaxElapsedTime bounds the total time spent retrying a read.
func WithMaxElapsedTime(d time.Duration) Option {
	return func(c *Controller) {
		c.maxElapsed = d
	}
}

// New initializes a Controller with required dependencies.
func New(deps Deps, options ...Option) (*Controller, error) {
	if deps.API == nil {
		return nil, errors.New("[security.New] API is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[security.New] Sessions reader is required")
	}
	if deps.Refresher == nil {
		return nil, errors.New("[security.New] Refresher is required")
	}
	if deps.Confirmer == nil {
		return nil, errors.New("[security.New] Confirmer is required")
	}

	c := &Controller{
		deps:       deps,
		maxTries:   3,
		maxElapsed: 15 * time.Second,
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// Profile fetches the user's profile.
func (c *Controller) Profile(ctx context.Context) (*account.UserProfile, error) {
	return fetch(ctx, c, c.deps.API.GetProfile)
}

// SaveProfile submits a profile update and re-fetches the stored profile
// so the displayed state never diverges from the server.
func (c *Controller) SaveProfile(ctx context.Context, profile *account.UserProfile) (*account.UserProfile, error) {
	err := c.withAuthRetry(ctx, func(ctx context.Context) error {
		return c.deps.API.UpdateProfile(ctx, profile)
	})
	if err != nil {
		return nil, err
	}
	return c.Profile(ctx)
}

// Credentials fetches the stored credentials grouped by type.
func (c *Controller) Credentials(ctx context.Context) ([]account.CredentialGroup, error) {
	return fetch(ctx, c, c.deps.API.ListCredentials)
}

// RemoveCredential deletes a credential and returns the re-fetched list.
// Removing a second factor requires confirmation. A credential that no
// longer exists counts as removed.
func (c *Controller) RemoveCredential(ctx context.Context, credentialID string) ([]account.CredentialGroup, error) {
	groups, err := c.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	record, found := findCredential(groups, credentialID)
	if !found {
		// Already gone; the desired end state holds.
		return groups, nil
	}

	if record.Type == account.CredentialSecondFactor {
		if err := c.confirm(ctx, "Remove two-factor authentication credential?"); err != nil {
			return nil, err
		}
	}

	err = c.withAuthRetry(ctx, func(ctx context.Context) error {
		return c.deps.API.RemoveCredential(ctx, credentialID)
	})
	if err != nil && !errors.Is(err, account.ErrNotFound) {
		return nil, err
	}

	return c.Credentials(ctx)
}

// Sessions fetches the active device sessions.
func (c *Controller) Sessions(ctx context.Context) ([]account.DeviceSession, error) {
	return fetch(ctx, c, c.deps.API.ListSessions)
}

// TerminateSession remotely logs out a device session, then returns the
// re-fetched list. Terminating the session this request runs on is
// rejected: locally with zero network calls when the token carries its
// session id, otherwise via the server's current flag on the session list.
func (c *Controller) TerminateSession(ctx context.Context, sessionID string) ([]account.DeviceSession, error) {
	current, _ := c.deps.Sessions.Snapshot()
	if sid := current.SessionID(); sid != "" {
		if sid == sessionID {
			return nil, ErrSelfTermination
		}
	} else {
		sessions, err := c.Sessions(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range sessions {
			if s.ID == sessionID && s.Current {
				return nil, ErrSelfTermination
			}
		}
	}

	if err := c.confirm(ctx, "Log out this session?"); err != nil {
		return nil, err
	}

	err := c.withAuthRetry(ctx, func(ctx context.Context) error {
		return c.deps.API.TerminateSession(ctx, sessionID)
	})
	if err != nil && !errors.Is(err, account.ErrNotFound) {
		return nil, err
	}

	return c.Sessions(ctx)
}

// LinkedIdentities fetches the realm's identity providers with their link
// status.
func (c *Controller) LinkedIdentities(ctx context.Context) ([]account.LinkedIdentity, error) {
	return fetch(ctx, c, c.deps.API.ListLinkedIdentities)
}

// Unlink disconnects an identity provider, then returns the re-fetched
// list. An already-unlinked provider counts as success.
func (c *Controller) Unlink(ctx context.Context, providerName string) ([]account.LinkedIdentity, error) {
	prompt := fmt.Sprintf("Disconnect the linked account with %s?", providerName)
	if err := c.confirm(ctx, prompt); err != nil {
		return nil, err
	}

	err := c.withAuthRetry(ctx, func(ctx context.Context) error {
		return c.deps.API.UnlinkIdentity(ctx, providerName)
	})
	if err != nil && !errors.Is(err, account.ErrNotLinked) {
		return nil, err
	}

	return c.LinkedIdentities(ctx)
}

// BeginLink obtains the redirect that starts linking a provider. Invoked
// at most once per user gesture: no retries of any kind.
func (c *Controller) BeginLink(ctx context.Context, providerAlias, redirectURI string) (*account.LinkHandoff, error) {
	handoff, err := c.deps.API.BeginLinkIdentity(ctx, providerAlias, redirectURI)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return handoff, nil
}

// confirm runs the destructive-operation decision point.
func (c *Controller) confirm(ctx context.Context, prompt string) error {
	ok, err := c.deps.Confirmer.Confirm(ctx, prompt)
	if err != nil {
		return errors.Wrap(err, "[Controller.confirm]")
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}

// withAuthRetry runs op, and on an unauthorized result forces one token
// refresh and retries exactly once.
func (c *Controller) withAuthRetry(ctx context.Context, op func(context.Context) error) error {
	err := op(ctx)
	if !errors.Is(err, account.ErrUnauthorized) {
		return err
	}

	log.Debug().Msg("account call unauthorized, forcing token refresh")
	if _, refreshErr := c.deps.Refresher.ForceRefresh(ctx); refreshErr != nil {
		return err
	}
	return op(ctx)
}

// fetch runs a read with the controller's retry policy: one auth refresh
// on unauthorized, exponential backoff on transient network failures, and
// a relevance check so results are dropped once the requesting view is
// gone.
func fetch[T any](ctx context.Context, c *Controller, list func(context.Context) (T, error)) (T, error) {
	operation := func() (T, error) {
		var out T
		err := c.withAuthRetry(ctx, func(ctx context.Context) error {
			var opErr error
			out, opErr = list(ctx)
			return opErr
		})
		if err != nil && !account.IsNetworkError(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}

	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithMaxElapsedTime(c.maxElapsed),
	)
	if err != nil {
		var zero T
		return zero, err
	}

	// The view that asked may be gone; never apply a stale result.
	if ctx.Err() != nil {
		var zero T
		return zero, ctx.Err()
	}
	return out, nil
}

func findCredential(groups []account.CredentialGroup, credentialID string) (account.CredentialRecord, bool) {
	for _, group := range groups {
		for _, record := range group.Credentials {
			if record.ID == credentialID {
				return record, true
			}
		}
	}
	return account.CredentialRecord{}, false
}
