// Package gate decides whether a requested view may be rendered based on
// the session store's state. It is consumed by the host's router; the gate
// itself never navigates.
package gate

import (
	"context"

	"github.com/pemdasso/accountclient/idp"
	"github.com/pemdasso/accountclient/internal/config"
	"github.com/pemdasso/accountclient/session"
	"github.com/pkg/errors"
)

// Action is what the caller should do with the navigation request.
type Action int

const (
	ActionAllow Action = iota
	// ActionRedirectToLogin hands off to the IdP's hosted login immediately.
	ActionRedirectToLogin
	// ActionShowLoginPrompt asks the user before the hand-off. The prompt
	// must offer a cancel path that returns to a public view without
	// contacting the IdP.
	ActionShowLoginPrompt
)

// Reason distinguishes why access was denied. Unavailable gates the same
// as Unauthenticated, but the caller can surface a different message.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonInitializing
	ReasonUnauthenticated
	ReasonUnavailable
)

// Decision is the result of a gating check. Prompt is set only when the
// action is ActionShowLoginPrompt.
type Decision struct {
	Action Action
	Reason Reason
	Prompt *Prompt
}

func (d Decision) Allowed() bool {
	return d.Action == ActionAllow
}

// Policy selects the deny behavior for a deployment. It is fixed at
// construction: the same gate always answers the same way.
type Policy int

const (
	PolicyRedirect Policy = iota
	PolicyPrompt
)

// ParsePolicy maps the configured policy name to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "redirect":
		return PolicyRedirect, nil
	case "prompt":
		return PolicyPrompt, nil
	default:
		return PolicyRedirect, errors.Errorf("unknown gate policy %q", name)
	}
}

// StatusReader is the slice of the session store the gate reads.
type StatusReader interface {
	Status() session.Status
}

// LoginStarter is the slice of the IdP connector the prompt needs to
// begin a hand-off.
type LoginStarter interface {
	LoginURL(ctx context.Context, handoff idp.Handoff) (string, error)
}

// Prompt is the pending login question the host shows under PolicyPrompt.
// Exactly one of Confirm or Cancel resolves it.
type Prompt struct {
	login LoginStarter
}

// Confirm begins the IdP hand-off: it mints fresh one-time values and
// builds the login URL for them. The returned handoff must be retained
// for the code exchange after the IdP redirects back.
func (p *Prompt) Confirm(ctx context.Context) (string, idp.Handoff, error) {
	handoff, err := idp.NewHandoff()
	if err != nil {
		return "", idp.Handoff{}, errors.Wrap(err, "[Prompt.Confirm]")
	}
	loginURL, err := p.login.LoginURL(ctx, handoff)
	if err != nil {
		return "", idp.Handoff{}, errors.Wrap(err, "[Prompt.Confirm]")
	}
	return loginURL, handoff, nil
}

// Cancel abandons the prompt; the caller returns to a public view. The
// IdP is never contacted.
func (p *Prompt) Cancel() {}

// Gate is a pure decision function over the store's current state.
type Gate struct {
	store  StatusReader
	login  LoginStarter
	policy Policy
}

// Option modifies the Gate instance.
type Option func(*Gate)

// WithLoginStarter supplies the connector the prompt-policy gate uses to
// begin a hand-off on Confirm. Required under PolicyPrompt.
func WithLoginStarter(login LoginStarter) Option {
	return func(g *Gate) {
		g.login = login
	}
}

// New creates a Gate with the deployment's configured policy.
func New(store StatusReader, cfg config.GateConfig, options ...Option) (*Gate, error) {
	if store == nil {
		return nil, errors.New("[gate.New] store is required")
	}
	policy, err := ParsePolicy(cfg.GetGatePolicy())
	if err != nil {
		return nil, errors.Wrap(err, "[gate.New]")
	}

	g := &Gate{store: store, policy: policy}
	for _, opt := range options {
		opt(g)
	}

	if g.policy == PolicyPrompt && g.login == nil {
		return nil, errors.New("[gate.New] prompt policy requires a login starter")
	}
	return g, nil
}

// CanAccess decides whether a view with the given auth requirement may be
// rendered right now. Public views are always allowed.
func (g *Gate) CanAccess(requiresAuth bool) Decision {
	if !requiresAuth {
		return Decision{Action: ActionAllow}
	}

	status := g.store.Status()
	if status == session.StatusAuthenticated {
		return Decision{Action: ActionAllow}
	}

	if g.policy == PolicyPrompt {
		return Decision{
			Action: ActionShowLoginPrompt,
			Reason: reasonFor(status),
			Prompt: &Prompt{login: g.login},
		}
	}

	return Decision{Action: ActionRedirectToLogin, Reason: reasonFor(status)}
}

func reasonFor(status session.Status) Reason {
	switch status {
	case session.StatusUnknown:
		return ReasonInitializing
	case session.StatusUnavailable:
		return ReasonUnavailable
	default:
		return ReasonUnauthenticated
	}
}
