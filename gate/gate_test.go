package gate_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/pemdasso/accountclient/gate"
	"github.com/pemdasso/accountclient/idp"
	"github.com/pemdasso/accountclient/session"
	"github.com/stretchr/testify/require"
)

type stubStatus session.Status

func (s stubStatus) Status() session.Status { return session.Status(s) }

type stubGateConfig string

func (c stubGateConfig) GetGatePolicy() string { return string(c) }

type stubLogin struct {
	url     string
	err     error
	calls   int
	handoff idp.Handoff
}

func (s *stubLogin) LoginURL(_ context.Context, handoff idp.Handoff) (string, error) {
	s.calls++
	s.handoff = handoff
	return s.url, s.err
}

func TestGateCanAccess(t *testing.T) {
	tests := []struct {
		name         string
		policy       string
		status       session.Status
		requiresAuth bool
		want         gate.Action
		reason       gate.Reason
	}{
		{
			name:         "public view always allowed",
			policy:       "redirect",
			status:       session.StatusUnauthenticated,
			requiresAuth: false,
			want:         gate.ActionAllow,
		},
		{
			name:         "authenticated user allowed",
			policy:       "redirect",
			status:       session.StatusAuthenticated,
			requiresAuth: true,
			want:         gate.ActionAllow,
		},
		{
			name:         "unauthenticated redirects under redirect policy",
			policy:       "redirect",
			status:       session.StatusUnauthenticated,
			requiresAuth: true,
			want:         gate.ActionRedirectToLogin,
			reason:       gate.ReasonUnauthenticated,
		},
		{
			name:         "unauthenticated prompts under prompt policy",
			policy:       "prompt",
			status:       session.StatusUnauthenticated,
			requiresAuth: true,
			want:         gate.ActionShowLoginPrompt,
			reason:       gate.ReasonUnauthenticated,
		},
		{
			name:         "unavailable gates like unauthenticated with its own reason",
			policy:       "redirect",
			status:       session.StatusUnavailable,
			requiresAuth: true,
			want:         gate.ActionRedirectToLogin,
			reason:       gate.ReasonUnavailable,
		},
		{
			name:         "unknown status denied while initializing",
			policy:       "prompt",
			status:       session.StatusUnknown,
			requiresAuth: true,
			want:         gate.ActionShowLoginPrompt,
			reason:       gate.ReasonInitializing,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			login := &stubLogin{url: "https://idp.example/auth"}
			g, err := gate.New(stubStatus(tc.status), stubGateConfig(tc.policy), gate.WithLoginStarter(login))
			require.NoError(t, err)

			decision := g.CanAccess(tc.requiresAuth)
			require.Equal(t, tc.want, decision.Action)
			require.Equal(t, tc.reason, decision.Reason)
			require.Equal(t, tc.want == gate.ActionAllow, decision.Allowed())
			if tc.want == gate.ActionShowLoginPrompt {
				require.NotNil(t, decision.Prompt)
			} else {
				require.Nil(t, decision.Prompt)
			}
		})
	}
}

func TestGatePrompt(t *testing.T) {
	promptDecision := func(t *testing.T, login *stubLogin) gate.Decision {
		t.Helper()
		g, err := gate.New(stubStatus(session.StatusUnauthenticated), stubGateConfig("prompt"), gate.WithLoginStarter(login))
		require.NoError(t, err)

		decision := g.CanAccess(true)
		require.Equal(t, gate.ActionShowLoginPrompt, decision.Action)
		require.NotNil(t, decision.Prompt)
		return decision
	}

	t.Run("confirm begins the hand-off", func(t *testing.T) {
		login := &stubLogin{url: "https://idp.example/auth?client_id=web-app"}
		decision := promptDecision(t, login)

		loginURL, handoff, err := decision.Prompt.Confirm(context.Background())
		require.NoError(t, err)
		require.Equal(t, login.url, loginURL)
		require.Equal(t, 1, login.calls)
		require.Equal(t, handoff, login.handoff)

		require.NotEmpty(t, handoff.State)
		require.NotEmpty(t, handoff.Nonce)
		digest := sha256.Sum256([]byte(handoff.CodeVerifier))
		require.Equal(t, base64.RawURLEncoding.EncodeToString(digest[:]), handoff.CodeChallenge)
	})

	t.Run("confirm surfaces a connector failure", func(t *testing.T) {
		login := &stubLogin{err: errFromConnector}
		decision := promptDecision(t, login)

		_, _, err := decision.Prompt.Confirm(context.Background())
		require.ErrorIs(t, err, errFromConnector)
	})

	t.Run("cancel never contacts the IdP", func(t *testing.T) {
		login := &stubLogin{url: "https://idp.example/auth"}
		decision := promptDecision(t, login)

		decision.Prompt.Cancel()
		require.Zero(t, login.calls)
	})
}

var errFromConnector = errors.New("connector unreachable")

func TestGateNew(t *testing.T) {
	t.Run("nil store rejected", func(t *testing.T) {
		_, err := gate.New(nil, stubGateConfig("redirect"))
		require.Error(t, err)
	})

	t.Run("unknown policy rejected", func(t *testing.T) {
		_, err := gate.New(stubStatus(session.StatusUnauthenticated), stubGateConfig("maybe"))
		require.Error(t, err)
	})

	t.Run("prompt policy requires a login starter", func(t *testing.T) {
		_, err := gate.New(stubStatus(session.StatusUnauthenticated), stubGateConfig("prompt"))
		require.Error(t, err)

		_, err = gate.New(stubStatus(session.StatusUnauthenticated), stubGateConfig("prompt"),
			gate.WithLoginStarter(&stubLogin{}))
		require.NoError(t, err)
	})
}
