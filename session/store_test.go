package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pemdasso/accountclient/idp"
	"github.com/pemdasso/accountclient/idp/idpfakes"
	"github.com/pemdasso/accountclient/session"
	"github.com/stretchr/testify/require"
)

func mintTokens(t *testing.T, sid string, expiry time.Time) *idp.Tokens {
	t.Helper()
	return &idp.Tokens{
		AccessToken: mintToken(t, jwtlib.MapClaims{
			"sub": "user-1",
			"exp": expiry.Unix(),
			"sid": sid,
		}),
		RefreshToken: "refresh-1",
		Expiry:       expiry,
	}
}

func TestStoreInitialize(t *testing.T) {
	expiry := time.Now().Add(5 * time.Minute)

	t.Run("resolves authenticated", func(t *testing.T) {
		connector := idpfakes.NewFakeConnector()
		connector.CheckSignOnTokens = mintTokens(t, "sess-1", expiry)

		store, err := session.New(connector)
		require.NoError(t, err)
		require.Equal(t, session.StatusUnknown, store.Status())

		require.NoError(t, store.Initialize(context.Background()))
		require.Equal(t, session.StatusAuthenticated, store.Status())

		current, ok := store.Current()
		require.True(t, ok)
		require.Equal(t, "sess-1", current.SessionID())
		require.Equal(t, expiry.Unix(), current.ExpiresAt.Unix())
	})

	t.Run("resolves unauthenticated", func(t *testing.T) {
		store, err := session.New(idpfakes.NewFakeConnector())
		require.NoError(t, err)

		require.NoError(t, store.Initialize(context.Background()))
		require.Equal(t, session.StatusUnauthenticated, store.Status())

		_, ok := store.Current()
		require.False(t, ok)
	})

	t.Run("discovery failure is unavailable", func(t *testing.T) {
		connector := idpfakes.NewFakeConnector()
		connector.CheckSignOnErr = errors.New("connection refused")

		store, err := session.New(connector)
		require.NoError(t, err)

		err = store.Initialize(context.Background())
		require.ErrorIs(t, err, session.ErrUnavailable)
		require.Equal(t, session.StatusUnavailable, store.Status())
	})

	t.Run("malformed token never enters the store", func(t *testing.T) {
		connector := idpfakes.NewFakeConnector()
		connector.CheckSignOnTokens = &idp.Tokens{AccessToken: "garbage"}

		store, err := session.New(connector)
		require.NoError(t, err)

		err = store.Initialize(context.Background())
		require.ErrorIs(t, err, session.ErrMalformedToken)
		require.Equal(t, session.StatusUnauthenticated, store.Status())
	})

	t.Run("second initialize rejected", func(t *testing.T) {
		store, err := session.New(idpfakes.NewFakeConnector())
		require.NoError(t, err)
		require.NoError(t, store.Initialize(context.Background()))
		require.ErrorIs(t, store.Initialize(context.Background()), session.ErrAlreadyInitialized)
	})
}

func TestStoreSubscribe(t *testing.T) {
	expiry := time.Now().Add(5 * time.Minute)

	t.Run("listener subscribed before initialize receives the resolution", func(t *testing.T) {
		connector := idpfakes.NewFakeConnector()
		connector.CheckSignOnTokens = mintTokens(t, "sess-1", expiry)

		store, err := session.New(connector)
		require.NoError(t, err)

		var events []session.Event
		store.Subscribe(func(e session.Event) {
			events = append(events, e)
		})

		require.NoError(t, store.Initialize(context.Background()))
		require.Len(t, events, 1)
		require.Equal(t, session.EventSignedIn, events[0].Type)
		require.Equal(t, session.StatusAuthenticated, events[0].Status)
	})

	t.Run("listener subscribed after resolution receives current state immediately", func(t *testing.T) {
		store, err := session.New(idpfakes.NewFakeConnector())
		require.NoError(t, err)
		require.NoError(t, store.Initialize(context.Background()))

		var events []session.Event
		store.Subscribe(func(e session.Event) {
			events = append(events, e)
		})
		require.Len(t, events, 1)
		require.Equal(t, session.EventSignedOut, events[0].Type)
	})

	t.Run("listener may call back into the store", func(t *testing.T) {
		connector := idpfakes.NewFakeConnector()
		store, err := session.New(connector)
		require.NoError(t, err)
		require.NoError(t, store.Initialize(context.Background()))

		var events []session.EventType
		store.Subscribe(func(e session.Event) {
			events = append(events, e.Type)
			if e.Type == session.EventSignedIn {
				store.Clear("policy revoked")
			}
		})

		require.NoError(t, store.ApplySignOn(mintTokens(t, "sess-1", expiry)))

		// The re-entrant Clear is delivered after the sign-in it reacted to.
		require.Equal(t, []session.EventType{
			session.EventSignedOut,
			session.EventSignedIn,
			session.EventSignedOut,
		}, events)
		require.Equal(t, session.StatusUnauthenticated, store.Status())
	})

	t.Run("listener may subscribe another listener", func(t *testing.T) {
		store, err := session.New(idpfakes.NewFakeConnector())
		require.NoError(t, err)
		require.NoError(t, store.Initialize(context.Background()))

		var late []session.EventType
		store.Subscribe(func(e session.Event) {
			if e.Type == session.EventSignedIn && len(late) == 0 {
				store.Subscribe(func(inner session.Event) {
					late = append(late, inner.Type)
				})
			}
		})

		require.NoError(t, store.ApplySignOn(mintTokens(t, "sess-1", expiry)))
		require.Equal(t, []session.EventType{session.EventSignedIn}, late)
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		connector := idpfakes.NewFakeConnector()
		connector.CheckSignOnTokens = mintTokens(t, "sess-1", expiry)

		store, err := session.New(connector)
		require.NoError(t, err)

		var events []session.Event
		unsubscribe := store.Subscribe(func(e session.Event) {
			events = append(events, e)
		})

		require.NoError(t, store.Initialize(context.Background()))
		unsubscribe()
		store.Clear("test")
		require.Len(t, events, 1)
	})
}

func TestStoreApplyRefreshedToken(t *testing.T) {
	expiry := time.Now().Add(5 * time.Second)
	renewed := time.Now().Add(300 * time.Second)

	setup := func(t *testing.T) *session.Store {
		connector := idpfakes.NewFakeConnector()
		connector.CheckSignOnTokens = mintTokens(t, "sess-1", expiry)
		store, err := session.New(connector)
		require.NoError(t, err)
		require.NoError(t, store.Initialize(context.Background()))
		return store
	}

	t.Run("token and expiry replaced atomically", func(t *testing.T) {
		store := setup(t)

		var refreshedEvents []session.Event
		store.Subscribe(func(e session.Event) {
			if e.Type == session.EventRefreshed {
				refreshedEvents = append(refreshedEvents, e)
			}
		})

		tokens := mintTokens(t, "sess-1", renewed)
		require.NoError(t, store.ApplyRefreshedToken(tokens, store.Generation()))

		current, ok := store.Current()
		require.True(t, ok)
		require.Equal(t, tokens.AccessToken, current.AccessToken)
		require.Equal(t, renewed.Unix(), current.ExpiresAt.Unix())

		// The event snapshot must carry the new token with the new expiry.
		require.Len(t, refreshedEvents, 1)
		require.Equal(t, tokens.AccessToken, refreshedEvents[0].Session.AccessToken)
		require.Equal(t, renewed.Unix(), refreshedEvents[0].Session.ExpiresAt.Unix())
	})

	t.Run("logout wins over a late refresh", func(t *testing.T) {
		store := setup(t)

		generation := store.Generation()
		store.Clear("user logged out")

		err := store.ApplyRefreshedToken(mintTokens(t, "sess-1", renewed), generation)
		require.ErrorIs(t, err, session.ErrStaleRefresh)
		require.Equal(t, session.StatusUnauthenticated, store.Status())

		_, ok := store.AccessToken()
		require.False(t, ok)
	})

	t.Run("refresh token preserved when endpoint omits it", func(t *testing.T) {
		store := setup(t)

		tokens := mintTokens(t, "sess-1", renewed)
		tokens.RefreshToken = ""
		require.NoError(t, store.ApplyRefreshedToken(tokens, store.Generation()))

		current, _ := store.Current()
		require.Equal(t, "refresh-1", current.RefreshToken)
	})
}

func TestSessionTimeToExpiry(t *testing.T) {
	now := time.Now()

	sess := session.Session{Authenticated: true, ExpiresAt: now.Add(30 * time.Second)}
	require.Equal(t, 30*time.Second, sess.TimeToExpiry(now).Round(time.Second))

	// Never negative, even past expiry.
	require.Equal(t, time.Duration(0), sess.TimeToExpiry(now.Add(time.Minute)))
	require.Equal(t, time.Duration(0), session.Session{}.TimeToExpiry(now))
}
