package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pemdasso/accountclient/idp"
	"github.com/pemdasso/accountclient/internal/config"
	"github.com/pemdasso/accountclient/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// State of the scheduler's refresh machine.
type State int32

const (
	StateIdle State = iota
	// StateScheduled means a valid token is being watched but is not yet
	// within the safety margin.
	StateScheduled
	StateRefreshing
	// StateFailed means the last refresh failed transiently; the next tick
	// retries.
	StateFailed
)

// Outcome is the tri-state result of a manual refresh.
type Outcome int

const (
	OutcomeRefreshed Outcome = iota
	// OutcomeStillValid means the current token had ample remaining life
	// and no refresh was issued.
	OutcomeStillValid
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeStillValid:
		return "still valid"
	default:
		return "failed"
	}
}

// Store is the slice of the session store the scheduler needs.
type Store interface {
	Snapshot() (session.Session, session.Status)
	Generation() uint64
	ApplyRefreshedToken(tokens *idp.Tokens, generation uint64) error
	Clear(reason string)
}

// Connector is the token-renewal capability of the IdP.
type Connector interface {
	Refresh(ctx context.Context, refreshToken string) (*idp.Tokens, error)
}

// Scheduler keeps the session's access token fresh. It ticks once per
// second, refreshing when the token is within the safety margin of expiry.
// At most one refresh request is ever in flight; ticks and manual
// refreshes share the outcome of an in-flight attempt.
type Scheduler struct {
	store            Store
	connector        Connector
	tickInterval     time.Duration
	safetyMargin     time.Duration
	forceMinValidity time.Duration

	group   singleflight.Group
	state   atomic.Int32
	nowTime func() time.Time

	stopOnce sync.Once
	stopped  chan struct{}
}

// Option modifies the Scheduler instance.
type Option func(*Scheduler)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Scheduler) {
		s.nowTime = nowFunc
	}
}

// New creates a Scheduler watching the given store.
func New(store Store, connector Connector, cfg config.RefreshConfig, options ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, errors.New("[refresh.New] store is required")
	}
	if connector == nil {
		return nil, errors.New("[refresh.New] connector is required")
	}

	s := &Scheduler{
		store:            store,
		connector:        connector,
		tickInterval:     cfg.GetTickInterval(),
		safetyMargin:     cfg.GetSafetyMargin(),
		forceMinValidity: cfg.GetForceMinValidity(),
		nowTime:          time.Now,
		stopped:          make(chan struct{}),
	}

	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// Run drives the tick loop until ctx is cancelled or the scheduler stops
// itself after a terminal refresh failure.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopped:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates the refresh policy once: refresh when the token's
// remaining validity is within the safety margin, otherwise no-op.
func (s *Scheduler) Tick(ctx context.Context) {
	// A transient failure becomes retry-eligible again on the next tick.
	s.state.CompareAndSwap(int32(StateFailed), int32(StateIdle))

	sess, status := s.store.Snapshot()
	if status != session.StatusAuthenticated {
		s.state.Store(int32(StateIdle))
		return
	}

	if sess.TimeToExpiry(s.nowTime()) > s.safetyMargin {
		s.state.Store(int32(StateScheduled))
		return
	}

	if _, err := s.UpdateToken(ctx, s.safetyMargin); err != nil {
		log.Warn().Err(err).Msg("scheduled token refresh failed")
	}
}

// UpdateToken refreshes the token when its remaining validity is at or
// below minValidity. A token with more remaining life is reported
// OutcomeStillValid without any network call.
func (s *Scheduler) UpdateToken(ctx context.Context, minValidity time.Duration) (Outcome, error) {
	sess, status := s.store.Snapshot()
	if status != session.StatusAuthenticated {
		return OutcomeFailed, session.ErrNotAuthenticated
	}

	if sess.TimeToExpiry(s.nowTime()) > minValidity {
		return OutcomeStillValid, nil
	}

	return s.refresh(ctx, sess)
}

// ForceRefresh refreshes regardless of the safety margin, still sharing
// any in-flight attempt. The force window is wide enough that only a very
// long-lived token reports OutcomeStillValid.
func (s *Scheduler) ForceRefresh(ctx context.Context) (Outcome, error) {
	return s.UpdateToken(ctx, s.forceMinValidity)
}

// SecondsUntilExpiry reports the remaining token validity for countdown
// display. Never negative.
func (s *Scheduler) SecondsUntilExpiry() int64 {
	sess, status := s.store.Snapshot()
	if status != session.StatusAuthenticated {
		return 0
	}
	return int64(sess.TimeToExpiry(s.nowTime()) / time.Second)
}

// State reports the refresh machine state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Stop halts the tick loop. Called after a terminal refresh failure; safe
// to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
	})
}

// refresh issues the actual refresh request under the single-flight group:
// concurrent callers observe the outcome of the one in-flight request.
func (s *Scheduler) refresh(ctx context.Context, sess session.Session) (Outcome, error) {
	generation := s.store.Generation()

	_, err, _ := s.group.Do("refresh", func() (any, error) {
		s.state.Store(int32(StateRefreshing))

		tokens, err := s.connector.Refresh(ctx, sess.RefreshToken)
		if err != nil {
			s.state.Store(int32(StateFailed))
			return nil, err
		}
		if err := s.store.ApplyRefreshedToken(tokens, generation); err != nil {
			s.state.Store(int32(StateIdle))
			return nil, err
		}

		s.state.Store(int32(StateIdle))
		log.Debug().Time("expires_at", tokens.Expiry).Msg("access token refreshed")
		return tokens, nil
	})

	if err != nil {
		if errors.Is(err, idp.ErrRefreshTokenInvalid) {
			// Terminal: the session cannot be renewed.
			s.store.Clear("refresh token expired or revoked")
			s.Stop()
			return OutcomeFailed, err
		}
		if errors.Is(err, session.ErrStaleRefresh) {
			// A logout won the race; the result was discarded.
			return OutcomeFailed, err
		}
		// Transient (network): retried on a later tick.
		return OutcomeFailed, err
	}

	return OutcomeRefreshed, nil
}
