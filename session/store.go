package session

import (
	"context"
	"sort"
	"sync"

	"github.com/pemdasso/accountclient/idp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Status is the authentication state of the store.
type Status int

const (
	// StatusUnknown is the state before Initialize resolves.
	StatusUnknown Status = iota
	StatusUnauthenticated
	StatusAuthenticated
	// StatusUnavailable means the IdP could not be reached to determine
	// sign-on status. Terminal for the store's lifetime.
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// EventType identifies a store transition.
type EventType int

const (
	EventSignedIn EventType = iota
	EventSignedOut
	EventRefreshed
	EventUnavailable
)

// Event is delivered to subscribers on every transition. Session is a
// value snapshot (zero when not authenticated).
type Event struct {
	Type    EventType
	Status  Status
	Session Session
}

// Listener receives store events in transition order.
type Listener func(Event)

// Store is the single authoritative, observable holder of the current
// Session. All mutations are serialized; subscribers observe every
// transition in order, including the initial resolution.
type Store struct {
	connector idp.Connector

	// notifyLock serializes mutation+enqueue so no listener observes
	// transitions out of order. lock guards the state fields only.
	// Deliveries themselves run outside both locks (see drain), so a
	// listener may call back into the store.
	notifyLock sync.Mutex
	lock       sync.RWMutex

	status      Status
	current     Session
	generation  uint64
	initialized bool

	listeners      map[int]Listener
	nextListenerID int

	queueLock  sync.Mutex
	queue      []delivery
	delivering bool
}

// delivery pairs an event with the subscribers present when it was
// enqueued, so a listener added later never sees earlier transitions.
type delivery struct {
	event     Event
	listeners []Listener
}

// New creates a Store bound to an IdP connector.
func New(connector idp.Connector) (*Store, error) {
	if connector == nil {
		return nil, errors.New("[session.New] connector is required")
	}
	return &Store{
		connector: connector,
		listeners: make(map[int]Listener),
	}, nil
}

// Initialize resolves the sign-on status with the IdP (check-sso). It
// blocks until the connector answers or ctx expires. On completion the
// store is exactly one of Authenticated or Unauthenticated; a discovery
// failure leaves it Unavailable.
func (s *Store) Initialize(ctx context.Context) error {
	s.lock.Lock()
	if s.initialized {
		s.lock.Unlock()
		return ErrAlreadyInitialized
	}
	s.initialized = true
	s.lock.Unlock()

	tokens, err := s.connector.CheckSignOn(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("sign-on check failed, session store unavailable")
		s.transition(StatusUnavailable, Session{}, EventUnavailable, false)
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	if tokens == nil {
		s.transition(StatusUnauthenticated, Session{}, EventSignedOut, false)
		return nil
	}

	sess, err := fromTokens(tokens)
	if err != nil {
		// A malformed token never enters the store.
		s.transition(StatusUnauthenticated, Session{}, EventSignedOut, false)
		return err
	}

	s.transition(StatusAuthenticated, sess, EventSignedIn, true)
	return nil
}

// ApplySignOn installs the session produced by an interactive login
// callback (code exchange).
func (s *Store) ApplySignOn(tokens *idp.Tokens) error {
	if s.Status() == StatusUnavailable {
		return ErrUnavailable
	}
	sess, err := fromTokens(tokens)
	if err != nil {
		return err
	}
	s.transition(StatusAuthenticated, sess, EventSignedIn, true)
	return nil
}

// ApplyRefreshedToken atomically replaces the session's tokens, claims,
// and expiry. The generation must be the one observed when the refresh
// started: a logout (or re-login) in the meantime wins, and the stale
// result is discarded with ErrStaleRefresh.
func (s *Store) ApplyRefreshedToken(tokens *idp.Tokens, generation uint64) error {
	sess, err := fromTokens(tokens)
	if err != nil {
		return err
	}

	s.notifyLock.Lock()

	s.lock.Lock()
	if s.status != StatusAuthenticated || generation != s.generation {
		s.lock.Unlock()
		s.notifyLock.Unlock()
		return ErrStaleRefresh
	}
	if sess.RefreshToken == "" {
		// The token endpoint may omit the refresh token when it is unchanged.
		sess.RefreshToken = s.current.RefreshToken
	}
	s.current = sess
	event := Event{Type: EventRefreshed, Status: s.status, Session: s.current}
	s.lock.Unlock()

	s.enqueue(event)
	s.notifyLock.Unlock()

	s.drain()
	return nil
}

// Clear drops the session (logout or fatal refresh failure). Once cleared,
// any refresh result still in flight is discarded.
func (s *Store) Clear(reason string) {
	if s.Status() == StatusUnavailable {
		return
	}
	log.Info().Str("reason", reason).Msg("session cleared")
	s.transition(StatusUnauthenticated, Session{}, EventSignedOut, true)
}

// Current returns the latest applied session snapshot.
func (s *Store) Current() (Session, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.current, s.status == StatusAuthenticated
}

// Snapshot returns the session and status in one consistent read.
func (s *Store) Snapshot() (Session, Status) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.current, s.status
}

func (s *Store) Status() Status {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.status
}

// Generation identifies the current sign-on epoch. It advances on every
// sign-in and clear, invalidating refresh results from earlier epochs.
func (s *Store) Generation() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.generation
}

// AccessToken is the token provider for the account API client: always the
// live token, read at call time, never a cached copy.
func (s *Store) AccessToken() (string, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.status != StatusAuthenticated {
		return "", false
	}
	return s.current.AccessToken, true
}

// Subscribe registers a listener for every subsequent transition and
// returns its unsubscribe handle. A listener added before Initialize
// completes receives the initial resolution; one added after receives the
// current state immediately, so there is no missed-notification window.
func (s *Store) Subscribe(listener Listener) func() {
	s.notifyLock.Lock()

	s.lock.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners[id] = listener
	status := s.status
	current := s.current
	s.lock.Unlock()

	if status != StatusUnknown {
		event := Event{Type: eventFor(status), Status: status, Session: current}
		s.enqueueTo(event, []Listener{listener})
	}
	s.notifyLock.Unlock()

	s.drain()

	return func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		delete(s.listeners, id)
	}
}

func eventFor(status Status) EventType {
	switch status {
	case StatusAuthenticated:
		return EventSignedIn
	case StatusUnavailable:
		return EventUnavailable
	default:
		return EventSignedOut
	}
}

// transition applies a state change and enqueues the event while holding
// notifyLock, so the queue is in mutation order; delivery happens in drain
// with no lock held.
func (s *Store) transition(status Status, sess Session, eventType EventType, bumpGeneration bool) {
	s.notifyLock.Lock()

	s.lock.Lock()
	s.status = status
	s.current = sess
	if bumpGeneration {
		s.generation++
	}
	event := Event{Type: eventType, Status: status, Session: sess}
	s.lock.Unlock()

	s.enqueue(event)
	s.notifyLock.Unlock()

	s.drain()
}

// enqueue captures the current subscriber set with the event. Called with
// notifyLock held.
func (s *Store) enqueue(event Event) {
	s.lock.RLock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids) // subscription order
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	s.lock.RUnlock()

	s.enqueueTo(event, listeners)
}

func (s *Store) enqueueTo(event Event, listeners []Listener) {
	s.queueLock.Lock()
	s.queue = append(s.queue, delivery{event: event, listeners: listeners})
	s.queueLock.Unlock()
}

// drain delivers queued events in order with no store lock held, so a
// listener may call Clear, Subscribe, or any other store method. At most
// one goroutine drains at a time; a transition made by a listener queues
// behind the delivery in progress.
func (s *Store) drain() {
	s.queueLock.Lock()
	if s.delivering {
		s.queueLock.Unlock()
		return
	}
	s.delivering = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.queueLock.Unlock()

		for _, l := range next.listeners {
			l(next.event)
		}

		s.queueLock.Lock()
	}
	s.delivering = false
	s.queueLock.Unlock()
}
