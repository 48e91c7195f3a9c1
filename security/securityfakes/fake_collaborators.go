package securityfakes

import (
	"context"
	"sync"

	"github.com/pemdasso/accountclient/refresh"
	"github.com/pemdasso/accountclient/security"
	"github.com/pemdasso/accountclient/session"
)

var (
	_ security.Confirmer     = (*FakeConfirmer)(nil)
	_ security.Refresher     = (*FakeRefresher)(nil)
	_ security.SessionReader = (*FakeSessionReader)(nil)
)

// FakeConfirmer answers every confirmation with Answer and records the
// prompts it was shown.
type FakeConfirmer struct {
	lock    sync.Mutex
	Answer  bool
	Err     error
	Prompts []string
}

func (f *FakeConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.Prompts = append(f.Prompts, prompt)
	return f.Answer, f.Err
}

// FakeRefresher returns a stubbed refresh outcome. OnRefresh, when set,
// runs on every call so tests can swap the token the store hands out.
type FakeRefresher struct {
	lock      sync.Mutex
	Outcome   refresh.Outcome
	Err       error
	OnRefresh func()
	calls     int
}

func (f *FakeRefresher) ForceRefresh(_ context.Context) (refresh.Outcome, error) {
	f.lock.Lock()
	f.calls++
	fn := f.OnRefresh
	outcome, err := f.Outcome, f.Err
	f.lock.Unlock()

	if fn != nil {
		fn()
	}
	return outcome, err
}

func (f *FakeRefresher) CallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls
}

// FakeSessionReader serves a fixed session snapshot.
type FakeSessionReader struct {
	Session session.Session
	Status  session.Status
}

func (f *FakeSessionReader) Snapshot() (session.Session, session.Status) {
	return f.Session, f.Status
}
