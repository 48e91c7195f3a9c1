package idpfakes

import (
	"context"
	"sync"

	"github.com/pemdasso/accountclient/idp"
)

var _ idp.Connector = (*FakeConnector)(nil)

// FakeConnector is an in-memory Connector for tests. Stub the result
// fields, or set RefreshFn for call-by-call control.
type FakeConnector struct {
	lock sync.Mutex

	CheckSignOnTokens *idp.Tokens
	CheckSignOnErr    error
	checkSignOnCalls  int

	RefreshTokens *idp.Tokens
	RefreshErr    error
	RefreshFn     func(ctx context.Context, refreshToken string) (*idp.Tokens, error)
	refreshCalls  int

	LoginURLValue  string
	LogoutURLValue string
}

func NewFakeConnector() *FakeConnector {
	return &FakeConnector{
		LoginURLValue:  "https://idp.example/auth",
		LogoutURLValue: "https://idp.example/logout",
	}
}

func (f *FakeConnector) CheckSignOn(_ context.Context) (*idp.Tokens, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.checkSignOnCalls++
	return f.CheckSignOnTokens, f.CheckSignOnErr
}

func (f *FakeConnector) LoginURL(_ context.Context, _ idp.Handoff) (string, error) {
	return f.LoginURLValue, nil
}

func (f *FakeConnector) Exchange(_ context.Context, _ string, _ idp.Handoff) (*idp.Tokens, error) {
	return f.RefreshTokens, f.RefreshErr
}

func (f *FakeConnector) Refresh(ctx context.Context, refreshToken string) (*idp.Tokens, error) {
	f.lock.Lock()
	f.refreshCalls++
	fn := f.RefreshFn
	tokens, err := f.RefreshTokens, f.RefreshErr
	f.lock.Unlock()

	if fn != nil {
		return fn(ctx, refreshToken)
	}
	return tokens, err
}

func (f *FakeConnector) LogoutURL(_ context.Context, _ string) (string, error) {
	return f.LogoutURLValue, nil
}

func (f *FakeConnector) RefreshCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.refreshCalls
}

func (f *FakeConnector) CheckSignOnCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.checkSignOnCalls
}
