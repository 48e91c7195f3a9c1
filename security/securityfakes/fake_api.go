package securityfakes

import (
	"context"
	"sync"

	"github.com/pemdasso/accountclient/account"
	"github.com/pemdasso/accountclient/security"
)

var _ security.API = (*FakeAPI)(nil)

// FakeAPI is an in-memory account API for controller tests. Stub the
// result fields, or set the Fn overrides for stateful behavior. Every
// method counts its calls so tests can assert on wire traffic.
type FakeAPI struct {
	lock sync.Mutex

	Profile    *account.UserProfile
	ProfileErr error

	UpdateProfileErr error

	CredentialGroups   []account.CredentialGroup
	ListCredentialsErr error
	ListCredentialsFn  func(ctx context.Context) ([]account.CredentialGroup, error)

	RemoveCredentialErr error
	RemoveCredentialFn  func(ctx context.Context, credentialID string) error

	DeviceSessions  []account.DeviceSession
	ListSessionsErr error
	ListSessionsFn  func(ctx context.Context) ([]account.DeviceSession, error)

	TerminateSessionErr error

	LinkedIdentities        []account.LinkedIdentity
	ListLinkedIdentitiesErr error
	ListLinkedIdentitiesFn  func(ctx context.Context) ([]account.LinkedIdentity, error)

	UnlinkIdentityErr error

	LinkHandoff          *account.LinkHandoff
	BeginLinkIdentityErr error

	calls map[string]int
}

func NewFakeAPI() *FakeAPI {
	return &FakeAPI{calls: make(map[string]int)}
}

// CallCount returns how many times the named method was invoked.
func (f *FakeAPI) CallCount(method string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of API invocations across all methods.
func (f *FakeAPI) TotalCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *FakeAPI) record(method string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls[method]++
}

func (f *FakeAPI) GetProfile(_ context.Context) (*account.UserProfile, error) {
	f.record("GetProfile")
	return f.Profile, f.ProfileErr
}

func (f *FakeAPI) UpdateProfile(_ context.Context, _ *account.UserProfile) error {
	f.record("UpdateProfile")
	return f.UpdateProfileErr
}

func (f *FakeAPI) ListCredentials(ctx context.Context) ([]account.CredentialGroup, error) {
	f.record("ListCredentials")
	if f.ListCredentialsFn != nil {
		return f.ListCredentialsFn(ctx)
	}
	return f.CredentialGroups, f.ListCredentialsErr
}

func (f *FakeAPI) RemoveCredential(ctx context.Context, credentialID string) error {
	f.record("RemoveCredential")
	if f.RemoveCredentialFn != nil {
		return f.RemoveCredentialFn(ctx, credentialID)
	}
	return f.RemoveCredentialErr
}

func (f *FakeAPI) ListSessions(ctx context.Context) ([]account.DeviceSession, error) {
	f.record("ListSessions")
	if f.ListSessionsFn != nil {
		return f.ListSessionsFn(ctx)
	}
	return f.DeviceSessions, f.ListSessionsErr
}

func (f *FakeAPI) TerminateSession(_ context.Context, _ string) error {
	f.record("TerminateSession")
	return f.TerminateSessionErr
}

func (f *FakeAPI) ListLinkedIdentities(ctx context.Context) ([]account.LinkedIdentity, error) {
	f.record("ListLinkedIdentities")
	if f.ListLinkedIdentitiesFn != nil {
		return f.ListLinkedIdentitiesFn(ctx)
	}
	return f.LinkedIdentities, f.ListLinkedIdentitiesErr
}

func (f *FakeAPI) UnlinkIdentity(_ context.Context, _ string) error {
	f.record("UnlinkIdentity")
	return f.UnlinkIdentityErr
}

func (f *FakeAPI) BeginLinkIdentity(_ context.Context, _, _ string) (*account.LinkHandoff, error) {
	f.record("BeginLinkIdentity")
	return f.LinkHandoff, f.BeginLinkIdentityErr
}
