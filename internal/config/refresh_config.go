package config

import "time"

type RefreshConfig interface {
	GetTickInterval() time.Duration
	GetSafetyMargin() time.Duration
	GetForceMinValidity() time.Duration
}

type Refresh struct{}

var _ RefreshConfig = Refresh{}

// GetTickInterval is the scheduler granularity. One second is the minimum
// needed to report "seconds until expiry" accurately.
func (Refresh) GetTickInterval() time.Duration {
	return 1 * time.Second
}

// GetSafetyMargin is how close to expiry a token may get before the
// scheduler refreshes it.
func (Refresh) GetSafetyMargin() time.Duration {
	return 10 * time.Second
}

// GetForceMinValidity is the validity window used by a manual refresh. A
// token with more remaining life than this is reported as still valid
// instead of being refreshed.
func (Refresh) GetForceMinValidity() time.Duration {
	return 9999 * time.Second
}
