package config

type GateConfig interface {
	GetGatePolicy() string
}

type Gate struct{}

var _ GateConfig = Gate{}

// GetGatePolicy selects how unauthenticated access to a protected view is
// handled: "redirect" hands off to the IdP login immediately, "prompt" asks
// the user first. The value is fixed per deployment.
func (Gate) GetGatePolicy() string {
	return GetEnv("GATE_POLICY", "redirect")
}
