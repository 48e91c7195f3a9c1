package idp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const codeVerifierLength = 32 // 32 bytes = 256 bits, well within RFC 7636 bounds

// NewHandoff generates the one-time values for a login hand-off: a fresh
// state, nonce, and S256 PKCE pair. One Handoff must be used for exactly
// one user gesture.
func NewHandoff() (Handoff, error) {
	verifierBytes := make([]byte, codeVerifierLength)
	if _, err := rand.Read(verifierBytes); err != nil {
		return Handoff{}, errors.Wrap(err, "[NewHandoff] failed to generate code verifier")
	}

	verifier := base64.RawURLEncoding.EncodeToString(verifierBytes)
	challenge := sha256.Sum256([]byte(verifier))

	return Handoff{
		State:         uuid.NewString(),
		Nonce:         uuid.NewString(),
		CodeVerifier:  verifier,
		CodeChallenge: base64.RawURLEncoding.EncodeToString(challenge[:]),
	}, nil
}
