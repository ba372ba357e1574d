package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrBadSignature is returned when a signature was expected and did not
// verify against any configured secret.
var ErrBadSignature = errors.New("webhook signature verification failed")

// Verifier checks the HMAC-SHA256 signature of a raw webhook body.
// Secrets are injected at startup and rotatable: a request verifies if it
// matches ANY configured secret, so a new secret can be rolled out while
// the provider still signs with the old one.
type Verifier struct {
	secrets [][]byte
}

// NewVerifier creates a Verifier accepting the given secrets. An empty
// secret list disables verification (Verify always succeeds).
func NewVerifier(secrets []string) *Verifier {
	v := &Verifier{}
	for _, s := range secrets {
		if s != "" {
			v.secrets = append(v.secrets, []byte(s))
		}
	}
	return v
}

// Enabled reports whether any secret is configured. When enabled, a
// missing or invalid signature rejects the request.
func (v *Verifier) Enabled() bool {
	return len(v.secrets) > 0
}

// Verify checks the hex-encoded HMAC-SHA256 signature over the raw body.
// Returns nil when verification is disabled.
func (v *Verifier) Verify(body []byte, signature string) error {
	if !v.Enabled() {
		return nil
	}
	if signature == "" {
		return ErrBadSignature
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return ErrBadSignature
	}

	for _, secret := range v.secrets {
		mac := hmac.New(sha256.New, secret)
		mac.Write(body)
		if hmac.Equal(provided, mac.Sum(nil)) {
			return nil
		}
	}
	return ErrBadSignature
}

// Sign computes the hex-encoded HMAC-SHA256 of body with the given secret.
// Used by tests and by callers that need to produce signatures.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
