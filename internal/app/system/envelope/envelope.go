// internal/app/system/envelope/envelope.go

// Package envelope implements the signed, stateless session envelope: a typed
// payload plus scope tag and expiry, serialized and HMAC-signed into a
// tamper-evident token. All participant progress (shown coaches, pinned
// batch, remix latch) travels in such a token; the server never stores it.
package envelope

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Scopes. Verify rejects a token presented under the wrong scope, so a
// participant cookie can never be replayed as a staff credential and vice
// versa.
const (
	ScopeParticipant = "participant"
	ScopePortal      = "portal"
	ScopeMagicLink   = "magiclink"
)

// ErrNoSecret is returned by New when the signing secret is missing. This is
// a configuration error and must abort startup; signing with an empty key
// would silently void every integrity guarantee below.
var ErrNoSecret = errors.New("envelope: signing secret is empty")

// Signer creates and verifies envelope tokens with a server-held secret.
// It is safe for concurrent use.
type Signer struct {
	secret []byte
	now    func() time.Time // test hook
}

// body is the signed wire form. Exp is a Unix timestamp; a token whose Exp
// equals the current second is already expired (exclusive boundary).
type body struct {
	Scope   string          `json:"scope"`
	Payload json.RawMessage `json:"payload"`
	Exp     int64           `json:"exp"`
}

// New creates a Signer. The secret must be non-empty; callers should treat
// ErrNoSecret as fatal.
func New(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

// Create serializes {scope, payload, exp} and returns encoded + "." + sig,
// where sig is HMAC-SHA256 over the encoded body.
func (s *Signer) Create(scope string, payload any, ttl time.Duration) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(body{
		Scope:   scope,
		Payload: raw,
		Exp:     s.now().Add(ttl).Unix(),
	})
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(b)
	return encoded + "." + s.sign(encoded), nil
}

// Verify checks signature, scope, and expiry, and on full success decodes the
// payload into out and returns true. Any failure — malformed token, bad
// signature, wrong scope, expired — returns false and leaves out untouched.
// It never panics on hostile input; this sits on the request path of every
// participant endpoint.
func (s *Signer) Verify(token, expectedScope string, out any) bool {
	// Split on the last separator so a "." inside a future encoding change
	// cannot confuse the signature boundary.
	i := strings.LastIndexByte(token, '.')
	if i <= 0 || i == len(token)-1 {
		return false
	}
	encoded, sig := token[:i], token[i+1:]

	expected := s.sign(encoded)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return false
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	var b body
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	if b.Scope != expectedScope {
		return false
	}
	if b.Exp <= s.now().Unix() {
		return false
	}
	if out != nil {
		if err := json.Unmarshal(b.Payload, out); err != nil {
			return false
		}
	}
	return true
}

func (s *Signer) sign(encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
