// Package signature verifies webhook payload authenticity.
//
// Verification computes an HMAC-SHA256 over the raw, unparsed request body
// and compares it in constant time against the X-Hub-Signature-256 header
// value. An empty shared secret disables verification entirely; that is an
// explicit insecure mode intended for local development, not a safe default.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Prefix is the scheme marker GitHub-style webhooks put before the hex digest.
const Prefix = "sha256="

// ErrMismatch is returned when the provided signature does not match the
// digest computed over the body.
var ErrMismatch = errors.New("signature mismatch")

// Compute returns the full header value expected for body under secret.
func Compute(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks provided against the digest of body under secret.
//
// With an empty secret it returns nil without inspecting the header at all:
// the caller opted out of verification. Otherwise the comparison covers the
// whole header value, prefix included, using hmac.Equal.
func Verify(secret, body []byte, provided string) error {
	if len(secret) == 0 {
		return nil
	}
	expected := Compute(secret, body)
	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return ErrMismatch
	}
	return nil
}
