// Package crypto verifies Discord interaction request signatures.
// Discord signs every interaction webhook with the application's Ed25519
// key; requests that fail verification must be rejected, or Discord
// disables the endpoint.
package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// Verifier checks interaction request signatures.
// Implementations must treat a malformed signature the same as an
// invalid one: reject the request.
type Verifier interface {
	// Verify reports whether signature is a valid signature over
	// timestamp||body. The signature is hex-encoded as received in the
	// X-Signature-Ed25519 header.
	Verify(timestamp string, body []byte, signature string) bool
}

// Ed25519Verifier implements Verifier against a single application
// public key, as provided on the Discord developer portal.
type Ed25519Verifier struct {
	key ed25519.PublicKey
}

// NewEd25519Verifier creates a verifier from the hex-encoded public key
// shown on the application's General Information page.
//
// Returns error if the key is not exactly 32 bytes after decoding.
func NewEd25519Verifier(hexKey string) (*Ed25519Verifier, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("public key is empty")
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: hex decode failed: %w", err)
	}

	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key: must be %d bytes, got %d bytes", ed25519.PublicKeySize, len(key))
	}

	return &Ed25519Verifier{key: ed25519.PublicKey(key)}, nil
}

// Verify checks the signature over timestamp||body. A signature that is
// not valid hex or has the wrong length is simply invalid; no error
// detail is surfaced to the caller.
func (v *Ed25519Verifier) Verify(timestamp string, body []byte, signature string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)

	return ed25519.Verify(v.key, msg, sig)
}
