// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package auth

import (
	"crypto/subtle"
	"strings"
)

// SharedSecret verifies the bearer token the Traccar forwarder presents
// on webhook requests.
type SharedSecret struct {
	secret []byte
}

// NewSharedSecret creates a verifier for the configured secret. An
// empty secret disables verification (development mode); production
// config validation refuses an empty secret before this point.
func NewSharedSecret(secret string) *SharedSecret {
	return &SharedSecret{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (s *SharedSecret) Enabled() bool {
	return len(s.secret) > 0
}

// VerifyBearer checks an Authorization header value. Comparison is
// constant time so the secret cannot be probed byte by byte.
func (s *SharedSecret) VerifyBearer(header string) bool {
	if !s.Enabled() {
		return true
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	presented := []byte(strings.TrimPrefix(header, prefix))

	return subtle.ConstantTimeCompare(presented, s.secret) == 1
}
