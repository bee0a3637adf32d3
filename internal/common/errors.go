// Package common defines shared sentinel errors used across TaskSync
// server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Token verification taxonomy. All four are authentication failures
	// and must be rejected identically; the distinction only selects the
	// user-facing message.
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenUnknown = errors.New("authentication failed")
)
