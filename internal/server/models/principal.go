package models

import "time"

// Principal is the authenticated identity derived from a verified bearer
// credential for one request. It is never persisted.
type Principal struct {
	OwnerID       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	ExpiresAt     time.Time
}
