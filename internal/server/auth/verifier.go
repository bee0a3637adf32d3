// Package auth verifies bearer credentials issued by the identity provider
// and derives the per-request Principal. The service never mints tokens;
// it only checks them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tasksync/internal/common"
	"github.com/dmitrijs2005/tasksync/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload issued by the identity provider: standard
// registered claims plus the profile fields carried for convenience.
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// Revocations reports whether a token id has been revoked. Implementations
// are typically backed by a shared cache fed from the identity provider.
type Revocations interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Verifier validates HS256 bearer tokens against a shared secret and an
// optional revocation list.
type Verifier struct {
	secret      []byte
	revocations Revocations
}

// NewVerifier constructs a Verifier. revocations may be nil, which
// disables the revocation check.
func NewVerifier(secret []byte, revocations Revocations) *Verifier {
	return &Verifier{secret: secret, revocations: revocations}
}

// Verify parses and validates tokenString and returns the Principal.
//
// Failures map onto the common token taxonomy: ErrTokenExpired,
// ErrTokenRevoked, ErrTokenInvalid, ErrTokenUnknown. Callers must treat
// all four identically as authentication failures; the distinction only
// selects the user-facing message (see MessageFor).
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, common.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, common.ErrTokenInvalid
		default:
			return nil, common.ErrTokenUnknown
		}
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrTokenInvalid
	}

	if v.revocations != nil && claims.ID != "" {
		revoked, err := v.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			// The revocation cache being unreachable must not lock every
			// client out; the signature and expiry checks already passed.
			revoked = false
		}
		if revoked {
			return nil, common.ErrTokenRevoked
		}
	}

	p := &models.Principal{
		OwnerID:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// MessageFor returns the user-facing message for a verification failure.
// The taxonomy never alters control flow; every failure is a 401.
func MessageFor(err error) string {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return "Token has expired. Please sign in again."
	case errors.Is(err, common.ErrTokenRevoked):
		return "Token has been revoked. Please sign in again."
	case errors.Is(err, common.ErrTokenInvalid):
		return "Invalid token format or signature"
	default:
		return "Authentication failed"
	}
}

// GenerateToken mints a signed token for the given subject. The server
// itself never issues tokens; this exists for tests and local tooling.
func GenerateToken(subject string, secret []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
	})
	return token.SignedString(secret)
}
