package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// corsAllowlist answers origin checks against a configured allow-list.
// Entries may contain a single "*" wildcard, e.g. "https://*.example.com".
// Requests without an Origin header (mobile apps, curl) always pass.
//
// Fiber ships a cors middleware, but it cannot express the wildcard
// patterns or the explicit 403 on a disallowed origin, so the check is
// done by hand here.
type corsAllowlist struct {
	patterns []string
}

func newCORSAllowlist(origins []string) *corsAllowlist {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			patterns = append(patterns, o)
		}
	}
	return &corsAllowlist{patterns: patterns}
}

func (a *corsAllowlist) allows(origin string) bool {
	for _, pattern := range a.patterns {
		if matchOrigin(pattern, origin) {
			return true
		}
	}
	return false
}

// matchOrigin compares an origin against a pattern holding at most one
// "*" wildcard.
func matchOrigin(pattern, origin string) bool {
	i := strings.Index(pattern, "*")
	if i < 0 {
		return pattern == origin
	}
	prefix, suffix := pattern[:i], pattern[i+1:]
	return len(origin) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(origin, prefix) &&
		strings.HasSuffix(origin, suffix)
}

// corsMiddleware rejects disallowed cross-origin requests with 403 and
// answers preflights for allowed ones.
func (s *Server) corsMiddleware() fiber.Handler {
	allowlist := newCORSAllowlist(s.cfg.AllowedOrigins)
	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" {
			return c.Next()
		}

		if !allowlist.allows(origin) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "CORS policy violation",
			})
		}

		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		c.Set(fiber.HeaderVary, fiber.HeaderOrigin)

		if c.Method() == fiber.MethodOptions {
			c.Set(fiber.HeaderAccessControlAllowMethods, "GET,POST,PUT,DELETE,OPTIONS")
			c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Type, Authorization")
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
