package httpapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dmitrijs2005/tasksync/internal/server/auth"
	"github.com/dmitrijs2005/tasksync/internal/server/models"
)

// principalContextKey is the key used to store the authenticated Principal
// in the Fiber context.
const principalContextKey = "principal"

// principalFromCtx returns the Principal stored by requireAuth, or nil.
func principalFromCtx(c *fiber.Ctx) *models.Principal {
	p, _ := c.Locals(principalContextKey).(*models.Principal)
	return p
}

// requireAuth verifies the bearer credential and stores the Principal in
// the request context. Every failure is a 401; the token taxonomy only
// selects the message.
func (s *Server) requireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Unauthorized",
				"message": "No token provided. Authorization header must be in format: Bearer <token>",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Unauthorized",
				"message": "Token is empty",
			})
		}

		principal, err := s.verifier.Verify(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Unauthorized",
				"message": auth.MessageFor(err),
			})
		}

		c.Locals(principalContextKey, principal)
		return c.Next()
	}
}

// rateLimit enforces a sliding-window budget. Authenticated requests are
// keyed by owner so one user's clients share a budget across devices;
// anonymous requests fall back to the client IP. A limiter backend error
// fails open: cutting all traffic because Redis is down would be a worse
// outage than briefly losing the limits.
func (s *Server) rateLimit(limit int, exceeded fiber.Map) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := "ip:" + c.IP()
		if p := principalFromCtx(c); p != nil {
			key = "uid:" + p.OwnerID
		}

		res, err := s.limiter.Allow(c.UserContext(), key, limit, s.cfg.RateLimitWindow)
		if err != nil {
			s.logger.Warn(c.UserContext(), "rate limiter unavailable, allowing request", "error", err)
			return c.Next()
		}

		c.Set("RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Set("RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			body := fiber.Map{"retryAfter": res.ResetAt.Unix()}
			for k, v := range exceeded {
				body[k] = v
			}
			retryAfter := int(time.Until(res.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(body)
		}

		return c.Next()
	}
}
