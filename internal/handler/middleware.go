package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/minidrive/minidrive/internal/service"
	"github.com/minidrive/minidrive/pkg/response"
)

// SecurityHeadersMiddleware adds security-related headers to all responses.
func SecurityHeadersMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
		c.Set("Pragma", "no-cache")
		c.Set("Expires", "0")

		return c.Next()
	}
}

// RequestIDMiddleware assigns each request a unique ID for log correlation.
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("X-Request-ID", requestID)
		c.Locals("request_id", requestID)

		return c.Next()
	}
}

// AuthMiddleware validates the bearer session token and stores the caller's
// identity in locals.
func AuthMiddleware(authSvc *service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader == "" {
			return response.Unauthorized(c, "missing authorization token")
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return response.Unauthorized(c, "invalid authorization header format")
		}

		claims, err := authSvc.ValidateToken(parts[1])
		if err != nil {
			RecordAuthFailure("invalid_token")
			return response.Unauthorized(c, "invalid or expired token")
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("is_admin", claims.IsAdmin)

		return c.Next()
	}
}

// AdminMiddleware checks that the authenticated user has admin privileges.
// Must be chained after AuthMiddleware. The admin flag is re-read from the
// database so a demotion takes effect before the token expires.
func AdminMiddleware(authSvc *service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(string)
		if !ok || userID == "" {
			return response.Unauthorized(c, "authentication required")
		}

		user, err := authSvc.GetUserByID(userID)
		if err != nil {
			return response.Unauthorized(c, "user not found")
		}
		if !user.IsAdmin {
			return response.Forbidden(c, "admin access required")
		}

		return c.Next()
	}
}

// BodyLimitMiddleware enforces a per-route body size limit.
func BodyLimitMiddleware(maxBytes int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(c.Body()) > maxBytes {
			return response.TooLarge(c, "request body too large")
		}
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) (string, bool) {
	userID, _ := c.Locals("user_id").(string)
	isAdmin, _ := c.Locals("is_admin").(bool)
	return userID, isAdmin
}
