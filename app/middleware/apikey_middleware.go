// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"crypto/subtle"

	"github.com/citystash/pickup-sms/app/dto"
	"github.com/citystash/pickup-sms/config"
	"github.com/gofiber/fiber/v3"
)

// APIKeyMiddleware guards the operator API with a static key. When no keys
// are configured the guard is disabled, which is the expected state for
// local development.
type APIKeyMiddleware struct {
	header string
	keys   []string
}

// NewAPIKeyMiddleware creates a new API key middleware from security config
func NewAPIKeyMiddleware(cfg *config.SecurityConfig) *APIKeyMiddleware {
	return &APIKeyMiddleware{
		header: cfg.APIKeyHeader,
		keys:   cfg.AllowedAPIKeys,
	}
}

// Require is the middleware function that validates the API key header
func (m *APIKeyMiddleware) Require() fiber.Handler {
	return func(c fiber.Ctx) error {
		if len(m.keys) == 0 {
			return c.Next()
		}

		presented := c.Get(m.header)
		if presented == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "API key is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_API_KEY",
				},
			})
		}

		for _, key := range m.keys {
			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Invalid API key",
			Error: dto.ErrorDetail{
				Code: "INVALID_API_KEY",
			},
		})
	}
}
