package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tsesc/tw-homedog/internal/auth"
)

const apiKeyHeader = "X-API-Key"

// requireAPIKey guards mutating routes. Requests must present the plaintext
// key matching the configured bcrypt hash; with no hash configured every
// mutating request is refused.
func (s *Server) requireAPIKey() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.TrimSpace(s.opts.APIKeyHash) == "" {
				return fail(c, http.StatusServiceUnavailable, "API key auth is not configured", nil)
			}

			key := strings.TrimSpace(c.Request().Header.Get(apiKeyHeader))
			if key == "" || !auth.VerifyAPIKey(key, s.opts.APIKeyHash) {
				return fail(c, http.StatusUnauthorized, "Invalid or missing API key", nil)
			}

			return next(c)
		}
	}
}
