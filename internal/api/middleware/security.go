package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// Paths whose responses reflect live state and must never be cached.
var noStorePrefixes = []string{"/api", "/suggestions", "/scan", "/apply", "/health"}

// SecurityHeaders sets conservative browser headers for the review UI and
// disables caching of state-bearing responses.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; connect-src 'self' ws: wss:; frame-ancestors 'self'")

			path := c.Request().URL.Path
			for _, prefix := range noStorePrefixes {
				if strings.HasPrefix(path, prefix) {
					h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
					h.Set("Pragma", "no-cache")
					break
				}
			}

			return next(c)
		}
	}
}
