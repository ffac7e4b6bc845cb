package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// AdminGate protects the fulfillment queue endpoints. Operators present the
// configured token in the X-Admin-Token header.
func AdminGate(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return echo.NewHTTPError(http.StatusForbidden, "admin access not configured")
			}
			presented := c.Request().Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "access denied")
			}
			return next(c)
		}
	}
}
