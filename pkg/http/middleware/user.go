package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	// UserIDHeader is set by the authenticating gateway in front of the service.
	UserIDHeader = "X-User-ID"
	UserIDKey    = "user_id"
)

// RequireUser rejects requests without a gateway-provided user id and stores
// the id on the context under UserIDKey.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid := strings.TrimSpace(c.Request().Header.Get(UserIDHeader))
			if uid == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"status":  http.StatusUnauthorized,
					"message": http.StatusText(http.StatusUnauthorized),
					"data":    UserIDHeader + " header is required",
				})
			}
			c.Set(UserIDKey, uid)
			return next(c)
		}
	}
}

// UserID returns the id stored by RequireUser.
func UserID(c echo.Context) string {
	uid, _ := c.Get(UserIDKey).(string)
	return uid
}
