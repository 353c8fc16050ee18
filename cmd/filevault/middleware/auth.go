package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// OwnerIDKey is the echo context key carrying the resolved owner id
const OwnerIDKey = "owner_id"

// RequireOwnerID extracts the UserId header and stores it in the request
// context. Every vault route needs a resolved owner; requests without one
// are rejected before any core logic runs.
func RequireOwnerID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ownerID := c.Request().Header.Get("UserId")
			if ownerID == "" {
				return c.JSON(http.StatusForbidden, map[string]interface{}{
					"detail": "Missing required UserId header.",
				})
			}

			c.Set(OwnerIDKey, ownerID)
			return next(c)
		}
	}
}

// GetOwnerID retrieves the owner id from the request context.
// Returns empty string if not set.
func GetOwnerID(c echo.Context) string {
	ownerID := c.Get(OwnerIDKey)
	if ownerID == nil {
		return ""
	}
	return ownerID.(string)
}
