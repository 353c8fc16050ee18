package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/filevault/filevault/common/ratelimit"
)

// OwnerRateLimitMiddleware throttles requests per owner. It reads the owner
// id placed in the echo context by the auth middleware; requests without an
// owner are left for the auth layer to reject. Redis failures let the
// request through (fail open for availability).
func OwnerRateLimitMiddleware(limiter *ratelimit.Limiter, limit int64, windowSec int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ownerID, ok := c.Get("owner_id").(string)
			if !ok || ownerID == "" {
				return next(c)
			}

			result, err := limiter.CheckOwner(c.Request().Context(), ownerID, limit, windowSec)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", result.RetryAfterSeconds))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"detail": "Call Limit Reached",
					"details": map[string]interface{}{
						"limit":               result.Limit,
						"window_seconds":      windowSec,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
