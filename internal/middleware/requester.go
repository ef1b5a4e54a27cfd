package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const requesterKey = "requester_id"

// RequesterMiddleware resolves the caller identity from the X-Requester-Id
// header. Identity proof (jwt, session) is a concern of the edge in front of
// this service; here the header is trusted and only required to be present.
func RequesterMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requesterID := c.Request().Header.Get("X-Requester-Id")
			if requesterID == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "missing X-Requester-Id header")
			}
			c.Set(requesterKey, requesterID)
			return next(c)
		}
	}
}

func RequesterID(c echo.Context) string {
	requesterID, _ := c.Get(requesterKey).(string)
	return requesterID
}
