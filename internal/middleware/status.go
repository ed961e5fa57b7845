package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ContextKeyDestination is the echo.Context key under which the proxy
// handler stores the resolved destination authority.
const ContextKeyDestination = "silly_cors.destination"

// responseStatus returns the status the client will see. An error returned
// by the chain has not been rendered yet; Echo's error handler writes it
// after the middleware unwinds.
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func destination(c echo.Context) string {
	s, _ := c.Get(ContextKeyDestination).(string)
	return s
}
