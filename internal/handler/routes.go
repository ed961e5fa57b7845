package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"silly-cors/internal/config"
	"silly-cors/internal/metrics"
)

// RegisterRoutes wires the proxy handler onto the Echo instance. Every path
// and method reaches it: the path is either forwarded as-is or carries the
// destination URL.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler) {
	routes := e.Any("/*", proxy.Handle)

	routed := make(map[string]bool, len(routes))
	for _, r := range routes {
		routed[r.Method] = true
	}
	e.Use(unroutedMethods(routed, proxy.Handle))
}

// unroutedMethods sends methods missing from Echo's routing table (PURGE,
// MKCOL, custom verbs) to h instead of the router's 405 handler. It must be
// the innermost middleware so the rest of the chain still applies.
func unroutedMethods(routed map[string]bool, h echo.HandlerFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !routed[c.Request().Method] {
				return h(c)
			}
			return next(c)
		}
	}
}

// RegisterAdminRoutes wires health, status and metrics endpoints onto the
// admin listener, which is separate from the proxy listener.
func RegisterAdminRoutes(a *Admin, health *HealthHandler, m *metrics.Metrics, cfg *config.Config) {
	a.GET("/healthz", health.Healthz)
	a.GET("/status", health.Status)
	a.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
}
