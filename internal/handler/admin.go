package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"silly-cors/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// Admin is the Echo instance behind the admin listener.
type Admin struct {
	*echo.Echo
}

// HealthHandler serves health and status endpoints on the admin listener.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information. The secret itself is never exposed.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":           "ok",
		"version":          string(h.version),
		"strategy":         h.cfg.Proxy.Strategy,
		"auth_enabled":     h.cfg.Proxy.Secret != "",
		"rewrite_location": h.cfg.Proxy.RewriteLocation,
	})
}
