package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"silly-cors/internal/auth"
	"silly-cors/internal/client"
	"silly-cors/internal/config"
	"silly-cors/internal/handler"
	"silly-cors/internal/metrics"
	"silly-cors/internal/middleware"
	"silly-cors/internal/resolver"
	"silly-cors/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("silly-cors"),
		kong.Description("Reverse proxy that adds permissive CORS headers to any HTTPS destination."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			fx.Annotate(client.NewUpstreamClient, fx.As(new(service.Upstream))),
			auth.New,
			resolver.New,
			service.NewForwarder,
			handler.NewErrorMapper,
			handler.NewProxyHandler,
			handler.NewHealthHandler,
			newEcho,
			newAdmin,
		),
		fx.Invoke(handler.RegisterRoutes, registerAdmin, warnConfigPermissions, startServer, startAdmin),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, em *handler.ErrorMapper) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = em.HandleHTTPError

	e.Server.ReadTimeout = 30 * time.Second
	// Streamed destination bodies may take arbitrarily long; the upstream
	// client timeout bounds them instead.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logger))
	if cfg.Metrics.Enabled {
		e.Use(middleware.MetricsMiddleware(m))
	}
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.StripHopByHop())

	return e
}

func newAdmin() *handler.Admin {
	a := &handler.Admin{Echo: echo.New()}
	a.HideBanner = true
	a.HidePort = true
	a.Server.ReadHeaderTimeout = 10 * time.Second
	a.Use(echomw.Recover())
	return a
}

func registerAdmin(a *handler.Admin, health *handler.HealthHandler, m *metrics.Metrics, cfg *config.Config) {
	if !cfg.Metrics.Enabled {
		return
	}
	handler.RegisterAdminRoutes(a, health, m, cfg)
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, a *auth.Authenticator, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server",
				"addr", addr,
				"strategy", cfg.Proxy.Strategy,
				"auth_enabled", a.Enabled(),
				"version", version,
			)
			go func() {
				if err := e.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}

func startAdmin(lc fx.Lifecycle, a *handler.Admin, cfg *config.Config, logger *slog.Logger) {
	if !cfg.Metrics.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ln, err := net.Listen("tcp", cfg.Metrics.Addr)
			if err != nil {
				return fmt.Errorf("bind admin %s: %w", cfg.Metrics.Addr, err)
			}
			logger.Info("starting admin server", "addr", cfg.Metrics.Addr, "metrics_path", cfg.Metrics.Path)
			go func() {
				if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("admin server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down admin server")
			return a.Shutdown(ctx)
		},
	})
}
