package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"silly-cors/internal/config"
	"silly-cors/internal/cors"
	"silly-cors/internal/metrics"
	"silly-cors/internal/model"
)

// HeaderErrorMarker flags responses synthesized by the proxy itself, as
// opposed to error statuses returned by the destination.
const HeaderErrorMarker = "X-Silly-Error"

// errorBodyPrefix starts every error body.
const errorBodyPrefix = "Silly error: "

// ErrorMapper is the single place where failures become HTTP responses.
type ErrorMapper struct {
	marker  bool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewErrorMapper creates an ErrorMapper.
// The metrics parameter is optional; pass nil to disable error metrics.
func NewErrorMapper(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ErrorMapper {
	return &ErrorMapper{
		marker:  cfg.Proxy.ErrorMarker,
		logger:  logger.With("component", "error_mapper"),
		metrics: m,
	}
}

// Render writes perr as a plain-text response. CORS headers are attached
// when the error carries an Origin.
func (m *ErrorMapper) Render(c echo.Context, perr *model.ProxyError) error {
	req := c.Request()
	if perr.IsInternal() {
		m.logger.Error("internal error",
			"err", perr.Err,
			"method", req.Method,
			"path", req.URL.Path,
		)
	} else {
		m.logger.Debug("request rejected",
			"status", perr.Status,
			"message", perr.Message,
			"path", req.URL.Path,
		)
	}

	if c.Response().Committed {
		// Status already sent (e.g. failure while streaming); nothing left to render.
		return nil
	}

	h := c.Response().Header()
	if perr.Origin != "" {
		cors.Apply(h, cors.Headers(perr.Origin))
	}
	if m.marker {
		h.Set(HeaderErrorMarker, "true")
	}
	if m.metrics != nil {
		m.metrics.ErrorResponses.WithLabelValues(strconv.Itoa(perr.Status)).Inc()
	}

	return c.String(perr.Status, errorBodyPrefix+perr.Message)
}

// HandleHTTPError is installed as Echo's HTTPErrorHandler so failures raised
// outside the proxy handler (body limit, recovered panics, unknown routes)
// are rendered the same way.
func (m *ErrorMapper) HandleHTTPError(err error, c echo.Context) {
	var perr *model.ProxyError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &perr):
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		perr = model.WithStatus(he.Code, msg, c.Request().Header.Get(echo.HeaderOrigin))
	default:
		perr = model.Internal(err)
	}

	if rerr := m.Render(c, perr); rerr != nil {
		m.logger.Error("writing error response", "err", rerr)
	}
}
