// Package handler holds the Echo handlers: the proxy router, the error
// mapper and the admin endpoints.
package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"silly-cors/internal/auth"
	"silly-cors/internal/cors"
	"silly-cors/internal/middleware"
	"silly-cors/internal/model"
	"silly-cors/internal/resolver"
	"silly-cors/internal/service"
)

// ProxyHandler is the entry point of every proxied request.
type ProxyHandler struct {
	auth      *auth.Authenticator
	resolver  resolver.Resolver
	forwarder *service.Forwarder
	errors    *ErrorMapper
	logger    *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(a *auth.Authenticator, r resolver.Resolver, f *service.Forwarder, em *ErrorMapper, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		auth:      a,
		resolver:  r,
		forwarder: f,
		errors:    em,
		logger:    logger.With("component", "proxy_handler"),
	}
}

// Handle answers preflight requests itself and forwards everything else.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()
	origin := req.Header.Get(echo.HeaderOrigin)

	if req.Method == http.MethodOptions {
		return h.preflight(c, origin)
	}
	if origin == "" {
		return h.errors.Render(c, model.Validation("can i have some of that Origin header, please?", ""))
	}

	if perr := h.auth.Authenticate(req.Header, origin); perr != nil {
		return h.errors.Render(c, perr)
	}

	dest, perr := h.resolver.Resolve(req, origin)
	if perr != nil {
		return h.errors.Render(c, perr)
	}
	c.Set(middleware.ContextKeyDestination, dest.Authority())

	resp, perr := h.forwarder.Forward(&model.ProxyRequest{
		Ctx:           req.Context(),
		Origin:        origin,
		Method:        req.Method,
		Target:        dest.URL,
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
		ProxyScheme:   c.Scheme(),
		ProxyHost:     req.Host,
	})
	if perr != nil {
		return h.errors.Render(c, perr)
	}
	defer func() { _ = resp.Body.Close() }()

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	flush := flushImmediately(resp.Header)
	c.Response().WriteHeader(resp.StatusCode)
	if flush {
		c.Response().Flush()
	}

	// The status is already sent, so a failure mid-stream (client gone,
	// destination reset) leaves a truncated body. Log it and move on.
	if _, err := copyBody(c.Response(), resp.Body, flush); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"host", dest.Authority(),
		)
	}

	return nil
}

// preflight answers an OPTIONS request without contacting any destination.
func (h *ProxyHandler) preflight(c echo.Context, origin string) error {
	if origin == "" {
		return h.errors.Render(c, model.Validation("can i have some of that Origin header, please?", ""))
	}

	cors.Apply(c.Response().Header(), cors.PreflightHeaders(origin))
	return c.NoContent(http.StatusOK)
}

// flushImmediately reports whether body chunks must reach the client as soon
// as they arrive: event streams and bodies of unknown length.
func flushImmediately(h http.Header) bool {
	mediaType, _, _ := mime.ParseMediaType(h.Get(echo.HeaderContentType))
	return mediaType == "text/event-stream" || h.Get(echo.HeaderContentLength) == ""
}

// copyBody streams body into w, flushing after every chunk when flush is set.
func copyBody(w *echo.Response, body io.Reader, flush bool) (int64, error) {
	if !flush {
		return io.Copy(w, body)
	}

	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			nw, werr := w.Write(buf[:n])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			w.Flush()
		}
		if errors.Is(rerr, io.EOF) {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
