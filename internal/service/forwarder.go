// Package service implements the core proxy forwarding logic.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"silly-cors/internal/config"
	"silly-cors/internal/cors"
	"silly-cors/internal/middleware"
	"silly-cors/internal/model"
)

// Upstream sends a request to its destination. *client.UpstreamClient
// implements it; tests substitute fakes.
type Upstream interface {
	Do(req *http.Request) (*model.ProxyResponse, error)
}

// Forwarder sends resolved requests through the shared upstream client and
// decorates the responses with CORS headers.
type Forwarder struct {
	upstream        Upstream
	rewriteLocation bool
	logger          *slog.Logger
}

// NewForwarder creates a Forwarder.
func NewForwarder(u Upstream, cfg *config.Config, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		upstream:        u,
		rewriteLocation: cfg.Proxy.RewriteLocation,
		logger:          logger.With("component", "forwarder"),
	}
}

// Forward sends pr to its destination and returns the response.
// The caller is responsible for closing the response body.
//
// The outbound request carries pr.Ctx, so a client disconnect cancels the
// destination call. No other deadline is applied here.
func (f *Forwarder) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, *model.ProxyError) {
	req, err := http.NewRequestWithContext(pr.Ctx, pr.Method, pr.Target.String(), pr.Body)
	if err != nil {
		return nil, model.Internal(fmt.Errorf("build upstream request: %w", err))
	}
	req.Header = pr.Header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.Host = pr.Target.Host
	req.ContentLength = pr.ContentLength
	if pr.Body == nil || pr.Body == http.NoBody {
		req.Body = http.NoBody
		req.ContentLength = 0
	}

	f.logger.Debug("forwarding request",
		"method", pr.Method,
		"host", pr.Target.Host,
		"path", pr.Target.Path,
	)

	resp, err := f.upstream.Do(req)
	if err != nil {
		if errors.Is(err, model.ErrClientGone) {
			f.logger.Debug("request abandoned by client", "host", pr.Target.Host)
		}
		return nil, model.Upstream(err, pr.Origin)
	}

	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	middleware.RemoveHopByHop(resp.Header)
	cors.Apply(resp.Header, cors.Headers(pr.Origin))

	if f.rewriteLocation {
		if loc := resp.Header.Get("Location"); loc != "" {
			rewritten, err := rewriteLocation(loc, pr)
			if err != nil {
				f.logger.Warn("leaving unparsable Location untouched", "err", err)
			} else {
				resp.Header.Set("Location", rewritten)
			}
		}
	}

	return resp, nil
}

// rewriteLocation resolves loc against the destination and points it back
// through the proxy: https://dest/a -> <proxy>/https://dest/a.
func rewriteLocation(loc string, pr *model.ProxyRequest) (string, error) {
	ref, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("parse Location %q: %w", loc, err)
	}
	abs := pr.Target.ResolveReference(ref)

	scheme := pr.ProxyScheme
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, pr.ProxyHost, abs.String()), nil
}
