// Package resolver derives the destination of a proxied request.
//
// Exactly one strategy is active per deployment. HeaderResolver reads the
// destination authority from a request header and keeps the inbound path;
// PathResolver expects the whole destination URL embedded in the path, as
// in GET /https://api.example.com/users?page=2.
//
// The destination scheme is always https regardless of what the client sent.
package resolver

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"silly-cors/internal/config"
	"silly-cors/internal/model"
)

// Destination is a validated absolute destination.
type Destination struct {
	URL *url.URL
}

// Authority returns the host[:port] of the destination.
func (d *Destination) Authority() string {
	return d.URL.Host
}

// RequestURI returns the path and query sent to the destination.
func (d *Destination) RequestURI() string {
	return d.URL.RequestURI()
}

// Resolver derives a Destination from an inbound request.
// Implementations may remove headers they consume from req.
type Resolver interface {
	Resolve(req *http.Request, origin string) (*Destination, *model.ProxyError)
}

// New returns the resolver selected by proxy.strategy.
func New(cfg *config.Config) (Resolver, error) {
	switch cfg.Proxy.Strategy {
	case config.StrategyHeader:
		return NewHeaderResolver(cfg.Proxy.DestinationHeader), nil
	case config.StrategyPath:
		return NewPathResolver(), nil
	default:
		return nil, fmt.Errorf("unknown destination strategy %q", cfg.Proxy.Strategy)
	}
}

// HeaderResolver takes the destination authority from a request header.
type HeaderResolver struct {
	header string
}

// NewHeaderResolver creates a HeaderResolver reading the given header.
func NewHeaderResolver(header string) *HeaderResolver {
	return &HeaderResolver{header: http.CanonicalHeaderKey(header)}
}

// Resolve reads and removes the destination header.
func (r *HeaderResolver) Resolve(req *http.Request, origin string) (*Destination, *model.ProxyError) {
	value := strings.TrimSpace(req.Header.Get(r.header))
	req.Header.Del(r.header)

	if value == "" {
		return nil, model.Validation(fmt.Sprintf("can i have some of that %s header, please?", r.header), origin)
	}
	authority, ok := parseAuthority(value)
	if !ok {
		return nil, model.Validation(fmt.Sprintf("your %s header looks like an invalid domain", r.header), origin)
	}

	return &Destination{URL: &url.URL{
		Scheme:   "https",
		Host:     authority,
		Path:     req.URL.Path,
		RawPath:  req.URL.RawPath,
		RawQuery: req.URL.RawQuery,
	}}, nil
}

// PathResolver takes the destination URL from the request path.
type PathResolver struct{}

// NewPathResolver creates a PathResolver.
func NewPathResolver() *PathResolver {
	return &PathResolver{}
}

// Resolve parses everything after the leading slash as an absolute URL.
func (r *PathResolver) Resolve(req *http.Request, origin string) (*Destination, *model.ProxyError) {
	raw := strings.TrimPrefix(req.URL.RequestURI(), "/")
	if raw == "" {
		return nil, model.Validation("you seem to have forgotten to pass the destination in the path", origin)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, model.Validation("your destination path seems invalid", origin)
	}
	switch u.Scheme {
	case "", "http", "https":
	default:
		return nil, model.Validation(fmt.Sprintf("your destination scheme %q is not http or https", u.Scheme), origin)
	}
	if u.Host == "" {
		return nil, model.Validation("you might have forgotten the host in your destination", origin)
	}
	if u.User != nil {
		return nil, model.Validation("your destination must not carry credentials", origin)
	}
	authority, ok := parseAuthority(u.Host)
	if !ok {
		return nil, model.Validation("your destination host looks like an invalid domain", origin)
	}

	return &Destination{URL: &url.URL{
		Scheme:   "https",
		Host:     authority,
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: u.RawQuery,
	}}, nil
}

// parseAuthority validates s as host[:port].
func parseAuthority(s string) (string, bool) {
	if s == "" || !httpguts.ValidHostHeader(s) || strings.HasSuffix(s, ":") {
		return "", false
	}
	u, err := url.Parse("https://" + s)
	if err != nil || u.Host != s || u.User != nil || u.Hostname() == "" {
		return "", false
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return "", false
		}
	}
	return s, true
}
