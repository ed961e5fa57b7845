// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// ProxyRequest is an inbound request that passed authentication and
// destination resolution and is ready to be forwarded.
type ProxyRequest struct {
	Ctx    context.Context
	Origin string
	Method string
	// Target is the absolute destination URL (always https).
	Target        *url.URL
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64

	// ProxyScheme and ProxyHost describe how the client reached the proxy.
	// They are used to route redirects back through it.
	ProxyScheme string
	ProxyHost   string
}

// ProxyResponse represents the destination response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
