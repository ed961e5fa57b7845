// Package client provides the shared, pooled HTTP client used to reach destinations.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"silly-cors/internal/config"
	"silly-cors/internal/metrics"
	"silly-cors/internal/model"
)

// UpstreamClient sends rewritten requests to their destinations.
// A single instance is shared by all in-flight requests; connection reuse
// is handled by the underlying transport.
type UpstreamClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with connection pooling.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return NewWithHTTPClient(&http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
	}, logger, m)
}

// NewWithHTTPClient wraps a copy of an existing *http.Client, e.g. the client
// of an httptest TLS server. The copy shares hc's transport and never follows
// redirects: they are returned to the browser.
func NewWithHTTPClient(hc *http.Client, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	c := *hc
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &UpstreamClient{
		httpClient: &c,
		logger:     logger.With("component", "upstream_client"),
		metrics:    m,
	}
}

// Do sends req to its destination and returns the raw response. The caller
// is responsible for closing the response body.
//
// Transport failures are counted by reason. When the client disconnected
// before the destination answered, the returned error wraps
// model.ErrClientGone.
func (c *UpstreamClient) Do(req *http.Request) (*model.ProxyResponse, error) {
	host := req.URL.Host
	method := metrics.NormalizeMethod(req.Method)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	duration := time.Since(start).Seconds()

	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
	}

	if err != nil {
		reason := failureReason(req.Context(), err)
		if c.metrics != nil {
			c.metrics.UpstreamFailures.WithLabelValues(reason).Inc()
		}
		if reason == metrics.FailureCanceled {
			c.logger.Debug("client went away before destination answered", "host", host)
			return nil, fmt.Errorf("%s %s: %w: %w", req.Method, host, model.ErrClientGone, err)
		}
		c.logger.Warn("destination unreachable",
			"host", host,
			"reason", reason,
			"err", err,
		)
		return nil, fmt.Errorf("%s %s: %w", req.Method, host, err)
	}

	c.logger.Debug("destination answered",
		"host", host,
		"status", resp.StatusCode,
		"duration_ms", int64(duration*1000),
	)
	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// failureReason classifies a transport error for the failures metric.
// Destination hosts are unbounded and never used as labels.
func failureReason(ctx context.Context, err error) string {
	var (
		netErr    net.Error
		dnsErr    *net.DNSError
		certErr   *tls.CertificateVerificationError
		unknownCA x509.UnknownAuthorityError
		hostErr   x509.HostnameError
		recordErr tls.RecordHeaderError
		opErr     *net.OpError
	)
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return metrics.FailureCanceled
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return metrics.FailureTimeout
	case errors.As(err, &dnsErr):
		return metrics.FailureDNS
	case errors.As(err, &certErr), errors.As(err, &unknownCA),
		errors.As(err, &hostErr), errors.As(err, &recordErr):
		return metrics.FailureTLS
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return metrics.FailureConnect
	default:
		return metrics.FailureOther
	}
}
