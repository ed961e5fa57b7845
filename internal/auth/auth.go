// Package auth gates the proxy behind an optional shared secret.
package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"silly-cors/internal/config"
	"silly-cors/internal/model"
)

// Authenticator checks the per-request secret header against the configured secret.
type Authenticator struct {
	secret []byte
	header string
}

// New creates an Authenticator from the proxy config. An empty secret
// disables authentication.
func New(cfg *config.Config) *Authenticator {
	a := &Authenticator{header: http.CanonicalHeaderKey(cfg.Proxy.SecretHeader)}
	if cfg.Proxy.Secret != "" {
		a.secret = []byte(cfg.Proxy.Secret)
	}
	return a
}

// Enabled reports whether a secret is configured.
func (a *Authenticator) Enabled() bool {
	return a.secret != nil
}

// Authenticate removes the secret header from header and verifies it.
// The header is stripped even when authentication is disabled so it never
// reaches the destination.
func (a *Authenticator) Authenticate(header http.Header, origin string) *model.ProxyError {
	vals, present := header[a.header]
	header.Del(a.header)

	if a.secret == nil {
		return nil
	}
	if !present || len(vals) == 0 {
		return model.Unauthorized(fmt.Sprintf("sorry, but you need a %s header", a.header), origin)
	}
	if subtle.ConstantTimeCompare([]byte(vals[0]), a.secret) != 1 {
		return model.Unauthorized(fmt.Sprintf("sorry, but you need to know the %s to use this proxy", a.header), origin)
	}
	return nil
}
