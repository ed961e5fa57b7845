// Package cors builds the permissive CORS header set the proxy attaches to
// every response whose Origin is known.
package cors

import "net/http"

// Header names.
const (
	HeaderAllowCredentials = "Access-Control-Allow-Credentials"
	HeaderAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderAllowMethods     = "Access-Control-Allow-Methods"
	HeaderAllowHeaders     = "Access-Control-Allow-Headers"
)

// AllowedMethods is the fixed Access-Control-Allow-Methods value.
const AllowedMethods = "GET, PUT, POST, DELETE, HEAD, PATCH, OPTIONS"

// Headers returns the CORS headers for origin. The origin is echoed verbatim.
func Headers(origin string) http.Header {
	h := make(http.Header, 3)
	h.Set(HeaderAllowCredentials, "true")
	h.Set(HeaderAllowOrigin, origin)
	h.Set(HeaderAllowMethods, AllowedMethods)
	return h
}

// PreflightHeaders returns Headers(origin) plus a wildcard Allow-Headers.
func PreflightHeaders(origin string) http.Header {
	h := Headers(origin)
	h.Set(HeaderAllowHeaders, "*")
	return h
}

// Apply sets every header of src on dst, replacing existing values.
func Apply(dst, src http.Header) {
	for k, vals := range src {
		dst[k] = append([]string(nil), vals...)
	}
}
