package security

import (
	"net/http"
)

// HeadersConfig lists the response headers applied to every API answer.
// Empty values are not sent.
type HeadersConfig struct {
	ContentTypeOptions string
	FrameOptions       string
	CSP                string
	ReferrerPolicy     string
	CacheControl       string
	CrossOriginPolicy  string
}

// DefaultHeadersConfig returns headers suited to a JSON-only API.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		ContentTypeOptions: "nosniff",
		FrameOptions:       "DENY",
		CSP:                "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:     "no-referrer",
		CacheControl:       "no-store",
		CrossOriginPolicy:  "same-origin",
	}
}

// HeadersMiddleware applies security headers to responses
type HeadersMiddleware struct {
	config HeadersConfig
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	return &HeadersMiddleware{config: config}
}

// Middleware returns the HTTP middleware function
func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.applyHeaders(w.Header())
		next.ServeHTTP(w, r)
	})
}

func (h *HeadersMiddleware) applyHeaders(headers http.Header) {
	set := func(name, value string) {
		if value != "" {
			headers.Set(name, value)
		}
	}
	set("X-Content-Type-Options", h.config.ContentTypeOptions)
	set("X-Frame-Options", h.config.FrameOptions)
	set("Content-Security-Policy", h.config.CSP)
	set("Referrer-Policy", h.config.ReferrerPolicy)
	set("Cache-Control", h.config.CacheControl)
	set("Cross-Origin-Resource-Policy", h.config.CrossOriginPolicy)
}
