package security

import (
	"fmt"
	"net/http"
)

// HeadersConfig holds security and CORS header configuration
type HeadersConfig struct {
	// Content Security Policy
	CSP string

	// HSTS settings
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	CrossOriginResource string

	// CORS; empty AllowOrigin disables CORS headers
	AllowOrigin  string
	AllowHeaders string
	AllowMethods string
}

// DefaultHeadersConfig returns defaults for a JSON API.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000, // 1 year
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "no-referrer",
		CrossOriginResource:   "same-origin",
		AllowHeaders:          "Content-Type,Authorization",
		AllowMethods:          "GET,PUT,POST,DELETE,OPTIONS",
	}
}

// WithCORS returns a copy of c that allows origin.
func (c HeadersConfig) WithCORS(origin string) HeadersConfig {
	c.AllowOrigin = origin
	if origin != "" {
		// Browsers must be able to read cross-origin JSON responses.
		c.CrossOriginResource = "cross-origin"
	}
	return c
}

// HeadersMiddleware applies security headers to responses
type HeadersMiddleware struct {
	config HeadersConfig
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	return &HeadersMiddleware{config: config}
}

// Middleware returns the HTTP middleware function. CORS preflight requests
// are answered here and never reach next.
func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.applyHeaders(w, r)

		if h.config.AllowOrigin != "" && r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *HeadersMiddleware) applyHeaders(w http.ResponseWriter, r *http.Request) {
	headers := w.Header()

	headers.Set("X-Content-Type-Options", h.config.XContentTypeOptions)
	headers.Set("X-Frame-Options", h.config.XFrameOptions)
	if h.config.CSP != "" {
		headers.Set("Content-Security-Policy", h.config.CSP)
	}
	headers.Set("Referrer-Policy", h.config.ReferrerPolicy)
	headers.Set("Cross-Origin-Resource-Policy", h.config.CrossOriginResource)

	if r.TLS != nil && h.config.HSTSMaxAge > 0 {
		hstsValue := fmt.Sprintf("max-age=%d", h.config.HSTSMaxAge)
		if h.config.HSTSIncludeSubdomains {
			hstsValue += "; includeSubDomains"
		}
		headers.Set("Strict-Transport-Security", hstsValue)
	}

	if h.config.AllowOrigin != "" {
		headers.Set("Access-Control-Allow-Origin", h.config.AllowOrigin)
		headers.Set("Access-Control-Allow-Headers", h.config.AllowHeaders)
		headers.Set("Access-Control-Allow-Methods", h.config.AllowMethods)
		if h.config.AllowOrigin != "*" {
			headers.Add("Vary", "Origin")
		}
	}
}
