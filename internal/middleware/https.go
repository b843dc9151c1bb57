// Package middleware holds small, composable HTTP wrappers driven by the
// resolved configuration and runtime directives.
package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// ForceHTTPS wraps h.  When baseURL uses https, a plain-HTTP request for any
// host other than “localhost” gets a 308 Permanent Redirect to the HTTPS
// version of the same URL.  With an http base URL, or one that does not
// parse, every request passes through unchanged.
func ForceHTTPS(baseURL string, h http.Handler) http.Handler {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme != "https" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Already HTTPS or dev host → continue.
		if r.TLS != nil || stripPort(r.Host) == "localhost" {
			h.ServeHTTP(w, r)
			return
		}
		target := "https://" + r.Host + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusPermanentRedirect)
	})
}

// stripPort removes the :port suffix from Host when present.
func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}
