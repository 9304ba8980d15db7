package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// RequireSameOrigin rejects state-changing requests whose Origin (or, when
// absent, Referer) is not this host. Requests carrying neither are rejected.
func RequireSameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		source := strings.TrimSpace(r.Header.Get("Origin"))
		if source == "" {
			source = strings.TrimSpace(r.Referer())
		}
		if !sameOrigin(source, r) {
			log.Debug().Str("source", source).Str("host", r.Host).Msg("cross-origin request rejected")
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sameOrigin(rawURL string, r *http.Request) bool {
	if rawURL == "" || rawURL == "null" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	if !strings.EqualFold(parsed.Host, r.Host) {
		return false
	}
	return strings.EqualFold(parsed.Scheme, requestScheme(r))
}

func requestScheme(r *http.Request) string {
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		parts := strings.Split(proto, ",")
		return strings.ToLower(strings.TrimSpace(parts[0]))
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
