package signal

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
)

// newOriginChecker accepts a request whose Origin host matches one of the
// patterns (path.Match syntax, e.g. "localhost:*"). "*" allows any origin.
// With no patterns only same-host origins pass. Requests without an Origin
// header come from non-browser clients and are allowed.
func newOriginChecker(patterns []string) func(*http.Request) bool {
	normalized := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, err := path.Match(p, ""); err != nil {
			log.Warn().Str("module", "signal").Str("pattern", p).Msg("ignoring invalid origin pattern")
			continue
		}
		normalized = append(normalized, p)
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			log.Warn().Str("module", "signal").Str("origin", origin).Msg("blocked malformed origin")
			return false
		}
		host := strings.ToLower(u.Host)
		if strings.EqualFold(host, r.Host) {
			return true
		}
		for _, p := range normalized {
			if ok, _ := path.Match(p, host); ok {
				return true
			}
		}
		log.Warn().Str("module", "signal").Str("origin", origin).Msg("blocked disallowed origin")
		return false
	}
}
