package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"allthatstax/internal/logging"
)

// authorize wraps next with bearer token checks. An empty token disables
// authentication. Websocket clients cannot set headers from a browser, so the
// stream endpoint also accepts the token as an access_token query parameter.
func (s *apiServer) authorize(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	want := []byte(s.token)
	return func(w http.ResponseWriter, r *http.Request) {
		given, ok := bearerToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(given), want) != 1 {
			s.logger.Debug("api request rejected",
				logging.String("path", r.URL.Path),
				logging.String("remote", r.RemoteAddr),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="allthatstax"`)
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, value, found := strings.Cut(auth, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return "", false
		}
		return strings.TrimSpace(value), true
	}
	if r.URL.Path == "/api/fetch/stream" {
		if value := r.URL.Query().Get("access_token"); value != "" {
			return value, true
		}
	}
	return "", false
}
