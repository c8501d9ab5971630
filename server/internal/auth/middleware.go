package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/statusdeck/statusdeck/server/internal/config"
)

// Realm is announced to browsers in basic mode.
const Realm = "statusdeck"

// Middleware returns an http middleware that enforces cfg on every request
// except those for which skip returns true.
//
// Behaviour:
//   - Mode "" or "none", or a mode whose secret resolves empty: pass-through.
//   - apikey: the named header must equal the key.
//   - bearer: "Authorization: Bearer <token>" must match.
//   - basic: username and password must match; failures carry a
//     WWW-Authenticate challenge so browsers prompt.
//
// A rejected request gets 401 {"error":"unauthorized"} and never reaches the
// handler.
func Middleware(cfg config.AuthConfig, skip func(*http.Request) bool) func(http.Handler) http.Handler {
	check := checker(cfg)
	return func(next http.Handler) http.Handler {
		if check == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if (skip != nil && skip(r)) || check(r) {
				next.ServeHTTP(w, r)
				return
			}
			if cfg.Mode == "basic" {
				w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`", charset="UTF-8"`)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
		})
	}
}

// checker resolves secrets once. A nil result disables checking.
func checker(cfg config.AuthConfig) func(*http.Request) bool {
	switch cfg.Mode {
	case "apikey":
		key := cfg.Key()
		if key == "" {
			return nil
		}
		return func(r *http.Request) bool { return equal(r.Header.Get(cfg.Header), key) }
	case "bearer":
		token := cfg.Token()
		if token == "" {
			return nil
		}
		return func(r *http.Request) bool {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			return ok && equal(got, token)
		}
	case "basic":
		pass := cfg.Password()
		if pass == "" {
			return nil
		}
		return func(r *http.Request) bool {
			u, p, ok := r.BasicAuth()
			// Evaluate both so timing does not reveal which part was wrong.
			userOK, passOK := equal(u, cfg.Username), equal(p, pass)
			return ok && userOK && passOK
		}
	}
	return nil
}

// Enabled reports whether Middleware would check anything for cfg.
func Enabled(cfg config.AuthConfig) bool { return checker(cfg) != nil }

func equal(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
