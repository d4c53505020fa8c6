package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"

	"crossfeed/pkg/crypto"
)

// debugUsername and debugPasswordHash protect the pprof/debug surface.
// debugPasswordHash is a bcrypt hash (DEBUG_PASSWORD_HASH), not a
// plaintext secret, so a leaked environment dump doesn't hand out the
// password directly.
var (
	debugUsername     = os.Getenv("DEBUG_USERNAME")
	debugPasswordHash = os.Getenv("DEBUG_PASSWORD_HASH")
)

// DebugAuth protects /debug/pprof/* with HTTP Basic Auth. If the
// credentials aren't configured, access is allowed only when ENV is
// unset or "development"; otherwise the endpoints are disabled.
func DebugAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if debugUsername == "" || debugPasswordHash == "" {
			if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Debug endpoints disabled. Set DEBUG_USERNAME and DEBUG_PASSWORD_HASH.", http.StatusForbidden)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(debugUsername)) == 1
		passMatch := crypto.CheckPasswordMatch(pass, debugPasswordHash)

		if !userMatch || !passMatch {
			w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
