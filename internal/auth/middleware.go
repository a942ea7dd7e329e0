package auth

import (
	"net/http"

	logpkg "github.com/gemdrive/gemdrive/pkg/log"
)

// Middleware rejects requests without a valid token with 401 "No auth" and
// stores the principal on the request context otherwise.
func Middleware(a Authenticator, allowQuery bool, logger logpkg.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.Authenticate(TokenFromRequest(r, allowQuery))
			if err != nil {
				logger.WithContext(r.Context()).Debug("unauthenticated request",
					logpkg.Str("path", r.URL.Path), logpkg.Err(err))
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte("No auth"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
