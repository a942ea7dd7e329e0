// Package auth resolves the acting principal of a request. The pipeline only
// ever sees the resolved principal id; credential checks stay here.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrNoAuth means the request carried no credentials.
	ErrNoAuth = errors.New("no auth")
	// ErrInvalidToken covers malformed, mis-signed or mis-addressed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for tokens past their exp claim.
	ErrTokenExpired = errors.New("token has expired")
)

// Principal is an authenticated actor.
type Principal struct {
	ID string
}

// Authenticator turns a bearer token into a Principal.
type Authenticator interface {
	Authenticate(token string) (Principal, error)
}

// Anonymous accepts every request as the same principal. Used when no
// signing secret is configured.
type Anonymous struct {
	ID string
}

func (a Anonymous) Authenticate(string) (Principal, error) {
	return Principal{ID: a.ID}, nil
}

type contextKeyPrincipal struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal{}, p)
}

// FromContext returns the principal stored by the middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal{}).(Principal)
	return p, ok
}

// OwnerFromContext is the principal id, or "" when unauthenticated.
func OwnerFromContext(ctx context.Context) string {
	p, _ := FromContext(ctx)
	return p.ID
}

// QueryTokenParam is the query parameter read when header auth is not
// possible (EventSource, WebSocket).
const QueryTokenParam = "access_token"

// TokenFromRequest extracts a bearer token from the Authorization header,
// falling back to the access_token query parameter when allowQuery is set.
func TokenFromRequest(r *http.Request, allowQuery bool) string {
	if tok, ok := BearerToken(r.Header.Get("Authorization")); ok {
		return tok
	}
	if allowQuery {
		return r.URL.Query().Get(QueryTokenParam)
	}
	return ""
}

// BearerToken parses an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}
