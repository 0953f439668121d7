package access

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/kontor/core/logger"
)

// TokenMiddlewareBuilder is a helper builder for the static token middleware
type TokenMiddlewareBuilder struct {
	// Tokens is a mapping from a bearer token to an actual authorization
	Tokens map[string]Authorization
}

// NewTokenMiddleware returns a middleware handler for a static token table.
//
// The key for the tokens map is the bearer token passed with the request.
//
// Example: if you specify the token
//
//	"please": Authorization{Roles: []string{"admin"}}
//
// then any request with an authorization bearer token consisting of the single
// magic word "please" will be authorized with the admin role.
//
// With curl, use -H 'Authorization: Bearer please' or pass a cookie with
// -b 'Kontor-JWT=please'
//
// This middleware is meant for development setups and tests. Do not configure
// static tokens in production.
func NewTokenMiddleware(tmb *TokenMiddlewareBuilder) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := AuthorizationFromContext(r.Context())
			if auth != nil { // already authorized?
				h.ServeHTTP(w, r)
				return
			}
			tokenString := bearerToken(r)
			if len(tokenString) == 0 {
				h.ServeHTTP(w, r)
				return
			}
			tokenAuth, ok := tmb.Tokens[tokenString]
			if !ok {
				h.ServeHTTP(w, r) // not one of ours, the next middleware may know it
				return
			}
			ctx := r.Context()
			if len(tokenAuth.Identity) > 0 {
				ctx = ContextWithIdentity(ctx, tokenAuth.Identity)
				ctx, _ = logger.ContextWithLoggerIdentity(ctx, tokenAuth.Identity)
			}
			ctx = tokenAuth.ContextWithAuthorization(ctx)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
