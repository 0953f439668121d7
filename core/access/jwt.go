// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/kontor/core/logger"
)

// JwtMiddlewareBuilder is a helper builder for the JWT middleware
type JwtMiddlewareBuilder struct {
	// PublicKeyPEM is the PEM encoded RSA public key the tokens are verified with
	PublicKeyPEM string
	// Issuer is the accepted issuer for the token
	Issuer string
}

type jwtClaims struct {
	EMail     string   `json:"email"`
	Roles     []string `json:"roles"`
	CompanyID int64    `json:"company_id"`
	jwt.RegisteredClaims
}

// NewJwtMiddleware returns a middleware handler to validate JWT bearer tokens.
//
// Tokens are accepted as "Authorization: Bearer" header or as "Kontor-JWT" cookie.
// The token carries the caller's roles and company as custom claims; the caller's
// identity is the combination of issuer and email, separated by the pipe symbol '|'.
//
// This is a final handler with regards to the bearer token. It will return
// http.StatusUnauthorized when a token is available but cannot be verified.
func NewJwtMiddleware(jmb *JwtMiddlewareBuilder) mux.MiddlewareFunc {

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(jmb.PublicKeyPEM))
	if err != nil {
		panic(err)
	}

	authCache := newAuthorizationCache()

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := AuthorizationFromContext(r.Context())
			if auth != nil { // already authorized?
				h.ServeHTTP(w, r)
				return
			}

			tokenString := bearerToken(r)
			if len(tokenString) == 0 {
				h.ServeHTTP(w, r) // no token no auth, moving on
				return
			}

			if auth = authCache.read(tokenString); auth == nil {
				claims := jwtClaims{}
				token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
					return publicKey, nil
				})
				if err != nil || !token.Valid || claims.Issuer != jmb.Issuer {
					logger.FromContext(r.Context()).WithError(err).Infoln("rejected bearer token")
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
				auth = &Authorization{
					Identity:  claims.Issuer + "|" + claims.EMail,
					Roles:     claims.Roles,
					CompanyID: claims.CompanyID,
				}
				authCache.write(tokenString, auth)
			}

			ctx := ContextWithIdentity(r.Context(), auth.Identity)
			ctx, _ = logger.ContextWithLoggerIdentity(ctx, auth.Identity)
			ctx = auth.ContextWithAuthorization(ctx)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	bearer := r.Header.Get("Authorization")
	if len(bearer) > 0 && bearer != "null" {
		if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
			return bearer[7:]
		}
		return bearer
	}
	if cookie, _ := r.Cookie("Kontor-JWT"); cookie != nil {
		return cookie.Value
	}
	return ""
}

// authorizationCache is an in-memory cache for authorizations. The purpose of
// the cache is to avoid re-verifying the token signature for every single request.
type authorizationCache struct {
	mutex sync.RWMutex
	cache map[string]*Authorization
}

func newAuthorizationCache() *authorizationCache {
	return &authorizationCache{cache: make(map[string]*Authorization)}
}

// read returns an authorization from in-process cache.
// Token should be the temporary token the authorization was derived from.
// This function is go-routine safe
func (a *authorizationCache) read(token string) *Authorization {
	a.mutex.RLock()
	auth, ok := a.cache[token]
	a.mutex.RUnlock()
	if ok {
		return auth
	}
	return nil
}

// write stores an authorization in the in-memory cache.
// This function is go-routine safe
func (a *authorizationCache) write(token string, auth *Authorization) {
	a.mutex.Lock()
	a.cache[token] = auth
	a.mutex.Unlock()
}
