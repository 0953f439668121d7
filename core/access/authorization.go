/*Package access provides utilities for access control
 */
package access

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/kontor/core"
	"github.com/relabs-tech/kontor/core/logger"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

// the predefined context keys
const (
	contextKeyAuthorization contextKey = "_authorization_"
	contextKeyIdentity      contextKey = "_identity_"
)

/*Authorization is a context object which stores authorization information
for the user who is currently logged in.

An authorization carries a list of roles, the identity of the caller and -
for callers that belong to exactly one company - the identifier of that
company. Resource permits refer to roles; the company identifier is used
for company scoping of the employee and department resources.

Authorizations are added to a request context with

	ctx = auth.ContextWithAuthorization(ctx)

and retrieved with

	auth := AuthorizationFromContext(ctx)

Authorization objects are added to the context by different middleware
implementations, depending on authorization tokens in the HTTP request.
Kontor supports JWT bearer tokens and - for development and tests - a
static token table.
*/
type Authorization struct {
	Identity   string            `json:"identity,omitempty"`
	Roles      []string          `json:"roles"`
	CompanyID  int64             `json:"company_id,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// HasRole returns true if the authorization contains the requested role;
// otherwise it returns false.
func (a *Authorization) HasRole(role string) bool {
	if a == nil || a.Roles == nil {
		return false
	}
	for _, hasRole := range a.Roles {
		if role == hasRole {
			return true
		}
	}
	return false
}

// Property returns the value for the requested property; if the
// property does not exist, it returns an empty string and false.
func (a *Authorization) Property(name string) (string, bool) {
	if a == nil || a.Properties == nil {
		return "", false
	}
	value, ok := a.Properties[name]
	return value, ok
}

// IsAuthorized returns true if the authorization is authorized for the
// requested operation according to the passed permits.
//
// Permits are a map from role to permitted operations, as specified in the
// facade configuration. The role "everybody" stands for any authenticated
// caller. The "admin" role is always authorized. A nil authorization is
// never authorized for anything.
func (a *Authorization) IsAuthorized(operation core.Operation, permits map[string][]core.Operation) bool {
	if a == nil {
		return false
	}
	if a.HasRole("admin") {
		return true
	}
	roles := append([]string{"everybody"}, a.Roles...)
	for _, role := range roles {
		for _, permitted := range permits[role] {
			if permitted == operation {
				return true
			}
		}
	}
	return false
}

// ContextWithAuthorization returns a new context with this authorization added to it
func (a *Authorization) ContextWithAuthorization(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKeyAuthorization, a)
}

// AuthorizationFromContext retrieves an authorization from the context
func AuthorizationFromContext(ctx context.Context) *Authorization {
	a, ok := ctx.Value(contextKeyAuthorization).(*Authorization)
	if ok {
		return a
	}
	return nil
}

// ContextWithIdentity returns a new context with the caller's identity added to it
func ContextWithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}

// IdentityFromContext retrieves the caller's identity from the context
func IdentityFromContext(ctx context.Context) string {
	identity, _ := ctx.Value(contextKeyIdentity).(string)
	return identity
}

// HandleAuthorizationRoute adds a route /authorization GET to the router
//
// The route returns the current authorization for the provided bearer token.
func HandleAuthorizationRoute(router *mux.Router) {
	logger.Default().Debugln("authorization")
	logger.Default().Debugln("  handle route: /authorization GET")
	router.HandleFunc("/authorization", func(w http.ResponseWriter, r *http.Request) {
		auth := AuthorizationFromContext(r.Context())
		if auth == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		jsonData, _ := json.MarshalIndent(auth, "", " ")
		w.Header().Set("Content-Type", "application/json")
		w.Write(jsonData)
	}).Methods(http.MethodGet)
}
