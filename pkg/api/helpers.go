package api

import (
	"encoding/json"
	"net/http"

	"github.com/octopus-bim/octopus/pkg/auth/principal"
	"github.com/octopus-bim/octopus/pkg/auth/scope"
	"github.com/octopus-bim/octopus/pkg/errtypes"
)

// currentPrincipal returns the request's authenticated caller. Middleware
// already guarantees one is present; a miss here means a route was
// registered outside the authenticated subtree, a wiring bug rather than
// a client error.
func currentPrincipal(r *http.Request) (*principal.Principal, error) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		return nil, errtypes.Unauthorized("no principal in context")
	}
	return p, nil
}

// requireScope gates the capability the access token grants, orthogonal
// to rbac's resource-level role gate: a handler composes both, per
// principal.allScopes (every scope for a development-mode caller) and
// per the token's scp claim for an oauth2-issued one.
func requireScope(p *principal.Principal, want string) error {
	if !scope.RequireAny(p.Scopes, want) {
		return errtypes.Forbidden("scope " + want + " required")
	}
	return nil
}

// decodeJSON reads and validates a JSON request body into dst.
func decodeJSON(r *http.Request, validate bodyValidator, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errtypes.Validation("malformed request body: " + err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		return errtypes.Validation(err.Error())
	}
	return nil
}

// bodyValidator is the narrow subset of *validator.Validate used above,
// kept as an interface so decodeJSON doesn't need to import
// go-playground/validator directly.
type bodyValidator interface {
	Struct(interface{}) error
}
