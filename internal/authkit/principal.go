package authkit

import (
	"context"

	"github.com/gin-gonic/gin"
)

// PrincipalContextKey is the gin key under which the authenticator stores the principal.
const PrincipalContextKey = "auth_principal"

// Principal is the authenticated subject and role attached to a request.
type Principal struct {
	SubjectID string
	Role      Role
}

type principalContextKey struct{}

// ContextWithPrincipal returns a child context carrying the principal.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the principal attached by the authenticator, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}

// PrincipalFromGin returns the principal for the current gin request, if any.
func PrincipalFromGin(contextGin *gin.Context) (Principal, bool) {
	if value, exists := contextGin.Get(PrincipalContextKey); exists {
		if principal, ok := value.(Principal); ok {
			return principal, true
		}
	}
	return PrincipalFromContext(contextGin.Request.Context())
}
