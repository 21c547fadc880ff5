// pkg/middleware/identity.go
package middleware

import (
	"context"

	"realmgate/pkg/token"
)

// local context key type (unique to this file)
type identityCtxKey struct{}

// WithIdentity stores the verified caller claims in context.
func WithIdentity(ctx context.Context, c token.Claims) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, c)
}

// IdentityFrom extracts the verified caller claims placed by the guard.
func IdentityFrom(ctx context.Context) (token.Claims, bool) {
	if v := ctx.Value(identityCtxKey{}); v != nil {
		if c, ok := v.(token.Claims); ok {
			return c, true
		}
	}
	return token.Claims{}, false
}
