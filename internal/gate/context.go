package gate

import (
	"context"

	"github.com/opsdeck/platform/internal/domain"
)

type contextKey string

const identityKey contextKey = "gate_identity"

// WithIdentity attaches the verified identity to the request context.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext extracts the verified identity, if any.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}
