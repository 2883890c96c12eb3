package auth

import (
	"context"

	"github.com/24f2002329/caniedit/internal/models"
)

type ctxKey int

const identityKey ctxKey = iota

// WithIdentity stores a verified identity in a context.
func WithIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the verified identity, if any.
func IdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*models.Identity)
	return id, ok && id != nil
}
