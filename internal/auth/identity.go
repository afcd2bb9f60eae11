package auth

import (
	"context"

	"github.com/sharevault/backend/internal/models"
)

type ctxKey string

const identityKey ctxKey = "identity"

// WithIdentity stores the resolved user on the context.
func WithIdentity(ctx context.Context, user models.User) context.Context {
	if ctx == nil || user.ID == "" {
		return ctx
	}
	return context.WithValue(ctx, identityKey, user)
}

// IdentityFromContext retrieves the resolved user, if any.
func IdentityFromContext(ctx context.Context) (models.User, bool) {
	if ctx == nil {
		return models.User{}, false
	}
	user, ok := ctx.Value(identityKey).(models.User)
	return user, ok && user.ID != ""
}
