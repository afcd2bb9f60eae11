package auth

import (
	"context"
	"errors"

	"github.com/sharevault/backend/internal/models"
)

// UserLookup loads the identity a verified credential refers to.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// Resolution is the outcome of resolving a presented credential. When the
// credential was present but unusable, ClearCredential instructs the caller to
// discard it so the client stops sending a stale token.
type Resolution struct {
	User            models.User
	Authenticated   bool
	ClearCredential bool
}

// Resolver turns a presented bearer credential into an identity, or into "no
// identity". It never fails the request itself: every verification failure
// collapses to an unauthenticated resolution. Whether that outcome aborts the
// request is the caller's policy, not the resolver's.
type Resolver struct {
	codec *TokenCodec
	users UserLookup
}

// NewResolver constructs a Resolver from the codec and user lookup.
func NewResolver(codec *TokenCodec, users UserLookup) *Resolver {
	if codec == nil || users == nil {
		panic("auth: resolver requires a codec and a user lookup")
	}
	return &Resolver{codec: codec, users: users}
}

// Resolve verifies the presented token and loads the referenced user. An empty
// token resolves to no identity without a clear instruction; a token that fails
// verification, or whose subject no longer exists, resolves to no identity with
// ClearCredential set.
func (r *Resolver) Resolve(ctx context.Context, token string) Resolution {
	if token == "" {
		return Resolution{}
	}

	userID, err := r.codec.Verify(token)
	if err != nil {
		return Resolution{ClearCredential: true}
	}

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		// A store failure is indistinguishable from a vanished user here;
		// both collapse to unauthenticated and the credential is discarded.
		if !errors.Is(err, context.Canceled) {
			return Resolution{ClearCredential: true}
		}
		return Resolution{}
	}

	return Resolution{User: user, Authenticated: true}
}
