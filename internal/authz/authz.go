// Package authz holds the authorization decision core. The engine is a pure
// function over snapshots passed in by the orchestrators: it performs no I/O
// and triggers no side effects, so every denial path is guaranteed mutation
// free. Callers apply side effects (download counters, link access recording)
// only after an allow verdict, guided by the granting path.
package authz

import (
	"time"

	"github.com/sharevault/backend/internal/models"
	"github.com/sharevault/backend/internal/sharelink"
)

// Operation enumerates the file-scoped actions the engine can judge.
type Operation int

const (
	OpDownload Operation = iota
	OpTogglePrivacy
	OpCreateShareLink
	OpListShareLinks
	OpRevokeShareLink
)

// GrantPath records which policy produced an allow verdict. Share-token
// downloads additionally consume the link; owner and public downloads do not.
type GrantPath int

const (
	GrantNone GrantPath = iota
	GrantPublic
	GrantOwner
	GrantShareToken
)

// DenyReason tags a denial verdict.
type DenyReason int

const (
	DenyReasonNone DenyReason = iota
	// DenyPrivate: the file is private and the requester is neither owner nor
	// bearer of a valid share token.
	DenyPrivate
	// DenyNotOwner: a mutating operation was attempted by a non-owner.
	DenyNotOwner
	// DenyLinkInvalid: the presented share token does not grant access.
	DenyLinkInvalid
)

// Decision is the engine's verdict.
type Decision struct {
	Allowed bool
	Path    GrantPath
	Reason  DenyReason
	// NeedsLogin hints that authenticating may change the outcome. Only set on
	// DenyPrivate for anonymous requesters.
	NeedsLogin bool
	// LinkErr carries the differentiated invalidity reason when Reason is
	// DenyLinkInvalid. Callers log it but render a uniform outward message.
	LinkErr error
}

// Identity is the optional resolved requester.
type Identity struct {
	ID      string
	Present bool
}

// IdentityOf adapts a resolved user to the engine's identity input.
func IdentityOf(user models.User) Identity {
	return Identity{ID: user.ID, Present: user.ID != ""}
}

// Anonymous is the absent identity.
var Anonymous = Identity{}

// PresentedLink is an optional share-link snapshot accompanying a download
// request.
type PresentedLink struct {
	Link    models.ShareLink
	Present bool
}

// NoLink is the absent share-link presentation.
var NoLink = PresentedLink{}

// Authorize judges the operation against the file snapshot, the optional
// identity and the optional presented share link, at the given instant.
func Authorize(op Operation, file models.File, identity Identity, presented PresentedLink, now time.Time) Decision {
	switch op {
	case OpDownload:
		return authorizeDownload(file, identity, presented, now)
	case OpRevokeShareLink:
		// Revocation rights follow the link creator; AuthorizeLinkMutation is
		// the entry point carrying the link. Falling through here means the
		// caller passed no link, which can never be allowed.
		return Decision{Reason: DenyNotOwner}
	default:
		return authorizeOwnerOnly(file, identity)
	}
}

// AuthorizeLinkMutation judges revocation of a specific link. A share token is
// never sufficient: only the creating identity may revoke.
func AuthorizeLinkMutation(link models.ShareLink, identity Identity) Decision {
	if !identity.Present || identity.ID != link.CreatedBy {
		return Decision{Reason: DenyNotOwner}
	}
	return Decision{Allowed: true, Path: GrantOwner}
}

func authorizeDownload(file models.File, identity Identity, presented PresentedLink, now time.Time) Decision {
	if presented.Present {
		if err := linkGrants(presented.Link, file, now); err != nil {
			return Decision{Reason: DenyLinkInvalid, LinkErr: err}
		}
		return Decision{Allowed: true, Path: GrantShareToken}
	}

	if file.IsPublic {
		return Decision{Allowed: true, Path: GrantPublic}
	}

	if identity.Present && identity.ID == file.OwnerID {
		return Decision{Allowed: true, Path: GrantOwner}
	}

	return Decision{Reason: DenyPrivate, NeedsLogin: !identity.Present}
}

func authorizeOwnerOnly(file models.File, identity Identity) Decision {
	if !identity.Present || identity.ID != file.OwnerID {
		return Decision{Reason: DenyNotOwner}
	}
	return Decision{Allowed: true, Path: GrantOwner}
}

func linkGrants(link models.ShareLink, file models.File, now time.Time) error {
	if link.FileID != file.ID {
		return sharelink.ErrLinkNotFound
	}
	if err := sharelink.InvalidityError(link, now); err != nil {
		return err
	}
	return nil
}
