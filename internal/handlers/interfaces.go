package handlers

import (
	"context"
	"io"

	"github.com/sharevault/backend/internal/authz"
	"github.com/sharevault/backend/internal/files"
	"github.com/sharevault/backend/internal/models"
	"github.com/sharevault/backend/internal/sharing"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// CredentialIssuer mints signed bearer credentials for authenticated users.
type CredentialIssuer interface {
	Issue(userID string) (string, error)
}

// FileService orchestrates the file metadata lifecycle.
type FileService interface {
	Upload(ctx context.Context, in files.UploadInput) (models.File, error)
	ListMine(ctx context.Context, owner models.User) ([]models.File, error)
	ListPublic(ctx context.Context) ([]models.FileWithOwner, error)
	Download(ctx context.Context, fileID string, identity authz.Identity) (models.File, io.ReadCloser, error)
	TogglePrivacy(ctx context.Context, fileID string, identity authz.Identity) (bool, error)
}

// ShareLinkService orchestrates the share-link lifecycle.
type ShareLinkService interface {
	Create(ctx context.Context, fileID string, identity authz.Identity, expiresInDays int, oneTimeUse bool) (models.ShareLink, error)
	List(ctx context.Context, fileID string, identity authz.Identity) (models.File, []models.ShareLink, error)
	Revoke(ctx context.Context, linkID string, identity authz.Identity) error
	Resolve(ctx context.Context, token string) (sharing.ResolvedLink, error)
	Download(ctx context.Context, token string) (models.File, io.ReadCloser, error)
}
