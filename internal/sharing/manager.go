package sharing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sharevault/backend/internal/authz"
	"github.com/sharevault/backend/internal/logging"
	"github.com/sharevault/backend/internal/models"
	"github.com/sharevault/backend/internal/repositories"
	"github.com/sharevault/backend/internal/sharelink"
	"github.com/sharevault/backend/internal/storage"
)

// Store captures the persistence operations required by the lifecycle manager.
type Store interface {
	Create(ctx context.Context, link models.ShareLink) error
	FindByID(ctx context.Context, id string) (models.ShareLink, error)
	FindByToken(ctx context.Context, token string) (models.ShareLink, error)
	ListActiveByFile(ctx context.Context, fileID string) ([]models.ShareLink, error)
	ConsumeAccess(ctx context.Context, id string, now time.Time) error
	Revoke(ctx context.Context, id string) error
}

// FileLookup is the slice of the file store the manager needs.
type FileLookup interface {
	FindByID(ctx context.Context, id string) (models.File, error)
	IncrementDownloadCount(ctx context.Context, id string) error
}

// UserLookup loads owner display details for the share landing page.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// ErrFileMissing indicates the linked file's stored bytes are gone while its
// metadata record survives.
var ErrFileMissing = errors.New("file missing from storage")

// Manager orchestrates creation, listing, revocation and consumption of share
// links. Ownership is enforced here, before any store delegation; the store
// itself never checks identity.
type Manager struct {
	Links   Store
	Files   FileLookup
	Users   UserLookup
	Blobs   storage.BlobStore
	NowFunc func() time.Time
}

// NewManager constructs a lifecycle manager over the given collaborators.
func NewManager(links Store, files FileLookup, users UserLookup, blobs storage.BlobStore) *Manager {
	if links == nil || files == nil || users == nil || blobs == nil {
		panic("sharing: manager requires link, file and user stores plus blob storage")
	}
	return &Manager{Links: links, Files: files, Users: users, Blobs: blobs}
}

// Create mints a new link for the file after verifying ownership. Day-count
// validation happens in New.
func (m *Manager) Create(ctx context.Context, fileID string, identity authz.Identity, expiresInDays int, oneTimeUse bool) (models.ShareLink, error) {
	file, err := m.Files.FindByID(ctx, fileID)
	if err != nil {
		return models.ShareLink{}, err
	}

	decision := authz.Authorize(authz.OpCreateShareLink, file, identity, authz.NoLink, m.now())
	if !decision.Allowed {
		return models.ShareLink{}, &authz.DeniedError{Decision: decision}
	}

	link, err := sharelink.New(file.ID, identity.ID, expiresInDays, oneTimeUse, m.now())
	if err != nil {
		return models.ShareLink{}, err
	}

	if err := m.Links.Create(ctx, link); err != nil {
		return models.ShareLink{}, fmt.Errorf("insert share link: %w", err)
	}

	return link, nil
}

// List returns the file plus its non-revoked links, owner only.
func (m *Manager) List(ctx context.Context, fileID string, identity authz.Identity) (models.File, []models.ShareLink, error) {
	file, err := m.Files.FindByID(ctx, fileID)
	if err != nil {
		return models.File{}, nil, err
	}

	decision := authz.Authorize(authz.OpListShareLinks, file, identity, authz.NoLink, m.now())
	if !decision.Allowed {
		return models.File{}, nil, &authz.DeniedError{Decision: decision}
	}

	links, err := m.Links.ListActiveByFile(ctx, file.ID)
	if err != nil {
		return models.File{}, nil, err
	}

	return file, links, nil
}

// Revoke deactivates the link, creator only. Idempotent: revoking an already
// revoked link succeeds.
func (m *Manager) Revoke(ctx context.Context, linkID string, identity authz.Identity) error {
	link, err := m.Links.FindByID(ctx, linkID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return sharelink.ErrLinkNotFound
		}
		return err
	}

	decision := authz.AuthorizeLinkMutation(link, identity)
	if !decision.Allowed {
		return &authz.DeniedError{Decision: decision}
	}

	if err := m.Links.Revoke(ctx, link.ID); err != nil {
		return err
	}

	return nil
}

// ResolvedLink is the landing-page view of a valid token: the link, the file
// and the owner's display name.
type ResolvedLink struct {
	Link      models.ShareLink
	File      models.File
	OwnerName string
}

// Resolve validates the token for the share landing page without consuming an
// access. The owner is joined explicitly at read time.
func (m *Manager) Resolve(ctx context.Context, token string) (ResolvedLink, error) {
	link, file, err := m.lookupValid(ctx, token)
	if err != nil {
		return ResolvedLink{}, err
	}

	owner, err := m.Users.FindByID(ctx, file.OwnerID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return ResolvedLink{}, err
	}

	return ResolvedLink{Link: link, File: file, OwnerName: owner.Name}, nil
}

// Download consumes the link and serves the file bytes. The access is recorded
// exactly once per physical download, through a conditional store update; the
// loser of a race on a one-time link is denied as exhausted.
func (m *Manager) Download(ctx context.Context, token string) (models.File, io.ReadCloser, error) {
	ctx, span := logging.StartSpan(ctx, "sharing.download")
	defer span.End()

	link, file, err := m.lookupValid(ctx, token)
	if err != nil {
		return models.File{}, nil, err
	}

	if err := m.Links.ConsumeAccess(ctx, link.ID, m.now()); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Lost a race or the state flipped between validation and
			// consumption; judge the fresh snapshot for the real reason.
			if current, ferr := m.Links.FindByID(ctx, link.ID); ferr == nil {
				if verr := sharelink.InvalidityError(current, m.now()); verr != nil {
					return models.File{}, nil, verr
				}
			}
			return models.File{}, nil, sharelink.ErrLinkExhausted
		}
		return models.File{}, nil, err
	}

	content, err := m.Blobs.Open(ctx, file.Path)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return models.File{}, nil, ErrFileMissing
		}
		return models.File{}, nil, fmt.Errorf("open stored bytes: %w", err)
	}

	if err := m.Files.IncrementDownloadCount(ctx, file.ID); err != nil {
		logging.FromContext(ctx).Warn("increment download count", "fileId", file.ID, "error", err)
	}

	return file, content, nil
}

// lookupValid resolves the token to a link and file, runs the authorization
// engine over the snapshot, and checks the stored bytes still exist. No side
// effects on any denial path.
func (m *Manager) lookupValid(ctx context.Context, token string) (models.ShareLink, models.File, error) {
	if token == "" {
		return models.ShareLink{}, models.File{}, sharelink.ErrLinkNotFound
	}

	link, err := m.Links.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.ShareLink{}, models.File{}, sharelink.ErrLinkNotFound
		}
		return models.ShareLink{}, models.File{}, err
	}

	file, err := m.Files.FindByID(ctx, link.FileID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.ShareLink{}, models.File{}, sharelink.ErrLinkNotFound
		}
		return models.ShareLink{}, models.File{}, err
	}

	decision := authz.Authorize(authz.OpDownload, file, authz.Anonymous, authz.PresentedLink{Link: link, Present: true}, m.now())
	if !decision.Allowed {
		if decision.LinkErr != nil {
			return models.ShareLink{}, models.File{}, decision.LinkErr
		}
		return models.ShareLink{}, models.File{}, &authz.DeniedError{Decision: decision}
	}

	exists, err := m.Blobs.Exists(ctx, file.Path)
	if err != nil {
		return models.ShareLink{}, models.File{}, fmt.Errorf("check stored bytes: %w", err)
	}
	if !exists {
		return models.ShareLink{}, models.File{}, ErrFileMissing
	}

	return link, file, nil
}

func (m *Manager) now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc().UTC()
	}
	return time.Now().UTC()
}
