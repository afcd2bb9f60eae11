package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sharevault/backend/internal/authz"
	"github.com/sharevault/backend/internal/logging"
	"github.com/sharevault/backend/internal/models"
	"github.com/sharevault/backend/internal/storage"
)

// PublicListingLimit caps the public files listing.
const PublicListingLimit = 50

// ErrFileMissing indicates the metadata record exists but the stored bytes do
// not. Distinct from a missing metadata record (repositories.ErrNotFound).
var ErrFileMissing = errors.New("file missing from storage")

// ValidationError reports malformed upload input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Store captures the persistence operations required by the file service.
type Store interface {
	Create(ctx context.Context, file models.File) error
	FindByID(ctx context.Context, id string) (models.File, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.File, error)
	ListPublic(ctx context.Context, limit int) ([]models.FileWithOwner, error)
	SetPublic(ctx context.Context, id string, isPublic bool) error
	IncrementDownloadCount(ctx context.Context, id string) error
}

// Service orchestrates the file metadata lifecycle. Every privileged action
// goes through the authorization engine first; denials trigger no mutation.
type Service struct {
	Files   Store
	Blobs   storage.BlobStore
	NowFunc func() time.Time
}

// NewService constructs a file service over the given collaborators.
func NewService(files Store, blobs storage.BlobStore) *Service {
	if files == nil || blobs == nil {
		panic("files: service requires a store and blob storage")
	}
	return &Service{Files: files, Blobs: blobs}
}

// UploadInput carries a parsed multipart upload.
type UploadInput struct {
	Owner        models.User
	OriginalName string
	Content      io.Reader
	Size         int64
	MimeType     string
	IsPublic     bool
	Description  string
}

// Upload persists the uploaded bytes and their metadata record. If the record
// insert fails the stored bytes are removed again.
func (s *Service) Upload(ctx context.Context, in UploadInput) (models.File, error) {
	if in.Owner.ID == "" {
		return models.File{}, &ValidationError{Field: "owner", Message: "an authenticated owner is required"}
	}
	if strings.TrimSpace(in.OriginalName) == "" {
		return models.File{}, &ValidationError{Field: "file", Message: "no file uploaded"}
	}
	if in.Content == nil {
		return models.File{}, &ValidationError{Field: "file", Message: "no file uploaded"}
	}

	storedName := uuid.NewString() + strings.ToLower(filepath.Ext(in.OriginalName))

	locator, err := s.Blobs.Save(ctx, storedName, in.Content)
	if err != nil {
		return models.File{}, fmt.Errorf("store uploaded bytes: %w", err)
	}

	file := models.File{
		ID:           uuid.NewString(),
		OwnerID:      in.Owner.ID,
		OriginalName: in.OriginalName,
		Filename:     storedName,
		Path:         locator,
		Size:         in.Size,
		MimeType:     in.MimeType,
		IsPublic:     in.IsPublic,
		Description:  in.Description,
		UploadDate:   s.now(),
	}

	if err := s.Files.Create(ctx, file); err != nil {
		if cleanupErr := s.Blobs.Remove(ctx, locator); cleanupErr != nil {
			logging.FromContext(ctx).Error("clean up stored bytes after failed insert", "locator", locator, "error", cleanupErr)
		}
		return models.File{}, fmt.Errorf("insert file record: %w", err)
	}

	return file, nil
}

// ListMine returns the requester's own files, newest first.
func (s *Service) ListMine(ctx context.Context, owner models.User) ([]models.File, error) {
	if owner.ID == "" {
		return nil, &ValidationError{Field: "owner", Message: "an authenticated owner is required"}
	}
	return s.Files.ListByOwner(ctx, owner.ID)
}

// ListPublic returns the public files listing, capped and joined with owner
// display details at read time.
func (s *Service) ListPublic(ctx context.Context) ([]models.FileWithOwner, error) {
	return s.Files.ListPublic(ctx, PublicListingLimit)
}

// Download authorizes and serves a direct (non-share-link) download. On allow
// it increments the download counter exactly once and returns the byte stream;
// the caller owns closing it.
func (s *Service) Download(ctx context.Context, fileID string, identity authz.Identity) (models.File, io.ReadCloser, error) {
	ctx, span := logging.StartSpan(ctx, "files.download")
	defer span.End()

	file, err := s.Files.FindByID(ctx, fileID)
	if err != nil {
		return models.File{}, nil, err
	}

	decision := authz.Authorize(authz.OpDownload, file, identity, authz.NoLink, s.now())
	if !decision.Allowed {
		return models.File{}, nil, &authz.DeniedError{Decision: decision}
	}

	exists, err := s.Blobs.Exists(ctx, file.Path)
	if err != nil {
		return models.File{}, nil, fmt.Errorf("check stored bytes: %w", err)
	}
	if !exists {
		return models.File{}, nil, ErrFileMissing
	}

	content, err := s.Blobs.Open(ctx, file.Path)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return models.File{}, nil, ErrFileMissing
		}
		return models.File{}, nil, fmt.Errorf("open stored bytes: %w", err)
	}

	if err := s.Files.IncrementDownloadCount(ctx, file.ID); err != nil {
		// Best-effort counter; the authorized download still proceeds.
		logging.FromContext(ctx).Warn("increment download count", "fileId", file.ID, "error", err)
	} else {
		file.DownloadCount++
	}

	return file, content, nil
}

// TogglePrivacy flips the visibility flag and returns the new value. Only the
// owner may toggle; nothing else on the record changes.
func (s *Service) TogglePrivacy(ctx context.Context, fileID string, identity authz.Identity) (bool, error) {
	file, err := s.Files.FindByID(ctx, fileID)
	if err != nil {
		return false, err
	}

	decision := authz.Authorize(authz.OpTogglePrivacy, file, identity, authz.NoLink, s.now())
	if !decision.Allowed {
		return false, &authz.DeniedError{Decision: decision}
	}

	next := !file.IsPublic
	if err := s.Files.SetPublic(ctx, file.ID, next); err != nil {
		return false, err
	}

	return next, nil
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}
