package app

import (
	"context"
	"fmt"

	"github.com/sharevault/backend/internal/auth"
	"github.com/sharevault/backend/internal/config"
	"github.com/sharevault/backend/internal/db"
	"github.com/sharevault/backend/internal/files"
	"github.com/sharevault/backend/internal/handlers"
	"github.com/sharevault/backend/internal/repositories"
	"github.com/sharevault/backend/internal/sharing"
	"github.com/sharevault/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	users := repositories.NewPostgresUserRepository(pool)
	fileRepo := repositories.NewPostgresFileRepository(pool)
	linkRepo := repositories.NewPostgresShareLinkRepository(pool)

	codec := auth.NewTokenCodec(cfg.TokenSecret, cfg.TokenTTL)

	return handlers.Dependencies{
		Users:         users,
		Credentials:   codec,
		Resolver:      auth.NewResolver(codec, users),
		Files:         files.NewService(fileRepo, blobs),
		ShareLinks:    sharing.NewManager(linkRepo, fileRepo, users, blobs),
		PublicBaseURL: cfg.PublicBaseURL,
		TokenTTL:      cfg.TokenTTL,
	}, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (storage.BlobStore, error) {
	switch cfg.StorageBackend {
	case "local", "":
		return storage.NewLocalStorage(cfg.UploadDir)
	case "s3":
		return storage.NewS3Storage(ctx, cfg.ObjectStore)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
