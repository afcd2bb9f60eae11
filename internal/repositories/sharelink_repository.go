package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sharevault/backend/internal/db"
	"github.com/sharevault/backend/internal/models"
)

// PostgresShareLinkRepository provides PostgreSQL-backed persistence for share links.
type PostgresShareLinkRepository struct {
	pool db.Pool
}

// NewPostgresShareLinkRepository constructs a share-link repository backed by PostgreSQL.
func NewPostgresShareLinkRepository(pool db.Pool) *PostgresShareLinkRepository {
	return &PostgresShareLinkRepository{pool: pool}
}

// Create stores a new share-link record.
func (r *PostgresShareLinkRepository) Create(ctx context.Context, link models.ShareLink) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO share_links (id, file_id, created_by, token, expires_at, one_time_use, access_count, last_accessed_at, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, link.ID, link.FileID, link.CreatedBy, link.Token, link.ExpiresAt, link.OneTimeUse, link.AccessCount, link.LastAccessedAt, link.IsActive, link.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert share link: %w", err)
	}

	return nil
}

// FindByID fetches a single share-link record.
func (r *PostgresShareLinkRepository) FindByID(ctx context.Context, id string) (models.ShareLink, error) {
	return r.findOne(ctx, `
        SELECT id, file_id, created_by, token, expires_at, one_time_use, access_count, last_accessed_at, is_active, created_at
        FROM share_links
        WHERE id = $1
    `, id)
}

// FindByToken looks a link up by its token. The lookup is an exact,
// case-sensitive match against the unique token column.
func (r *PostgresShareLinkRepository) FindByToken(ctx context.Context, token string) (models.ShareLink, error) {
	return r.findOne(ctx, `
        SELECT id, file_id, created_by, token, expires_at, one_time_use, access_count, last_accessed_at, is_active, created_at
        FROM share_links
        WHERE token = $1
    `, token)
}

// ListActiveByFile returns the non-revoked links of a file, newest first.
// Expired and exhausted links are included: their terminal state is judged on
// read, not persisted.
func (r *PostgresShareLinkRepository) ListActiveByFile(ctx context.Context, fileID string) ([]models.ShareLink, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, file_id, created_by, token, expires_at, one_time_use, access_count, last_accessed_at, is_active, created_at
        FROM share_links
        WHERE file_id = $1 AND is_active
        ORDER BY created_at DESC
    `, fileID)
	if err != nil {
		return nil, fmt.Errorf("query share links: %w", err)
	}
	defer rows.Close()

	var links []models.ShareLink
	for rows.Next() {
		link, err := scanShareLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan share link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate share links: %w", err)
	}

	return links, nil
}

// ConsumeAccess records one access atomically: the increment applies only if
// the link is still valid at the store, so two concurrent accesses to a
// one-time link can never both succeed. ErrNotFound means the caller lost the
// race or the link just turned invalid; re-evaluating the snapshot yields the
// reason.
func (r *PostgresShareLinkRepository) ConsumeAccess(ctx context.Context, id string, now time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE share_links
        SET access_count = access_count + 1,
            last_accessed_at = $2
        WHERE id = $1
          AND is_active
          AND expires_at > $2
          AND (NOT one_time_use OR access_count = 0)
    `, id, now.UTC())
	if err != nil {
		return fmt.Errorf("consume share link access: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Revoke deactivates the link. The transition is one-way and idempotent:
// revoking an already-revoked link succeeds without effect.
func (r *PostgresShareLinkRepository) Revoke(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE share_links
        SET is_active = FALSE
        WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("revoke share link: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresShareLinkRepository) findOne(ctx context.Context, query string, arg any) (models.ShareLink, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ShareLink{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, query, arg)

	link, err := scanShareLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ShareLink{}, ErrNotFound
		}
		return models.ShareLink{}, fmt.Errorf("select share link: %w", err)
	}

	return link, nil
}

func scanShareLink(row rowScanner) (models.ShareLink, error) {
	var (
		link           models.ShareLink
		lastAccessedAt sql.NullTime
	)

	err := row.Scan(
		&link.ID, &link.FileID, &link.CreatedBy, &link.Token, &link.ExpiresAt,
		&link.OneTimeUse, &link.AccessCount, &lastAccessedAt, &link.IsActive, &link.CreatedAt,
	)
	if err != nil {
		return models.ShareLink{}, err
	}

	if lastAccessedAt.Valid {
		t := lastAccessedAt.Time.UTC()
		link.LastAccessedAt = &t
	}

	return link, nil
}
