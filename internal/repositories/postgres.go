package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sharevault/backend/internal/db"
	"github.com/sharevault/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, user.ID, user.Name, user.Email, user.Password, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, `
        SELECT id, name, email, password_hash, created_at, updated_at
        FROM users
        WHERE email = $1
    `, email)
}

// FindByID fetches a user by their identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, `
        SELECT id, name, email, password_hash, created_at, updated_at
        FROM users
        WHERE id = $1
    `, id)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, query string, arg any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, query, arg)

	var user models.User
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

// PostgresFileRepository provides PostgreSQL-backed persistence for file metadata.
type PostgresFileRepository struct {
	pool db.Pool
}

// NewPostgresFileRepository constructs a file repository backed by PostgreSQL.
func NewPostgresFileRepository(pool db.Pool) *PostgresFileRepository {
	return &PostgresFileRepository{pool: pool}
}

// Create stores a new file record.
func (r *PostgresFileRepository) Create(ctx context.Context, file models.File) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO files (id, owner_id, original_name, filename, path, size, mime_type, is_public, download_count, description, upload_date)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, file.ID, file.OwnerID, file.OriginalName, file.Filename, file.Path, file.Size, file.MimeType, file.IsPublic, file.DownloadCount, file.Description, file.UploadDate)
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
		return fmt.Errorf("insert file: %w", err)
	}

	return nil
}

// FindByID fetches a single file record.
func (r *PostgresFileRepository) FindByID(ctx context.Context, id string) (models.File, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.File{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, owner_id, original_name, filename, path, size, mime_type, is_public, download_count, description, upload_date
        FROM files
        WHERE id = $1
    `, id)

	file, err := scanFile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.File{}, ErrNotFound
		}
		return models.File{}, fmt.Errorf("select file: %w", err)
	}

	return file, nil
}

// ListByOwner returns the owner's files, newest first.
func (r *PostgresFileRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.File, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, owner_id, original_name, filename, path, size, mime_type, is_public, download_count, description, upload_date
        FROM files
        WHERE owner_id = $1
        ORDER BY upload_date DESC
    `, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query files by owner: %w", err)
	}
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}

	return files, nil
}

// ListPublic returns up to limit public files, newest first, joined with their
// owner's display details.
func (r *PostgresFileRepository) ListPublic(ctx context.Context, limit int) ([]models.FileWithOwner, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT f.id, f.owner_id, f.original_name, f.filename, f.path, f.size, f.mime_type,
               f.is_public, f.download_count, f.description, f.upload_date,
               u.name, u.email
        FROM files f
        JOIN users u ON u.id = f.owner_id
        WHERE f.is_public
        ORDER BY f.upload_date DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query public files: %w", err)
	}
	defer rows.Close()

	var files []models.FileWithOwner
	for rows.Next() {
		var item models.FileWithOwner
		if err := rows.Scan(
			&item.ID, &item.OwnerID, &item.OriginalName, &item.Filename, &item.Path, &item.Size, &item.MimeType,
			&item.IsPublic, &item.DownloadCount, &item.Description, &item.UploadDate,
			&item.OwnerName, &item.OwnerEmail,
		); err != nil {
			return nil, fmt.Errorf("scan public file: %w", err)
		}
		files = append(files, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate public files: %w", err)
	}

	return files, nil
}

// SetPublic updates the visibility flag, leaving every other column untouched.
func (r *PostgresFileRepository) SetPublic(ctx context.Context, id string, isPublic bool) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE files
        SET is_public = $2
        WHERE id = $1
    `, id, isPublic)
	if err != nil {
		return fmt.Errorf("update file visibility: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// IncrementDownloadCount bumps the download counter in the store, avoiding a
// read-modify-write in application code.
func (r *PostgresFileRepository) IncrementDownloadCount(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE files
        SET download_count = download_count + 1
        WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (models.File, error) {
	var file models.File
	err := row.Scan(
		&file.ID, &file.OwnerID, &file.OriginalName, &file.Filename, &file.Path, &file.Size, &file.MimeType,
		&file.IsPublic, &file.DownloadCount, &file.Description, &file.UploadDate,
	)
	return file, err
}
