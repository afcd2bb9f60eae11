package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage implements BlobStore on a directory of the local filesystem.
type LocalStorage struct {
	dir string
}

// NewLocalStorage ensures the upload directory exists and returns a store
// rooted at it.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("local storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

// Save writes the reader's contents to a file under the storage directory.
func (s *LocalStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	locator, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(locator, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("local storage create %s: %w", name, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(locator)
		return "", fmt.Errorf("local storage write %s: %w", name, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(locator)
		return "", fmt.Errorf("local storage close %s: %w", name, err)
	}

	return locator, nil
}

// Open returns a reader over the stored file.
func (s *LocalStorage) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	f, err := os.Open(locator)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("local storage open %s: %w", locator, err)
	}
	return f, nil
}

// Exists reports whether the stored file is still on disk.
func (s *LocalStorage) Exists(_ context.Context, locator string) (bool, error) {
	_, err := os.Stat(locator)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("local storage stat %s: %w", locator, err)
}

// Remove deletes the stored file, tolerating an already-absent locator.
func (s *LocalStorage) Remove(_ context.Context, locator string) error {
	if err := os.Remove(locator); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("local storage remove %s: %w", locator, err)
	}
	return nil
}

func (s *LocalStorage) resolve(name string) (string, error) {
	cleaned := filepath.Base(strings.TrimSpace(name))
	if cleaned == "" || cleaned == "." || cleaned == string(filepath.Separator) {
		return "", errors.New("local storage: empty name")
	}
	return filepath.Join(s.dir, cleaned), nil
}
