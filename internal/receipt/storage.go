package receipt

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"
)

// FolderLayout names the per-day archive folder
const FolderLayout = "02-01-2006"

// Storage defines the interface for archiving original documents
type Storage interface {
	// Save stores a file under the folder for date and returns its path
	Save(ctx context.Context, date time.Time, filename string, data []byte) (string, error)

	// Get retrieves a file by path
	Get(ctx context.Context, path string) ([]byte, error)

	// Delete removes a file
	Delete(ctx context.Context, path string) error
}

func archivePath(date time.Time, filename string) string {
	return path.Join(date.Format(FolderLayout), filename)
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save saves a file to local storage
func (l *LocalStorage) Save(_ context.Context, date time.Time, filename string, data []byte) (string, error) {
	rel := archivePath(date, filepath.Base(filename))
	full := filepath.Join(l.basePath, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("creating date folder: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return rel, nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(_ context.Context, path string) error {
	if err := os.Remove(filepath.Join(l.basePath, filepath.FromSlash(path))); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
