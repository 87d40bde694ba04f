package invoice

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UploadName returns the storage name for an invoice's original upload.
func UploadName(id, filename string) string {
	return fmt.Sprintf("%s_%s", id, filename)
}

// SealCropName returns the storage name for an invoice's cropped seal image.
func SealCropName(id string) string {
	return id + "_seal.png"
}

// Storage defines the interface for file storage operations. It holds the
// original uploads and the cropped seal images.
type Storage interface {
	// Save saves a file and returns the path/filename
	Save(filename string, data []byte) (string, error)

	// Get retrieves a file by path
	Get(path string) ([]byte, error)

	// Delete removes a file
	Delete(path string) error
}

// LocalStorage implements the Storage interface using the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save saves a file to local storage. Storage names are flat: anything
// carrying a path separator is rejected rather than resolved.
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	if strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("invalid storage name %q", filename)
	}
	path := filepath.Join(l.basePath, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(path string) ([]byte, error) {
	fullPath := filepath.Join(l.basePath, path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(path string) error {
	fullPath := filepath.Join(l.basePath, path)
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
