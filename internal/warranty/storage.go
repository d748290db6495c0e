package warranty

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
)

// Storage archives original documents for premium users
type Storage interface {
	// Save stores a file and returns the path to retrieve it by
	Save(ctx context.Context, filename string, data []byte, contentType string) (string, error)

	// Get retrieves a file by path
	Get(ctx context.Context, path string) ([]byte, error)

	// Delete removes a file
	Delete(ctx context.Context, path string) error
}

// LocalStorage implements the Storage interface using local filesystem
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

// resolve keeps every path inside basePath
func (l *LocalStorage) resolve(name string) (string, error) {
	clean := filepath.Clean(string(filepath.Separator) + name)
	rel := strings.TrimPrefix(clean, string(filepath.Separator))
	if rel == "" || rel == "." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(l.basePath, rel), nil
}

// Save saves a file to local storage
func (l *LocalStorage) Save(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	full, err := l.resolve(filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(ctx context.Context, name string) ([]byte, error) {
	full, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading file %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(ctx context.Context, name string) error {
	full, err := l.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// GCSStorage implements the Storage interface on a Google Cloud Storage bucket
type GCSStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStorage creates a GCSStorage using application default credentials
func NewGCSStorage(ctx context.Context, bucket, prefix string) (*GCSStorage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return NewGCSStorageWithClient(client, bucket, prefix), nil
}

// NewGCSStorageWithClient creates a GCSStorage on an existing client
func NewGCSStorageWithClient(client *storage.Client, bucket, prefix string) *GCSStorage {
	return &GCSStorage{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (g *GCSStorage) objectName(name string) string {
	name = strings.TrimLeft(path.Clean("/"+name), "/")
	if g.prefix == "" {
		return name
	}
	return g.prefix + "/" + name
}

// Save uploads a file; the returned path is relative to the prefix
func (g *GCSStorage) Save(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	w := g.client.Bucket(g.bucket).Object(g.objectName(filename)).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing gcs object: %w", err)
	}
	return filename, nil
}

// Get downloads a file
func (g *GCSStorage) Get(ctx context.Context, name string) ([]byte, error) {
	r, err := g.client.Bucket(g.bucket).Object(g.objectName(name)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("reading gcs object %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading gcs object: %w", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading gcs object: %w", err)
	}
	return data, nil
}

// Delete removes a file
func (g *GCSStorage) Delete(ctx context.Context, name string) error {
	if err := g.client.Bucket(g.bucket).Object(g.objectName(name)).Delete(ctx); err != nil {
		return fmt.Errorf("deleting gcs object: %w", err)
	}
	return nil
}

// Close closes the storage client
func (g *GCSStorage) Close() error {
	return g.client.Close()
}
