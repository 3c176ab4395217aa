package drivers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// LocalFSDriver stores document blobs on local disk, fanning keys out
// into a two-level directory tree so no single directory grows unbounded.
type LocalFSDriver struct {
	BaseDir string
	BaseURL string
}

// NewLocalFSDriver creates the base directory if needed. baseURL is the
// base path clients use to fetch blobs back (e.g. /api/v1/documents).
func NewLocalFSDriver(baseDir, baseURL string) (*LocalFSDriver, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalFSDriver{BaseDir: baseDir, BaseURL: baseURL}, nil
}

func (d *LocalFSDriver) fanOutPath(key string) string {
	if len(key) < 4 {
		return key
	}
	return filepath.Join(key[0:2], key[2:4], key)
}

func (d *LocalFSDriver) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	fullPath := filepath.Join(d.BaseDir, d.fanOutPath(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create blob file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		os.Remove(fullPath)
		return fmt.Errorf("failed to write blob content: %w", err)
	}

	// Content type lives in a sidecar file next to the blob.
	metaPath := fullPath + ".meta"
	if err := os.WriteFile(metaPath, []byte(contentType), 0644); err != nil {
		os.Remove(fullPath)
		return fmt.Errorf("failed to write blob metadata: %w", err)
	}

	return nil
}

func (d *LocalFSDriver) Fetch(ctx context.Context, key string) (io.ReadCloser, string, error) {
	fullPath := filepath.Join(d.BaseDir, d.fanOutPath(key))
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, "", err
	}

	contentType := "application/octet-stream"
	if metaBytes, err := os.ReadFile(fullPath + ".meta"); err == nil {
		contentType = string(metaBytes)
	}

	return f, contentType, nil
}

func (d *LocalFSDriver) Remove(ctx context.Context, key string) error {
	fullPath := filepath.Join(d.BaseDir, d.fanOutPath(key))
	os.Remove(fullPath + ".meta")
	err := os.Remove(fullPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (d *LocalFSDriver) PublicURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if d.BaseURL == "" {
		return key, nil
	}
	return fmt.Sprintf("%s/%s", d.BaseURL, key), nil
}
