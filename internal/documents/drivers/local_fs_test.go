package drivers

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalFSDriver_FanOut(t *testing.T) {
	tempDir := t.TempDir()

	driver, err := NewLocalFSDriver(tempDir, "/api/v1/documents")
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}

	ctx := context.Background()
	key := "abcdef123456.pdf"
	content := []byte("permit scan")

	if err := driver.Put(ctx, key, bytes.NewReader(content), "application/pdf"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// key "abcdef123456.pdf" fans out to ab/cd/abcdef123456.pdf
	fullPath := filepath.Join(tempDir, "ab", "cd", key)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		t.Errorf("blob not found at fanned-out path: %s", fullPath)
	}

	reader, contentType, err := driver.Fetch(ctx, key)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer reader.Close()

	if contentType != "application/pdf" {
		t.Errorf("expected content type application/pdf, got %s", contentType)
	}
	got, _ := io.ReadAll(reader)
	if !bytes.Equal(got, content) {
		t.Error("fetched content does not match input")
	}

	url, err := driver.PublicURL(ctx, key, 0)
	if err != nil {
		t.Fatalf("PublicURL failed: %v", err)
	}
	if !strings.HasSuffix(url, key) || !strings.Contains(url, "/api/v1/documents") {
		t.Errorf("unexpected URL: %s", url)
	}

	if err := driver.Remove(ctx, key); err != nil {
		t.Errorf("Remove failed: %v", err)
	}
	if _, err := os.Stat(fullPath); !os.IsNotExist(err) {
		t.Error("blob still exists after removal")
	}

	// Removing an already-missing key is not an error.
	if err := driver.Remove(ctx, key); err != nil {
		t.Errorf("Remove of missing key returned error: %v", err)
	}
}
