package documents

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/voltwise/voltwise/internal/auth"
)

// memStore is an in-memory BlobStore for tests.
type memStore struct {
	blobs    map[string][]byte
	urlErr   error
	removed  []string
	lastMime string
}

func newMemStore() *memStore {
	return &memStore{blobs: map[string][]byte{}}
}

func (m *memStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	content, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.blobs[key] = content
	m.lastMime = contentType
	return nil
}

func (m *memStore) Fetch(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return io.NopCloser(bytes.NewReader(m.blobs[key])), m.lastMime, nil
}

func (m *memStore) Remove(ctx context.Context, key string) error {
	delete(m.blobs, key)
	m.removed = append(m.removed, key)
	return nil
}

func (m *memStore) PublicURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if m.urlErr != nil {
		return "", m.urlErr
	}
	return "/test/" + key, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestUploadPersistsMetadata(t *testing.T) {
	db := openTestDB(t)
	store := newMemStore()
	service := NewService(db, store)
	actor := auth.Actor{UserID: "u-1", TenantID: "tenant-a"}

	content := []byte("permit scan")
	doc, err := service.Upload(context.Background(), actor, UploadInput{
		Filename: "permit.pdf",
		Reader:   bytes.NewReader(content),
		Size:     int64(len(content)),
		MimeType: "application/pdf",
		Category: CategoryAuthorization,
	})
	require.NoError(t, err)

	assert.Equal(t, "permit.pdf", doc.Name)
	assert.Equal(t, "tenant-a", doc.TenantID)
	assert.Equal(t, CategoryAuthorization, doc.Category)
	assert.Equal(t, "/test/"+doc.StorageKey, doc.URL)
	assert.Equal(t, content, store.blobs[doc.StorageKey])

	loaded, err := service.GetDocument(context.Background(), actor, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.StorageKey, loaded.StorageKey)
}

func TestUploadCleansUpOnURLFailure(t *testing.T) {
	db := openTestDB(t)
	store := newMemStore()
	store.urlErr = io.ErrUnexpectedEOF
	service := NewService(db, store)
	actor := auth.Actor{UserID: "u-1", TenantID: "tenant-a"}

	_, err := service.Upload(context.Background(), actor, UploadInput{
		Filename: "permit.pdf",
		Reader:   bytes.NewReader([]byte("x")),
		Size:     1,
	})
	require.Error(t, err)
	assert.Len(t, store.removed, 1, "orphaned blob should be removed")
	assert.Empty(t, store.blobs)
}

func TestGetDocumentIsTenantScoped(t *testing.T) {
	db := openTestDB(t)
	store := newMemStore()
	service := NewService(db, store)
	owner := auth.Actor{UserID: "u-1", TenantID: "tenant-a"}

	doc, err := service.Upload(context.Background(), owner, UploadInput{
		Filename: "gse-contract.pdf",
		Reader:   bytes.NewReader([]byte("contract")),
		Size:     8,
	})
	require.NoError(t, err)

	intruder := auth.Actor{UserID: "u-2", TenantID: "tenant-b"}
	_, err = service.GetDocument(context.Background(), intruder, doc.ID)
	assert.Error(t, err)
}

func TestDeleteRemovesBlobAndRow(t *testing.T) {
	db := openTestDB(t)
	store := newMemStore()
	service := NewService(db, store)
	actor := auth.Actor{UserID: "u-1", TenantID: "tenant-a"}

	doc, err := service.Upload(context.Background(), actor, UploadInput{
		Filename: "sld.dwg",
		Reader:   bytes.NewReader([]byte("drawing")),
		Size:     7,
		Category: CategoryDesign,
	})
	require.NoError(t, err)

	require.NoError(t, service.Delete(context.Background(), actor, doc.ID))
	assert.Empty(t, store.blobs)

	_, err = service.GetDocument(context.Background(), actor, doc.ID)
	assert.Error(t, err)
}
