package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltwise/voltwise/internal/auth"
	"github.com/voltwise/voltwise/internal/workflow/model"
)

// Service stores document binaries through the BlobStore and keeps their
// metadata rows in the database, scoped to the uploading actor's tenant.
type Service struct {
	db    *gorm.DB
	store BlobStore
}

func NewService(db *gorm.DB, store BlobStore) *Service {
	return &Service{db: db, store: store}
}

// UploadInput describes an incoming document binary.
type UploadInput struct {
	Filename string
	Reader   io.Reader
	Size     int64
	MimeType string
	Category DocumentCategory
	PlantID  *uuid.UUID
}

// Upload writes the binary to the blob store, then persists the metadata
// row. A blob whose metadata cannot be generated or saved is removed again
// so storage does not accumulate orphans.
func (s *Service) Upload(ctx context.Context, actor auth.Actor, in UploadInput) (*Document, error) {
	if in.Filename == "" {
		return nil, model.NewValidationError("document filename cannot be empty")
	}
	mime := in.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	category := in.Category
	if category == "" {
		category = CategoryOther
	}

	id := uuid.New()
	key := fmt.Sprintf("%s%s", id.String(), filepath.Ext(in.Filename))

	if err := s.store.Put(ctx, key, in.Reader, mime); err != nil {
		return nil, fmt.Errorf("blob store failed: %w", err)
	}

	url, err := s.store.PublicURL(ctx, key, 0)
	if err != nil {
		s.removeOrphan(ctx, key)
		return nil, fmt.Errorf("failed to generate document URL: %w", err)
	}

	doc := &Document{
		TenantID:   actor.TenantID,
		PlantID:    in.PlantID,
		Name:       in.Filename,
		Category:   category,
		StorageKey: key,
		URL:        url,
		Size:       in.Size,
		MimeType:   mime,
	}
	doc.ID = id

	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		s.removeOrphan(ctx, key)
		return nil, fmt.Errorf("failed to persist document metadata: %w", err)
	}

	slog.InfoContext(ctx, "Document uploaded", "id", id, "key", key, "tenant", actor.TenantID)
	return doc, nil
}

func (s *Service) removeOrphan(ctx context.Context, key string) {
	if err := s.store.Remove(ctx, key); err != nil {
		slog.WarnContext(ctx, "failed to cleanup orphaned blob", "key", key, "error", err)
	}
}

// GetDocument returns the metadata row for a document in the actor's tenant.
func (s *Service) GetDocument(ctx context.Context, actor auth.Actor, documentID uuid.UUID) (*Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", documentID, actor.TenantID).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFoundError("document", documentID)
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns the documents attached to a plant, or all of the
// tenant's documents when plantID is nil.
func (s *Service) ListDocuments(ctx context.Context, actor auth.Actor, plantID *uuid.UUID) ([]Document, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ?", actor.TenantID)
	if plantID != nil {
		query = query.Where("plant_id = ?", *plantID)
	}

	var docs []Document
	if err := query.Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Download streams the binary for a document in the actor's tenant.
func (s *Service) Download(ctx context.Context, actor auth.Actor, documentID uuid.UUID) (io.ReadCloser, string, error) {
	doc, err := s.GetDocument(ctx, actor, documentID)
	if err != nil {
		return nil, "", err
	}
	return s.store.Fetch(ctx, doc.StorageKey)
}

// Delete removes both the metadata row and the stored blob.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, documentID uuid.UUID) error {
	doc, err := s.GetDocument(ctx, actor, documentID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&Document{}, "id = ?", doc.ID).Error; err != nil {
		return fmt.Errorf("failed to delete document metadata: %w", err)
	}
	if err := s.store.Remove(ctx, doc.StorageKey); err != nil {
		slog.WarnContext(ctx, "failed to remove document blob", "key", doc.StorageKey, "error", err)
	}
	return nil
}

// Migrate creates the documents table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Document{})
}
