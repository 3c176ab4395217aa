package documents

import (
	"github.com/google/uuid"

	"github.com/voltwise/voltwise/internal/workflow/model"
)

// DocumentCategory classifies a compliance document by the kind of
// paperwork it represents.
type DocumentCategory string

const (
	CategoryDesign        DocumentCategory = "design"
	CategoryAuthorization DocumentCategory = "authorization"
	CategoryGrid          DocumentCategory = "grid"
	CategoryFiscal        DocumentCategory = "fiscal"
	CategoryOther         DocumentCategory = "other"
)

// Document is the persisted metadata for an uploaded compliance document.
// The binary itself lives in the configured BlobStore under StorageKey;
// tasks reference documents through their documentIds column.
type Document struct {
	model.BaseModel
	TenantID   string           `gorm:"type:varchar(64);column:tenant_id;not null;index" json:"tenantId"`
	PlantID    *uuid.UUID       `gorm:"type:uuid;column:plant_id;index" json:"plantId,omitempty"`
	Name       string           `gorm:"type:varchar(255);column:name;not null" json:"name"`
	Category   DocumentCategory `gorm:"type:varchar(32);column:category;not null" json:"category"`
	StorageKey string           `gorm:"type:varchar(255);column:storage_key;not null;uniqueIndex" json:"-"`
	URL        string           `gorm:"type:text;column:url" json:"url"`
	Size       int64            `gorm:"column:size" json:"size"`
	MimeType   string           `gorm:"type:varchar(127);column:mime_type" json:"mimeType"`
}

func (Document) TableName() string {
	return "documents"
}
