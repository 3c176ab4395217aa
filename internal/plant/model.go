package plant

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plant is a renewable-energy production plant owned by a tenant. The
// workflow engine reads plants to validate targets and to snapshot power
// and type into workflow config at instantiation time.
type Plant struct {
	ID            uuid.UUID `gorm:"type:uuid;column:id;not null;primaryKey" json:"id"`
	CreatedAt     time.Time `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
	TenantID      string    `gorm:"type:varchar(100);column:tenant_id;not null;index" json:"tenantId"`
	Name          string    `gorm:"type:varchar(255);column:name;not null" json:"name"`
	PlantType     string    `gorm:"type:varchar(100);column:plant_type;not null" json:"plantType"`
	PowerKw       float64   `gorm:"column:power_kw;not null" json:"powerKw"`
	ProtectedArea bool      `gorm:"column:protected_area;not null;default:false" json:"protectedArea"`
	Municipality  string    `gorm:"type:varchar(255);column:municipality" json:"municipality,omitempty"`
	Region        string    `gorm:"type:varchar(255);column:region" json:"region,omitempty"`
}

func (p *Plant) TableName() string {
	return "plants"
}

// Migrate creates the plants table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Plant{})
}

// BeforeCreate is a GORM hook that is triggered before a new record is created.
func (p *Plant) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID, err = uuid.NewRandom()
		if err != nil {
			return
		}
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = time.Now().UTC()
	return
}
