package plant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrPlantNotFound is returned when a plant does not exist or belongs to a
// different tenant.
var ErrPlantNotFound = errors.New("plant not found")

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GetPlant retrieves a plant by ID scoped to the given tenant.
func (s *Service) GetPlant(ctx context.Context, plantID uuid.UUID, tenantID string) (*Plant, error) {
	if plantID == uuid.Nil {
		return nil, fmt.Errorf("plant ID cannot be nil")
	}

	var p Plant
	result := s.db.WithContext(ctx).First(&p, "id = ? AND tenant_id = ?", plantID, tenantID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plant %s: %w", plantID, ErrPlantNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve plant: %w", result.Error)
	}
	return &p, nil
}

// ListPlants retrieves all plants of a tenant.
func (s *Service) ListPlants(ctx context.Context, tenantID string) ([]Plant, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant ID cannot be empty")
	}

	var plants []Plant
	result := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("name").Find(&plants)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to retrieve plants: %w", result.Error)
	}
	return plants, nil
}

// CreatePlant persists a new plant record.
func (s *Service) CreatePlant(ctx context.Context, p *Plant) error {
	if p == nil {
		return fmt.Errorf("plant cannot be nil")
	}
	if p.TenantID == "" {
		return fmt.Errorf("plant tenant ID cannot be empty")
	}

	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create plant: %w", err)
	}
	return nil
}
