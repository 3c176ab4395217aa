package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltwise/voltwise/internal/auth"
	"github.com/voltwise/voltwise/internal/workflow/model"
)

// HierarchyService answers read-only hierarchy queries: parent, children,
// siblings and clone lineage. Queries are tenant-scoped and walk exactly one
// level in either direction.
type HierarchyService struct {
	db *gorm.DB
}

func NewHierarchyService(db *gorm.DB) *HierarchyService {
	return &HierarchyService{db: db}
}

// GetHierarchy returns the one-level neighborhood of a workflow. Siblings
// (workflows sharing the same parent) are included only when requested.
func (s *HierarchyService) GetHierarchy(ctx context.Context, actor auth.Actor, workflowID uuid.UUID, includeSiblings bool) (*model.Hierarchy, error) {
	self, err := getWorkflowInTx(ctx, s.db, workflowID, actor.TenantID)
	if err != nil {
		return nil, err
	}

	hierarchy := &model.Hierarchy{Self: self, Children: []model.Workflow{}}

	if err := s.db.WithContext(ctx).
		Where("parent_workflow_id = ? AND tenant_id = ?", self.ID, actor.TenantID).
		Order("created_at").
		Find(&hierarchy.Children).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve sub-workflows: %w", err)
	}

	if self.ParentWorkflowID != nil {
		parent, err := s.lookupOptional(ctx, *self.ParentWorkflowID, actor.TenantID)
		if err != nil {
			return nil, err
		}
		hierarchy.Parent = parent

		if includeSiblings {
			if err := s.db.WithContext(ctx).
				Where("parent_workflow_id = ? AND tenant_id = ? AND id <> ?", *self.ParentWorkflowID, actor.TenantID, self.ID).
				Order("created_at").
				Find(&hierarchy.Siblings).Error; err != nil {
				return nil, fmt.Errorf("failed to retrieve sibling workflows: %w", err)
			}
		}
	}

	if self.OriginalWorkflowID != nil {
		original, err := s.lookupOptional(ctx, *self.OriginalWorkflowID, actor.TenantID)
		if err != nil {
			return nil, err
		}
		hierarchy.Original = original
	}

	return hierarchy, nil
}

// lookupOptional loads a related workflow, tolerating a missing record: a
// deleted parent or original leaves a nil slot, not an error.
func (s *HierarchyService) lookupOptional(ctx context.Context, workflowID uuid.UUID, tenantID string) (*model.Workflow, error) {
	var workflow model.Workflow
	result := s.db.WithContext(ctx).First(&workflow, "id = ? AND tenant_id = ?", workflowID, tenantID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to retrieve related workflow: %w", result.Error)
	}
	return &workflow, nil
}
