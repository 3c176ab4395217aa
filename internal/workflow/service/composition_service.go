package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltwise/voltwise/internal/auth"
	"github.com/voltwise/voltwise/internal/workflow/catalog"
	"github.com/voltwise/voltwise/internal/workflow/model"
)

// CompositionService builds parent/child workflow hierarchies: dedicated
// sub-workflows, merges of sibling workflows into one composite, and the
// progress sync that mirrors a child's state into its tracking task on the
// parent.
type CompositionService struct {
	db      *gorm.DB
	ws      *WorkflowService
	catalog *catalog.Catalog
}

func NewCompositionService(db *gorm.DB, ws *WorkflowService, cat *catalog.Catalog) *CompositionService {
	return &CompositionService{db: db, ws: ws, catalog: cat}
}

// CreateSubWorkflow creates a child workflow under the given parent,
// inheriting the parent's plant and entity list, and places a tracking task
// on the parent whose timeline stores the child's ID. When a template is
// given its stages and tasks are expanded into the child.
func (s *CompositionService) CreateSubWorkflow(ctx context.Context, actor auth.Actor, parentID uuid.UUID, name string, templateID *uuid.UUID, config model.JSONMap) (*model.Workflow, error) {
	if name == "" {
		return nil, model.NewValidationError("sub-workflow name cannot be empty")
	}

	var tmpl *model.WorkflowTemplate
	if templateID != nil {
		var err error
		tmpl, err = s.catalog.GetTemplate(ctx, *templateID)
		if err != nil {
			return nil, err
		}
	}

	var child *model.Workflow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parent, err := getWorkflowInTx(ctx, tx, parentID, actor.TenantID)
		if err != nil {
			return err
		}
		child, err = s.createSubWorkflowInTx(ctx, tx, actor, parent, name, tmpl, config)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.ws.GetWorkflow(ctx, actor, child.ID)
}

// createSubWorkflowInTx is the shared sub-workflow primitive used by both
// CreateSubWorkflow and MergeWorkflows inside their transactions.
func (s *CompositionService) createSubWorkflowInTx(ctx context.Context, tx *gorm.DB, actor auth.Actor, parent *model.Workflow, name string, tmpl *model.WorkflowTemplate, config model.JSONMap) (*model.Workflow, error) {
	childConfig := model.JSONMap{}
	for k, v := range parent.Config {
		switch k {
		case model.ConfigKeyPlantPowerKw, model.ConfigKeyPlantType:
			childConfig[k] = v
		}
	}
	for k, v := range config {
		childConfig[k] = v
	}

	child := &model.Workflow{
		Name:             name,
		Type:             model.WorkflowTypeStandard,
		PlantID:          parent.PlantID,
		TenantID:         parent.TenantID,
		Status:           model.WorkflowStatusActive,
		ParentWorkflowID: &parent.ID,
		Config:           childConfig,
		RequiredEntities: append(model.StringArray{}, parent.RequiredEntities...),
	}
	child.CreatedBy = actor.UserID
	child.UpdatedBy = actor.UserID

	var stages []model.Stage
	var tasks []model.Task
	if tmpl != nil {
		child.TemplateID = &tmpl.ID
		child.RequiredEntities = unionEntities(child.RequiredEntities, tmpl.RequiredEntities)
		stages, tasks = expandTemplate(tmpl, 0, "", actor.UserID)
	}

	if err := tx.Create(child).Error; err != nil {
		return nil, fmt.Errorf("failed to create sub-workflow: %w", err)
	}
	for i := range stages {
		stages[i].WorkflowID = child.ID
	}
	for i := range tasks {
		tasks[i].WorkflowID = child.ID
	}
	if len(stages) > 0 {
		if err := tx.Create(&stages).Error; err != nil {
			return nil, fmt.Errorf("failed to create sub-workflow stages: %w", err)
		}
	}
	if len(tasks) > 0 {
		if err := tx.Create(&tasks).Error; err != nil {
			return nil, fmt.Errorf("failed to create sub-workflow tasks: %w", err)
		}
	}

	// Tracking task on the parent. It has no stage, default priority, and
	// its timeline carries the sub-workflow ID used by progress sync.
	now := time.Now().UTC()
	tracking := &model.Task{
		WorkflowID: parent.ID,
		Title:      fmt.Sprintf("Track sub-workflow: %s", name),
		Status:     model.TaskStatusToStart,
		Priority:   model.TaskPriorityMedium,
		Timeline: model.JSONMap{
			model.TimelineKeyStart:         now.Format(time.RFC3339),
			model.TimelineKeySubWorkflowID: child.ID.String(),
		},
	}
	tracking.CreatedBy = actor.UserID
	tracking.UpdatedBy = actor.UserID
	if err := tx.Create(tracking).Error; err != nil {
		return nil, fmt.Errorf("failed to create tracking task: %w", err)
	}

	// The parent gained a task, so its derived progress changes.
	if _, err := recomputeWorkflowProgressInTx(ctx, tx, parent.ID); err != nil {
		return nil, err
	}
	return child, nil
}

// MergeWorkflows builds one composite workflow from two or more workflows on
// the same plant. Each source is demoted to a tracked sub-workflow of the
// composite: a child workflow is created per source, the source's stages and
// tasks are deep-copied into it with identities remapped (dates preserved
// as-is, since this is a restructuring rather than a time-shifted
// duplicate), and the source itself is cancelled with a merge marker in its
// config. The composite's entity list is the union of the sources' lists.
func (s *CompositionService) MergeWorkflows(ctx context.Context, actor auth.Actor, workflowIDs []uuid.UUID, name, description string) (*model.Workflow, error) {
	if len(workflowIDs) < 2 {
		return nil, model.NewValidationError("merging requires at least two workflows")
	}
	if name == "" {
		return nil, model.NewValidationError("composite workflow name cannot be empty")
	}

	sources := make([]*model.Workflow, 0, len(workflowIDs))
	for _, id := range workflowIDs {
		source, err := s.ws.GetWorkflow(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	for _, source := range sources[1:] {
		if source.PlantID != sources[0].PlantID {
			return nil, &model.CrossPlantMergeError{WorkflowIDs: workflowIDs}
		}
	}

	now := time.Now().UTC()
	sourceIDStrings := make([]string, len(sources))
	entities := model.StringArray{}
	for i, source := range sources {
		sourceIDStrings[i] = source.ID.String()
		entities = unionEntities(entities, source.RequiredEntities)
	}

	composite := &model.Workflow{
		Name:        name,
		Description: description,
		Type:        model.WorkflowTypeComposite,
		PlantID:     sources[0].PlantID,
		TenantID:    actor.TenantID,
		Status:      model.WorkflowStatusActive,
		Config: model.JSONMap{
			model.ConfigKeySourceWorkflowIDs: sourceIDStrings,
			model.ConfigKeyMergedAt:          now.Format(time.RFC3339),
		},
		RequiredEntities: entities,
	}
	composite.CreatedBy = actor.UserID
	composite.UpdatedBy = actor.UserID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(composite).Error; err != nil {
			return fmt.Errorf("failed to create composite workflow: %w", err)
		}

		for _, source := range sources {
			child, err := s.createSubWorkflowInTx(ctx, tx, actor, composite, source.Name, nil, nil)
			if err != nil {
				return err
			}
			child.OriginalWorkflowID = &source.ID
			child.Category = source.Category
			child.Description = source.Description
			child.RequiredEntities = append(model.StringArray{}, source.RequiredEntities...)
			if err := tx.Save(child).Error; err != nil {
				return fmt.Errorf("failed to record sub-workflow lineage: %w", err)
			}

			stages, tasks := copyGraph(source, child.ID, actor.UserID, copyGraphOptions{now: now})
			if len(stages) > 0 {
				if err := tx.Create(&stages).Error; err != nil {
					return fmt.Errorf("failed to copy stages into sub-workflow: %w", err)
				}
			}
			if len(tasks) > 0 {
				if err := tx.Create(&tasks).Error; err != nil {
					return fmt.Errorf("failed to copy tasks into sub-workflow: %w", err)
				}
			}
			if _, err := recomputeWorkflowProgressInTx(ctx, tx, child.ID); err != nil {
				return err
			}

			// Demote the original: it survives as history, cancelled and
			// pointing at the composite that absorbed it.
			if source.Config == nil {
				source.Config = model.JSONMap{}
			}
			source.Config["mergedInto"] = composite.ID.String()
			source.Status = model.WorkflowStatusCancelled
			source.UpdatedBy = actor.UserID
			if err := tx.Model(&model.Workflow{}).
				Where("id = ?", source.ID).
				Updates(map[string]any{"status": source.Status, "config": source.Config, "updated_by": actor.UserID}).Error; err != nil {
				return fmt.Errorf("failed to demote merged workflow %s: %w", source.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.ws.GetWorkflow(ctx, actor, composite.ID)
}

// SyncSubWorkflowProgress mirrors a sub-workflow's status and progress into
// the tracking task on its parent. This is the only path by which a child's
// state reaches the parent: the parent's own progress percentage still
// derives solely from its own tasks, with no cascading roll-up.
func (s *CompositionService) SyncSubWorkflowProgress(ctx context.Context, actor auth.Actor, subWorkflowID uuid.UUID) (*model.Task, error) {
	var tracking *model.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := getWorkflowInTx(ctx, tx, subWorkflowID, actor.TenantID)
		if err != nil {
			return err
		}
		if sub.ParentWorkflowID == nil {
			return model.NewValidationError("workflow %s is not a sub-workflow", subWorkflowID)
		}

		var parentTasks []model.Task
		if err := tx.WithContext(ctx).Where("workflow_id = ?", *sub.ParentWorkflowID).Find(&parentTasks).Error; err != nil {
			return fmt.Errorf("failed to retrieve parent tasks: %w", err)
		}
		for i := range parentTasks {
			if parentTasks[i].TrackedSubWorkflowID() == sub.ID {
				tracking = &parentTasks[i]
				break
			}
		}
		if tracking == nil {
			return model.NewNotFoundError("tracking task for sub-workflow", subWorkflowID)
		}

		now := time.Now().UTC()
		switch sub.Status {
		case model.WorkflowStatusCompleted:
			tracking.Status = model.TaskStatusCompleted
			tracking.CompletedAt = &now
			elapsed := now.Sub(sub.CreatedAt).Hours()
			tracking.ActualHours = &elapsed
			tracking.Timeline[model.TimelineKeyEnd] = now.Format(time.RFC3339)
		case model.WorkflowStatusActive:
			tracking.Status = model.TaskStatusInProgress
		case model.WorkflowStatusCancelled:
			tracking.Status = model.TaskStatusBlocked
		}
		tracking.Timeline[model.TimelineKeySubWorkflowStatus] = string(sub.Status)
		tracking.Timeline[model.TimelineKeySubWorkflowProgress] = sub.Progress
		tracking.UpdatedBy = actor.UserID

		if err := tx.Save(tracking).Error; err != nil {
			return fmt.Errorf("failed to update tracking task: %w", err)
		}
		_, err = recomputeWorkflowProgressInTx(ctx, tx, *sub.ParentWorkflowID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tracking, nil
}

