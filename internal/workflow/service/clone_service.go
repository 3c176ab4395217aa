package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltwise/voltwise/internal/auth"
	"github.com/voltwise/voltwise/internal/workflow/model"
)

// CloneService produces independent copies of existing workflows. All
// identities are remapped: no stage or task is ever shared by reference
// between a source and its clone.
type CloneService struct {
	db     *gorm.DB
	ws     *WorkflowService
	plants PlantDirectory
}

func NewCloneService(db *gorm.DB, ws *WorkflowService, plants PlantDirectory) *CloneService {
	return &CloneService{db: db, ws: ws, plants: plants}
}

// Clone copies a workflow into a new Draft instance with progress reset to
// zero and OriginalWorkflowID recording the lineage. When tasks are copied,
// statuses reset to TO_START, assignee and completion fields are cleared,
// dependency references are remapped into the clone (dropping any that point
// at tasks that were not copied), and due dates are shifted relative to
// "now": a past due date becomes now+7 days, a future one keeps its original
// day-offset from the source task's creation time. The clone is committed as
// a single atomic unit.
func (s *CloneService) Clone(ctx context.Context, actor auth.Actor, sourceID uuid.UUID, opts model.CloneOptions) (*model.Workflow, error) {
	source, err := s.ws.GetWorkflow(ctx, actor, sourceID)
	if err != nil {
		return nil, err
	}

	targetPlantID := source.PlantID
	if opts.TargetPlantID != nil {
		// Retargeting is allowed, but only inside the caller's tenant.
		if _, err := s.ws.lookupPlant(ctx, *opts.TargetPlantID, actor.TenantID); err != nil {
			return nil, err
		}
		targetPlantID = *opts.TargetPlantID
	}

	now := time.Now().UTC()

	clone := &model.Workflow{
		Name:               source.Name + " (copy)",
		Description:        source.Description,
		Category:           source.Category,
		Type:               source.Type,
		PlantID:            targetPlantID,
		TenantID:           source.TenantID,
		Status:             model.WorkflowStatusDraft,
		Progress:           0,
		TemplateID:         source.TemplateID,
		OriginalWorkflowID: &source.ID,
		Config:             cloneConfig(source.Config, opts.FieldOverrides, source.ID),
		RequiredEntities:   append(model.StringArray{}, source.RequiredEntities...),
	}
	if opts.NewName != nil && *opts.NewName != "" {
		clone.Name = *opts.NewName
	}
	clone.CreatedBy = actor.UserID
	clone.UpdatedBy = actor.UserID

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(clone).Error; err != nil {
			return fmt.Errorf("failed to create workflow clone: %w", err)
		}
		if !opts.CopyTasks {
			return nil
		}

		stages, tasks := copyGraph(source, clone.ID, actor.UserID, copyGraphOptions{
			shiftDueDates:     true,
			resetState:        true,
			copyDocumentLinks: opts.CopyDocumentLinks,
			now:               now,
		})
		if len(stages) > 0 {
			if err := tx.Create(&stages).Error; err != nil {
				return fmt.Errorf("failed to copy stages: %w", err)
			}
		}
		if len(tasks) > 0 {
			if err := tx.Create(&tasks).Error; err != nil {
				return fmt.Errorf("failed to copy tasks: %w", err)
			}
		}

		clone.Progress = ComputeProgress(tasks)
		if err := tx.Model(&model.Workflow{}).
			Where("id = ?", clone.ID).
			Update("progress", clone.Progress).Error; err != nil {
			return fmt.Errorf("failed to set clone progress: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.ws.GetWorkflow(ctx, actor, clone.ID)
}

type copyGraphOptions struct {
	shiftDueDates     bool
	resetState        bool
	copyDocumentLinks bool
	now               time.Time
}

// copyGraph deep-copies a workflow's stages and tasks under a new workflow
// ID, remapping stage references and task dependencies through old-to-new ID
// maps. Dependencies whose source task is absent from the copy are dropped
// so the copy never dangles into the source.
func copyGraph(source *model.Workflow, targetWorkflowID uuid.UUID, userID string, opts copyGraphOptions) ([]model.Stage, []model.Task) {
	stageIDMap := make(map[uuid.UUID]uuid.UUID, len(source.Stages))
	stages := make([]model.Stage, 0, len(source.Stages))
	for _, src := range source.Stages {
		stage := model.Stage{
			WorkflowID:        targetWorkflowID,
			Name:              src.Name,
			OrderIndex:        src.OrderIndex,
			DurationDays:      copyIntPtr(src.DurationDays),
			ResponsibleEntity: copyStringPtr(src.ResponsibleEntity),
		}
		stage.ID = uuid.New()
		stage.CreatedBy = userID
		stage.UpdatedBy = userID
		stageIDMap[src.ID] = stage.ID
		stages = append(stages, stage)
	}

	taskIDMap := make(map[uuid.UUID]uuid.UUID, len(source.Tasks))
	tasks := make([]model.Task, 0, len(source.Tasks))
	for _, src := range source.Tasks {
		task := model.Task{
			WorkflowID:     targetWorkflowID,
			Title:          src.Title,
			Description:    src.Description,
			Status:         src.Status,
			Priority:       src.Priority,
			Assignee:       copyStringPtr(src.Assignee),
			DueDate:        copyTimePtr(src.DueDate),
			CompletedAt:    copyTimePtr(src.CompletedAt),
			EstimatedHours: copyFloatPtr(src.EstimatedHours),
			ActualHours:    copyFloatPtr(src.ActualHours),
			Timeline:       copyTimeline(src.Timeline),
		}
		if src.StageID != nil {
			if newStageID, ok := stageIDMap[*src.StageID]; ok {
				task.StageID = &newStageID
			}
		}
		if opts.resetState {
			task.Status = model.TaskStatusToStart
			task.Assignee = nil
			task.CompletedAt = nil
			task.ActualHours = nil
			delete(task.Timeline, model.TimelineKeyEnd)
		}
		// A copied tracking task would point at the source's child
		// hierarchy; drop the stale reference regardless of state reset.
		delete(task.Timeline, model.TimelineKeySubWorkflowID)
		delete(task.Timeline, model.TimelineKeySubWorkflowStatus)
		delete(task.Timeline, model.TimelineKeySubWorkflowProgress)
		if opts.shiftDueDates && src.DueDate != nil {
			shifted := shiftDueDate(*src.DueDate, src.CreatedAt, opts.now)
			task.DueDate = &shifted
			task.Timeline[model.TimelineKeyDue] = shifted.Format(time.RFC3339)
		}
		if opts.copyDocumentLinks {
			task.DocumentIDs = append(model.UUIDArray{}, src.DocumentIDs...)
		}
		task.ID = uuid.New()
		task.CreatedBy = userID
		task.UpdatedBy = userID
		taskIDMap[src.ID] = task.ID
		tasks = append(tasks, task)
	}

	for i := range tasks {
		src := source.Tasks[i]
		for _, dep := range src.DependsOn {
			if newDep, ok := taskIDMap[dep]; ok {
				tasks[i].DependsOn = append(tasks[i].DependsOn, newDep)
			}
		}
	}
	return stages, tasks
}

// shiftDueDate applies the clone due-date rule: a due date already in the
// past becomes now+7 days; otherwise the original's day-offset from its own
// creation time is applied to the clone's creation time.
func shiftDueDate(due, sourceCreatedAt, now time.Time) time.Time {
	if due.Before(now) {
		return now.AddDate(0, 0, 7)
	}
	return now.Add(due.Sub(sourceCreatedAt))
}

func cloneConfig(source model.JSONMap, overrides model.JSONMap, sourceID uuid.UUID) model.JSONMap {
	config := model.JSONMap{}
	for k, v := range source {
		config[k] = v
	}
	for k, v := range overrides {
		config[k] = v
	}
	config[model.ConfigKeyClonedFrom] = sourceID.String()
	return config
}

func copyTimeline(src model.JSONMap) model.JSONMap {
	timeline := model.JSONMap{}
	for k, v := range src {
		timeline[k] = v
	}
	return timeline
}

func copyStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
