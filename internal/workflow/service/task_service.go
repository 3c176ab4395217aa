package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltwise/voltwise/internal/auth"
	"github.com/voltwise/voltwise/internal/workflow/model"
)

// TaskService owns the stage/task graph invariants: unique stage order
// indices, stage/task co-ownership, and dependency validity. All dependency
// references must point at tasks of the same workflow; cyclic chains are not
// rejected at write time (see ValidateAcyclic).
type TaskService struct {
	db            *gorm.DB
	notifications chan<- model.TaskCompletionNotification
}

func NewTaskService(db *gorm.DB, notifications chan<- model.TaskCompletionNotification) *TaskService {
	return &TaskService{db: db, notifications: notifications}
}

// AddTask validates and inserts a task into an existing workflow. The task's
// stage, when set, must belong to the same workflow, and every dependency
// must reference an existing task of that workflow.
func (s *TaskService) AddTask(ctx context.Context, actor auth.Actor, task *model.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if task.Title == "" {
		return model.NewValidationError("task title cannot be empty")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		workflow, err := getWorkflowInTx(ctx, tx, task.WorkflowID, actor.TenantID)
		if err != nil {
			return err
		}

		if task.StageID != nil {
			if err := s.checkStageOwnership(ctx, tx, *task.StageID, workflow.ID); err != nil {
				return err
			}
		}
		if err := s.checkDependenciesInTx(ctx, tx, workflow.ID, uuid.Nil, task.DependsOn); err != nil {
			return err
		}

		if task.Status == "" {
			task.Status = model.TaskStatusToStart
		}
		if task.Priority == "" {
			task.Priority = model.TaskPriorityMedium
		}
		task.CreatedBy = actor.UserID
		task.UpdatedBy = actor.UserID

		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		_, err = recomputeWorkflowProgressInTx(ctx, tx, workflow.ID)
		return err
	})
}

// UpdateTaskStatus transitions a task and recomputes the owning workflow's
// progress within the same transaction. A transition to COMPLETED stamps the
// completion time and emits a completion notification after commit.
func (s *TaskService) UpdateTaskStatus(ctx context.Context, actor auth.Actor, taskID uuid.UUID, newStatus model.TaskStatus) (*model.Task, error) {
	if taskID == uuid.Nil {
		return nil, fmt.Errorf("task ID cannot be nil")
	}
	switch newStatus {
	case model.TaskStatusToStart, model.TaskStatusInProgress, model.TaskStatusCompleted,
		model.TaskStatusDelayed, model.TaskStatusBlocked:
	default:
		return nil, model.NewValidationError("unknown task status %q", newStatus)
	}

	var task *model.Task
	var newProgress int
	var becameCompleted bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = s.getTaskInTx(ctx, tx, taskID, actor.TenantID)
		if err != nil {
			return err
		}

		wasCompleted := task.Status == model.TaskStatusCompleted
		task.Status = newStatus
		task.UpdatedBy = actor.UserID

		now := time.Now().UTC()
		if newStatus == model.TaskStatusCompleted && !wasCompleted {
			task.CompletedAt = &now
			if task.Timeline == nil {
				task.Timeline = model.JSONMap{}
			}
			task.Timeline[model.TimelineKeyEnd] = now.Format(time.RFC3339)
			becameCompleted = true
		}
		if newStatus != model.TaskStatusCompleted && wasCompleted {
			task.CompletedAt = nil
			delete(task.Timeline, model.TimelineKeyEnd)
		}

		if err := tx.Save(task).Error; err != nil {
			return fmt.Errorf("failed to update task %s: %w", task.ID, err)
		}

		newProgress, err = recomputeWorkflowProgressInTx(ctx, tx, task.WorkflowID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if becameCompleted {
		s.notifyCompletion(model.TaskCompletionNotification{
			TaskID:      task.ID,
			WorkflowID:  task.WorkflowID,
			NewProgress: newProgress,
		})
	}
	return task, nil
}

// SetTaskDependencies replaces a task's dependency set after validating that
// every referenced task lives in the same workflow and the task does not
// depend on itself.
func (s *TaskService) SetTaskDependencies(ctx context.Context, actor auth.Actor, taskID uuid.UUID, dependsOn []uuid.UUID) (*model.Task, error) {
	if taskID == uuid.Nil {
		return nil, fmt.Errorf("task ID cannot be nil")
	}

	var task *model.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = s.getTaskInTx(ctx, tx, taskID, actor.TenantID)
		if err != nil {
			return err
		}
		if err := s.checkDependenciesInTx(ctx, tx, task.WorkflowID, task.ID, dependsOn); err != nil {
			return err
		}
		task.DependsOn = dependsOn
		task.UpdatedBy = actor.UserID
		if err := tx.Save(task).Error; err != nil {
			return fmt.Errorf("failed to update task %s: %w", task.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetTask retrieves a task by ID, scoped to the caller's tenant.
func (s *TaskService) GetTask(ctx context.Context, actor auth.Actor, taskID uuid.UUID) (*model.Task, error) {
	if taskID == uuid.Nil {
		return nil, fmt.Errorf("task ID cannot be nil")
	}
	var task *model.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = s.getTaskInTx(ctx, tx, taskID, actor.TenantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks retrieves all tasks of a workflow. Returns an empty slice, not
// an error, when the workflow has no tasks.
func (s *TaskService) ListTasks(ctx context.Context, actor auth.Actor, workflowID uuid.UUID) ([]model.Task, error) {
	if workflowID == uuid.Nil {
		return nil, fmt.Errorf("workflow ID cannot be nil")
	}
	if _, err := getWorkflowInTx(ctx, s.db, workflowID, actor.TenantID); err != nil {
		return nil, err
	}

	var tasks []model.Task
	result := s.db.WithContext(ctx).Where("workflow_id = ?", workflowID).Find(&tasks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to retrieve tasks: %w", result.Error)
	}
	return tasks, nil
}

// ValidateAcyclic checks the workflow's dependency graph for cycles with a
// Kahn-style traversal. Mutation paths never call this; it exists as an
// explicit query for callers that want the guarantee.
func (s *TaskService) ValidateAcyclic(ctx context.Context, actor auth.Actor, workflowID uuid.UUID) error {
	tasks, err := s.ListTasks(ctx, actor, workflowID)
	if err != nil {
		return err
	}

	indegree := make(map[uuid.UUID]int, len(tasks))
	dependents := make(map[uuid.UUID][]uuid.UUID, len(tasks))
	for _, t := range tasks {
		indegree[t.ID] += 0
		for _, dep := range t.DependsOn {
			indegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	queue := make([]uuid.UUID, 0, len(tasks))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(tasks) {
		remaining := make([]uuid.UUID, 0)
		for id, deg := range indegree {
			if deg > 0 {
				remaining = append(remaining, id)
			}
		}
		return model.NewValidationError("workflow %s has a cyclic dependency chain involving tasks %v", workflowID, remaining)
	}
	return nil
}

// getTaskInTx loads a task and verifies its workflow belongs to the tenant.
func (s *TaskService) getTaskInTx(ctx context.Context, tx *gorm.DB, taskID uuid.UUID, tenantID string) (*model.Task, error) {
	var task model.Task
	result := tx.WithContext(ctx).First(&task, "id = ?", taskID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFoundError("task", taskID)
		}
		return nil, fmt.Errorf("failed to retrieve task: %w", result.Error)
	}
	if _, err := getWorkflowInTx(ctx, tx, task.WorkflowID, tenantID); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) checkStageOwnership(ctx context.Context, tx *gorm.DB, stageID, workflowID uuid.UUID) error {
	var stage model.Stage
	result := tx.WithContext(ctx).First(&stage, "id = ?", stageID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return model.NewNotFoundError("stage", stageID)
		}
		return fmt.Errorf("failed to retrieve stage: %w", result.Error)
	}
	if stage.WorkflowID != workflowID {
		return &model.ForeignStageError{StageID: stageID, WorkflowID: workflowID}
	}
	return nil
}

// checkDependenciesInTx rejects self-references and dependencies pointing
// outside the workflow. selfID is uuid.Nil for tasks not yet created.
func (s *TaskService) checkDependenciesInTx(ctx context.Context, tx *gorm.DB, workflowID, selfID uuid.UUID, dependsOn []uuid.UUID) error {
	if len(dependsOn) == 0 {
		return nil
	}
	for _, dep := range dependsOn {
		if selfID != uuid.Nil && dep == selfID {
			return model.NewValidationError("task %s cannot depend on itself", selfID)
		}
	}

	var count int64
	if err := tx.WithContext(ctx).Model(&model.Task{}).
		Where("workflow_id = ? AND id IN ?", workflowID, dependsOn).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to validate task dependencies: %w", err)
	}
	if count != int64(len(uniqueIDs(dependsOn))) {
		return model.NewValidationError("task dependencies must reference existing tasks of workflow %s", workflowID)
	}
	return nil
}

// recomputeWorkflowProgressInTx re-derives a workflow's progress from its
// task set inside an open transaction and returns the new percentage.
// Shared by every service in this package that mutates tasks.
func recomputeWorkflowProgressInTx(ctx context.Context, tx *gorm.DB, workflowID uuid.UUID) (int, error) {
	var tasks []model.Task
	if err := tx.WithContext(ctx).Where("workflow_id = ?", workflowID).Find(&tasks).Error; err != nil {
		return 0, fmt.Errorf("failed to retrieve tasks for progress computation: %w", err)
	}
	progress := ComputeProgress(tasks)
	if err := tx.WithContext(ctx).Model(&model.Workflow{}).
		Where("id = ?", workflowID).
		Update("progress", progress).Error; err != nil {
		return 0, fmt.Errorf("failed to update workflow progress: %w", err)
	}
	return progress, nil
}

// notifyCompletion emits a completion notification without blocking the
// request path. A full channel drops the event with a warning.
func (s *TaskService) notifyCompletion(n model.TaskCompletionNotification) {
	if s.notifications == nil {
		return
	}
	select {
	case s.notifications <- n:
	default:
		slog.Warn("task completion notification channel full, dropping event",
			"task_id", n.TaskID,
			"workflow_id", n.WorkflowID,
		)
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
