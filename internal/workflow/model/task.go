package model

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the status of a task within a workflow.
type TaskStatus string

const (
	TaskStatusToStart    TaskStatus = "TO_START"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusDelayed    TaskStatus = "DELAYED"
	TaskStatusBlocked    TaskStatus = "BLOCKED"
)

// TaskPriority represents the priority of a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
)

// Timeline keys written by the engines.
const (
	TimelineKeyStart               = "start"
	TimelineKeyDue                 = "due"
	TimelineKeyEnd                 = "end"
	TimelineKeySubWorkflowID       = "subWorkflowId"       // set on tracking tasks only
	TimelineKeySubWorkflowStatus   = "subWorkflowStatus"   // mirrored by progress sync
	TimelineKeySubWorkflowProgress = "subWorkflowProgress" // mirrored by progress sync
)

// Task is a unit of work within a workflow, optionally grouped under a stage.
// DependsOn references tasks within the same workflow only; cross-workflow
// dependencies are rejected at write time.
type Task struct {
	BaseModel
	WorkflowID     uuid.UUID    `gorm:"type:uuid;column:workflow_id;not null;index" json:"workflowId"`
	StageID        *uuid.UUID   `gorm:"type:uuid;column:stage_id" json:"stageId,omitempty"`
	Title          string       `gorm:"type:varchar(255);column:title;not null" json:"title"`
	Description    string       `gorm:"type:text;column:description" json:"description"`
	Status         TaskStatus   `gorm:"type:varchar(20);column:status;not null" json:"status"`
	Priority       TaskPriority `gorm:"type:varchar(20);column:priority;not null" json:"priority"`
	Assignee       *string      `gorm:"type:varchar(255);column:assignee" json:"assignee,omitempty"`
	DueDate        *time.Time   `gorm:"column:due_date" json:"dueDate,omitempty"`
	CompletedAt    *time.Time   `gorm:"column:completed_at" json:"completedAt,omitempty"`
	EstimatedHours *float64     `gorm:"column:estimated_hours" json:"estimatedHours,omitempty"`
	ActualHours    *float64     `gorm:"column:actual_hours" json:"actualHours,omitempty"`
	DependsOn      UUIDArray    `gorm:"type:jsonb;column:depends_on;serializer:json" json:"dependsOn,omitempty"`
	DocumentIDs    UUIDArray    `gorm:"type:jsonb;column:document_ids;serializer:json" json:"documentIds,omitempty"`
	Timeline       JSONMap      `gorm:"type:jsonb;column:timeline;serializer:json" json:"timeline,omitempty"`
}

func (t *Task) TableName() string {
	return "workflow_tasks"
}

// IsTracking reports whether the task is a sub-workflow tracking task on a
// parent workflow.
func (t *Task) IsTracking() bool {
	if t.Timeline == nil {
		return false
	}
	_, ok := t.Timeline[TimelineKeySubWorkflowID]
	return ok
}

// TrackedSubWorkflowID returns the sub-workflow ID stored in the timeline of
// a tracking task, or uuid.Nil when the task tracks nothing.
func (t *Task) TrackedSubWorkflowID() uuid.UUID {
	if t.Timeline == nil {
		return uuid.Nil
	}
	raw, ok := t.Timeline[TimelineKeySubWorkflowID]
	if !ok {
		return uuid.Nil
	}
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// TaskCompletionNotification is emitted when a task transitions to COMPLETED.
// Consumed by notification/document collaborators outside this engine.
type TaskCompletionNotification struct {
	TaskID      uuid.UUID `json:"taskId"`
	WorkflowID  uuid.UUID `json:"workflowId"`
	NewProgress int       `json:"newProgress"`
}
