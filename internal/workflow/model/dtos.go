package model

import (
	"time"

	"github.com/google/uuid"
)

// TaskInput describes a task supplied by a caller when building a workflow
// without a template. DependsOn holds indices into the flattened task list
// of the request, remapped to live task IDs during instantiation.
type TaskInput struct {
	Title          string       `json:"title" binding:"required,min=1,max=255"`
	Description    string       `json:"description,omitempty"`
	Priority       TaskPriority `json:"priority,omitempty" binding:"omitempty,oneof=LOW MEDIUM HIGH"`
	Assignee       *string      `json:"assignee,omitempty"`
	DueDate        *time.Time   `json:"dueDate,omitempty"`
	EstimatedHours *float64     `json:"estimatedHours,omitempty"`
	DependsOn      []int        `json:"dependsOn,omitempty"`
	DocumentIDs    []uuid.UUID  `json:"documentIds,omitempty"`
}

// StageInput describes a stage supplied by a caller when building a workflow
// without a template.
type StageInput struct {
	Name              string      `json:"name" binding:"required,min=1,max=255"`
	OrderIndex        int         `json:"orderIndex" binding:"gte=0"`
	DurationDays      *int        `json:"durationDays,omitempty"`
	ResponsibleEntity *string     `json:"responsibleEntity,omitempty"`
	Tasks             []TaskInput `json:"tasks,omitempty" binding:"dive"`
}

// InstantiationSource is the source a new workflow is materialized from:
// either a template reference or explicit caller-supplied stages. Exactly
// one variant is dispatched at the top of Instantiate.
type InstantiationSource interface {
	isInstantiationSource()
}

// TemplateRef selects instantiation from a catalog template (persisted or
// built-in).
type TemplateRef struct {
	TemplateID uuid.UUID
}

func (TemplateRef) isInstantiationSource() {}

// ExplicitStages selects instantiation from caller-supplied stage/task data,
// skipping template lookup.
type ExplicitStages struct {
	Stages []StageInput
}

func (ExplicitStages) isInstantiationSource() {}

// InstantiationOverrides carries caller choices applied on top of the source.
type InstantiationOverrides struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Category    string         `json:"category,omitempty"`
	Status      WorkflowStatus `json:"status,omitempty" binding:"omitempty,oneof=DRAFT ACTIVE"`
	Config      JSONMap        `json:"config,omitempty"`
}

// CloneOptions controls how a workflow is cloned.
type CloneOptions struct {
	NewName           *string    `json:"newName,omitempty"`
	TargetPlantID     *uuid.UUID `json:"targetPlantId,omitempty"`
	CopyTasks         bool       `json:"copyTasks"`
	CopyDocumentLinks bool       `json:"copyDocumentLinks"`
	FieldOverrides    JSONMap    `json:"fieldOverrides,omitempty"`
}

// DefaultCloneOptions returns the option set used when the caller supplies
// nothing: tasks are copied, document links are not.
func DefaultCloneOptions() CloneOptions {
	return CloneOptions{CopyTasks: true}
}

// TemplateFilter narrows a template catalog listing.
type TemplateFilter struct {
	Category  string   `form:"category" json:"category,omitempty"`
	Phase     Phase    `form:"phase" json:"phase,omitempty"`
	PlantType string   `form:"plantType" json:"plantType,omitempty"`
	PowerKw   *float64 `form:"powerKw" json:"powerKw,omitempty"`
}

// Hierarchy is the one-level neighborhood of a workflow: its parent, its
// children, optionally its siblings, and its clone original. No recursion
// beyond one level in either direction.
type Hierarchy struct {
	Self     *Workflow  `json:"self"`
	Parent   *Workflow  `json:"parent,omitempty"`
	Children []Workflow `json:"children"`
	Siblings []Workflow `json:"siblings,omitempty"`
	Original *Workflow  `json:"original,omitempty"`
}
