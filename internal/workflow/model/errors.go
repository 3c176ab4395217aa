package model

import (
	"fmt"

	"github.com/google/uuid"
)

// NotFoundError reports that an entity does not exist or is not visible
// to the caller's tenant. Kind identifies the entity type (e.g. "workflow",
// "task", "plant", "template").
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NewNotFoundError builds a NotFoundError for the given entity kind and ID.
func NewNotFoundError(kind string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id.String()}
}

// ValidationError reports a rejected mutation with the reason it was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// DuplicateOrderError reports a stage insertion whose order index collides
// with an existing stage of the same workflow.
type DuplicateOrderError struct {
	WorkflowID uuid.UUID
	OrderIndex int
}

func (e *DuplicateOrderError) Error() string {
	return fmt.Sprintf("workflow %s already has a stage at order index %d", e.WorkflowID, e.OrderIndex)
}

// ForeignStageError reports a task referencing a stage that belongs to a
// different workflow.
type ForeignStageError struct {
	StageID    uuid.UUID
	WorkflowID uuid.UUID
}

func (e *ForeignStageError) Error() string {
	return fmt.Sprintf("stage %s does not belong to workflow %s", e.StageID, e.WorkflowID)
}

// CrossPlantMergeError reports a merge request spanning workflows that are
// attached to different plants.
type CrossPlantMergeError struct {
	WorkflowIDs []uuid.UUID
}

func (e *CrossPlantMergeError) Error() string {
	return fmt.Sprintf("cannot merge workflows attached to different plants: %v", e.WorkflowIDs)
}

// TemplateResolutionError reports a phase composition whose mapped template
// could not be resolved. The whole composition is aborted.
type TemplateResolutionError struct {
	Phase      Phase
	TemplateID uuid.UUID
}

func (e *TemplateResolutionError) Error() string {
	return fmt.Sprintf("template %s for phase %s could not be resolved", e.TemplateID, e.Phase)
}
