package model

import "github.com/google/uuid"

// WorkflowStatus represents the lifecycle status of a workflow instance.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "DRAFT"
	WorkflowStatusActive    WorkflowStatus = "ACTIVE"
	WorkflowStatusPaused    WorkflowStatus = "PAUSED"
	WorkflowStatusCompleted WorkflowStatus = "COMPLETED"
	WorkflowStatusCancelled WorkflowStatus = "CANCELLED"
)

// WorkflowType distinguishes plain workflows from composites produced by a
// merge.
type WorkflowType string

const (
	WorkflowTypeStandard  WorkflowType = "STANDARD"
	WorkflowTypeComposite WorkflowType = "COMPOSITE"
)

// Config keys written by the engines.
const (
	ConfigKeyPlantPowerKw      = "plantPowerKw"      // power snapshot taken at instantiation
	ConfigKeyPlantType         = "plantType"         // plant type snapshot taken at instantiation
	ConfigKeyComposed          = "composed"          // true when built by phase composition
	ConfigKeySourceWorkflowIDs = "sourceWorkflowIds" // merge provenance
	ConfigKeyMergedAt          = "mergedAt"          // merge timestamp (RFC 3339)
	ConfigKeyClonedFrom        = "clonedFrom"        // clone provenance
)

// Workflow is a live, trackable instance materialized from a template, from
// caller-supplied stages, or by the clone/composition engines.
//
// PlantID and TenantID are fixed at creation: a clone may target a different
// plant explicitly, but no operation ever moves a workflow across tenants.
// Progress is derived from task state and never set directly by callers.
type Workflow struct {
	BaseModel
	Name               string         `gorm:"type:varchar(255);column:name;not null" json:"name"`
	Description        string         `gorm:"type:text;column:description" json:"description"`
	Category           string         `gorm:"type:varchar(100);column:category" json:"category"`
	Type               WorkflowType   `gorm:"type:varchar(20);column:type;not null" json:"type"`
	PlantID            uuid.UUID      `gorm:"type:uuid;column:plant_id;not null" json:"plantId"`
	TenantID           string         `gorm:"type:varchar(100);column:tenant_id;not null" json:"tenantId"`
	Status             WorkflowStatus `gorm:"type:varchar(20);column:status;not null" json:"status"`
	Progress           int            `gorm:"column:progress;not null;default:0" json:"progress"`
	TemplateID         *uuid.UUID     `gorm:"type:uuid;column:template_id" json:"templateId,omitempty"`
	ParentWorkflowID   *uuid.UUID     `gorm:"type:uuid;column:parent_workflow_id" json:"parentWorkflowId,omitempty"`
	OriginalWorkflowID *uuid.UUID     `gorm:"type:uuid;column:original_workflow_id" json:"originalWorkflowId,omitempty"`
	Config             JSONMap        `gorm:"type:jsonb;column:config;serializer:json" json:"config,omitempty"`
	RequiredEntities   StringArray    `gorm:"type:jsonb;column:required_entities;serializer:json" json:"requiredEntities,omitempty"`

	// Relationships. Stages and tasks are owned: they are created with the
	// workflow (or added later) and removed only by workflow deletion.
	Stages []Stage `gorm:"foreignKey:WorkflowID;references:ID" json:"stages,omitempty"`
	Tasks  []Task  `gorm:"foreignKey:WorkflowID;references:ID" json:"tasks,omitempty"`
}

func (w *Workflow) TableName() string {
	return "workflows"
}

// Stage is an ordered grouping of tasks within a workflow. OrderIndex is
// unique within the workflow and defines execution order; stages are not
// strictly sequential and may overlap in time.
type Stage struct {
	BaseModel
	WorkflowID        uuid.UUID `gorm:"type:uuid;column:workflow_id;not null;index" json:"workflowId"`
	Name              string    `gorm:"type:varchar(255);column:name;not null" json:"name"`
	OrderIndex        int       `gorm:"column:order_index;not null" json:"orderIndex"`
	DurationDays      *int      `gorm:"column:duration_days" json:"durationDays,omitempty"`
	ResponsibleEntity *string   `gorm:"type:varchar(255);column:responsible_entity" json:"responsibleEntity,omitempty"`
}

func (s *Stage) TableName() string {
	return "workflow_stages"
}
