package model

// Phase identifies one of the four canonical sub-domains of a full plant
// activation process. Partial templates tagged with a phase can be composed
// into a single workflow.
type Phase string

const (
	PhaseDesign       Phase = "DESIGN"
	PhaseConnection   Phase = "CONNECTION"
	PhaseRegistration Phase = "REGISTRATION"
	PhaseFiscal       Phase = "FISCAL"
)

// PhaseOrder is the canonical composition order of phases. Composition
// iterates this slice, never the caller's map order.
var PhaseOrder = []Phase{PhaseDesign, PhaseConnection, PhaseRegistration, PhaseFiscal}

// PlantTypeAll is the wildcard plant type matching every plant.
const PlantTypeAll = "All"

// TaskTemplate is the definition of a task inside a stage template.
// DependsOn holds template-local task indices (position within the flattened
// task list of the template), remapped to live task IDs at instantiation.
type TaskTemplate struct {
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	Priority       TaskPriority `json:"priority,omitempty"`
	EstimatedHours float64      `json:"estimatedHours,omitempty"`
	DurationDays   int          `json:"durationDays,omitempty"`
	DependsOn      []int        `json:"dependsOn,omitempty"`
	Documents      []string     `json:"documents,omitempty"`
}

// StageTemplate is the definition of an ordered stage inside a workflow
// template.
type StageTemplate struct {
	Name              string         `json:"name"`
	OrderIndex        int            `json:"orderIndex"`
	DurationDays      int            `json:"durationDays,omitempty"`
	ResponsibleEntity string         `json:"responsibleEntity,omitempty"`
	Tasks             []TaskTemplate `json:"tasks"`
}

// WorkflowTemplate is a catalog entry describing a reusable workflow shape.
// Persisted custom templates and built-in static templates share this type;
// built-ins carry BuiltIn=true and are never written to the database.
type WorkflowTemplate struct {
	BaseModel
	Name                  string          `gorm:"type:varchar(255);column:name;not null" json:"name"`
	Description           string          `gorm:"type:text;column:description" json:"description"`
	Category              string          `gorm:"type:varchar(100);column:category;not null" json:"category"`
	Phase                 *Phase          `gorm:"type:varchar(50);column:phase" json:"phase,omitempty"`
	PlantTypes            StringArray     `gorm:"type:jsonb;column:plant_types;not null;serializer:json" json:"plantTypes"`
	MinPowerKw            *float64        `gorm:"column:min_power_kw" json:"minPowerKw,omitempty"`
	MaxPowerKw            *float64        `gorm:"column:max_power_kw" json:"maxPowerKw,omitempty"`
	ProtectedArea         bool            `gorm:"column:protected_area;not null;default:false" json:"protectedArea"`
	EstimatedDurationDays int             `gorm:"column:estimated_duration_days" json:"estimatedDurationDays,omitempty"`
	RecurrenceRule        string          `gorm:"type:varchar(100);column:recurrence_rule" json:"recurrenceRule,omitempty"`
	Stages                []StageTemplate `gorm:"type:jsonb;column:stages;not null;serializer:json" json:"stages"`
	RequiredEntities      StringArray     `gorm:"type:jsonb;column:required_entities;serializer:json" json:"requiredEntities"`
	BaseDocuments         StringArray     `gorm:"type:jsonb;column:base_documents;serializer:json" json:"baseDocuments"`
	Conditions            ConditionSet    `gorm:"type:jsonb;column:conditions;serializer:json" json:"conditions,omitempty"`
	BuiltIn               bool            `gorm:"-" json:"builtIn,omitempty"`
}

func (wt *WorkflowTemplate) TableName() string {
	return "workflow_templates"
}

// MatchesPlantType reports whether the template applies to the given plant
// type, treating PlantTypeAll as a wildcard.
func (wt *WorkflowTemplate) MatchesPlantType(plantType string) bool {
	if len(wt.PlantTypes) == 0 {
		return true
	}
	return wt.PlantTypes.Contains(PlantTypeAll) || wt.PlantTypes.Contains(plantType)
}

// MatchesPower reports whether powerKw falls within the template's
// [MinPowerKw, MaxPowerKw) range. A missing bound is unbounded.
func (wt *WorkflowTemplate) MatchesPower(powerKw float64) bool {
	if wt.MinPowerKw != nil && powerKw < *wt.MinPowerKw {
		return false
	}
	if wt.MaxPowerKw != nil && powerKw >= *wt.MaxPowerKw {
		return false
	}
	return true
}

// MatchesPhase reports whether the template carries the requested phase.
// An empty requested phase matches any template.
func (wt *WorkflowTemplate) MatchesPhase(phase Phase) bool {
	if phase == "" {
		return true
	}
	return wt.Phase != nil && *wt.Phase == phase
}

// TaskCount returns the number of task definitions across all stages.
func (wt *WorkflowTemplate) TaskCount() int {
	count := 0
	for _, stage := range wt.Stages {
		count += len(stage.Tasks)
	}
	return count
}
