package catalog

import (
	"github.com/google/uuid"

	"github.com/voltwise/voltwise/internal/workflow/model"
)

// Built-in template IDs are fixed so callers and phase compositions can
// reference them without a catalog lookup round-trip.
var (
	BuiltinSimplifiedDesignID    = uuid.MustParse("6f1b2a90-0d5e-4a91-8c1f-2e4a8b6d0c01")
	BuiltinStandardDesignID      = uuid.MustParse("6f1b2a90-0d5e-4a91-8c1f-2e4a8b6d0c02")
	BuiltinProtectedAreaDesignID = uuid.MustParse("6f1b2a90-0d5e-4a91-8c1f-2e4a8b6d0c03")
	BuiltinConnectionID          = uuid.MustParse("6f1b2a90-0d5e-4a91-8c1f-2e4a8b6d0c04")
	BuiltinRegistrationID        = uuid.MustParse("6f1b2a90-0d5e-4a91-8c1f-2e4a8b6d0c05")
	BuiltinFiscalID              = uuid.MustParse("6f1b2a90-0d5e-4a91-8c1f-2e4a8b6d0c06")
)

func phasePtr(p model.Phase) *model.Phase { return &p }
func floatPtr(f float64) *float64         { return &f }

// BuiltinTemplates returns the static template catalog shipped with the
// engine. The slice is rebuilt on every call so callers can mutate their
// copy freely; the catalog itself stays read-only.
func BuiltinTemplates() []model.WorkflowTemplate {
	return []model.WorkflowTemplate{
		{
			BaseModel:             model.BaseModel{ID: BuiltinSimplifiedDesignID},
			Name:                  "Simplified authorization (small PV)",
			Description:           "Simplified municipal authorization track for photovoltaic plants below 20 kW.",
			Category:              "AUTHORIZATION",
			Phase:                 phasePtr(model.PhaseDesign),
			PlantTypes:            model.StringArray{"Photovoltaic"},
			MinPowerKw:            floatPtr(0),
			MaxPowerKw:            floatPtr(20),
			EstimatedDurationDays: 45,
			RequiredEntities:      model.StringArray{"Municipality", "Grid Operator"},
			BaseDocuments:         model.StringArray{"Single model declaration", "Site plan"},
			BuiltIn:               true,
			Stages: []model.StageTemplate{
				{
					Name:              "Preliminary checks",
					OrderIndex:        0,
					DurationDays:      10,
					ResponsibleEntity: "Municipality",
					Tasks: []model.TaskTemplate{
						{Title: "Verify cadastral registration", Priority: model.TaskPriorityMedium, EstimatedHours: 4},
						{Title: "Collect site photographs", Priority: model.TaskPriorityLow, EstimatedHours: 2},
					},
				},
				{
					Name:              "Single-model submission",
					OrderIndex:        1,
					DurationDays:      20,
					ResponsibleEntity: "Grid Operator",
					Tasks: []model.TaskTemplate{
						{Title: "Fill single model part I", Priority: model.TaskPriorityHigh, EstimatedHours: 6, DependsOn: []int{0}},
						{Title: "Submit to grid operator portal", Priority: model.TaskPriorityHigh, EstimatedHours: 2, DependsOn: []int{2}},
					},
				},
			},
		},
		{
			BaseModel:             model.BaseModel{ID: BuiltinStandardDesignID},
			Name:                  "Standard authorization",
			Description:           "Full authorization track for plants above the simplified threshold.",
			Category:              "AUTHORIZATION",
			Phase:                 phasePtr(model.PhaseDesign),
			PlantTypes:            model.StringArray{model.PlantTypeAll},
			MinPowerKw:            floatPtr(20),
			EstimatedDurationDays: 120,
			RequiredEntities:      model.StringArray{"Municipality", "Region", "Grid Operator"},
			BaseDocuments:         model.StringArray{"Technical report", "Site plan", "Environmental screening"},
			Conditions: model.ConditionSet{
				"requiresRegionalReview": {Field: "powerKw", Operator: model.OperatorGreaterThan, Value: float64(1000)},
			},
			BuiltIn: true,
			Stages: []model.StageTemplate{
				{
					Name:              "Design dossier",
					OrderIndex:        0,
					DurationDays:      30,
					ResponsibleEntity: "Municipality",
					Tasks: []model.TaskTemplate{
						{Title: "Prepare technical report", Priority: model.TaskPriorityHigh, EstimatedHours: 24},
						{Title: "Prepare electrical single-line diagram", Priority: model.TaskPriorityMedium, EstimatedHours: 12},
					},
				},
				{
					Name:              "Authorization filing",
					OrderIndex:        1,
					DurationDays:      60,
					ResponsibleEntity: "Region",
					Tasks: []model.TaskTemplate{
						{Title: "File authorization request", Priority: model.TaskPriorityHigh, EstimatedHours: 8, DependsOn: []int{0, 1}},
						{Title: "Respond to integration requests", Priority: model.TaskPriorityMedium, EstimatedHours: 16, DependsOn: []int{2}},
					},
				},
			},
		},
		{
			BaseModel:             model.BaseModel{ID: BuiltinProtectedAreaDesignID},
			Name:                  "Protected-area screening",
			Description:           "Additional landscape and environmental steps for plants inside protected areas.",
			Category:              "AUTHORIZATION",
			Phase:                 phasePtr(model.PhaseDesign),
			PlantTypes:            model.StringArray{model.PlantTypeAll},
			ProtectedArea:         true,
			EstimatedDurationDays: 90,
			RequiredEntities:      model.StringArray{"Landscape Authority", "Environmental Agency"},
			BaseDocuments:         model.StringArray{"Landscape compatibility report"},
			BuiltIn:               true,
			Stages: []model.StageTemplate{
				{
					Name:              "Landscape assessment",
					OrderIndex:        0,
					DurationDays:      45,
					ResponsibleEntity: "Landscape Authority",
					Tasks: []model.TaskTemplate{
						{Title: "Commission landscape compatibility report", Priority: model.TaskPriorityHigh, EstimatedHours: 20},
						{Title: "File landscape authorization request", Priority: model.TaskPriorityHigh, EstimatedHours: 6, DependsOn: []int{0}},
					},
				},
			},
		},
		{
			BaseModel:             model.BaseModel{ID: BuiltinConnectionID},
			Name:                  "Grid connection",
			Description:           "Connection request, quotation acceptance and commissioning with the grid operator.",
			Category:              "GRID_CONNECTION",
			Phase:                 phasePtr(model.PhaseConnection),
			PlantTypes:            model.StringArray{model.PlantTypeAll},
			EstimatedDurationDays: 90,
			RequiredEntities:      model.StringArray{"Grid Operator"},
			BaseDocuments:         model.StringArray{"Connection request", "Quotation acceptance"},
			BuiltIn:               true,
			Stages: []model.StageTemplate{
				{
					Name:              "Connection request",
					OrderIndex:        0,
					DurationDays:      30,
					ResponsibleEntity: "Grid Operator",
					Tasks: []model.TaskTemplate{
						{Title: "Submit connection request", Priority: model.TaskPriorityHigh, EstimatedHours: 4},
						{Title: "Accept connection quotation", Priority: model.TaskPriorityHigh, EstimatedHours: 2, DependsOn: []int{0}},
					},
				},
				{
					Name:              "Commissioning",
					OrderIndex:        1,
					DurationDays:      30,
					ResponsibleEntity: "Grid Operator",
					Tasks: []model.TaskTemplate{
						{Title: "Schedule meter installation", Priority: model.TaskPriorityMedium, EstimatedHours: 2, DependsOn: []int{1}},
						{Title: "Sign commissioning report", Priority: model.TaskPriorityHigh, EstimatedHours: 2, DependsOn: []int{2}},
					},
				},
			},
		},
		{
			BaseModel:             model.BaseModel{ID: BuiltinRegistrationID},
			Name:                  "Production registration",
			Description:           "Registration of the plant with the national energy services registry.",
			Category:              "GSE_REGISTRATION",
			Phase:                 phasePtr(model.PhaseRegistration),
			PlantTypes:            model.StringArray{model.PlantTypeAll},
			EstimatedDurationDays: 30,
			RequiredEntities:      model.StringArray{"Energy Services Agency"},
			BaseDocuments:         model.StringArray{"Registry application"},
			BuiltIn:               true,
			Stages: []model.StageTemplate{
				{
					Name:              "Registry application",
					OrderIndex:        0,
					DurationDays:      30,
					ResponsibleEntity: "Energy Services Agency",
					Tasks: []model.TaskTemplate{
						{Title: "Register plant in production registry", Priority: model.TaskPriorityHigh, EstimatedHours: 4},
						{Title: "Upload commissioning evidence", Priority: model.TaskPriorityMedium, EstimatedHours: 2, DependsOn: []int{0}},
					},
				},
			},
		},
		{
			BaseModel:             model.BaseModel{ID: BuiltinFiscalID},
			Name:                  "Fiscal setup",
			Description:           "Fiscal licensing and metering obligations for production plants.",
			Category:              "FISCAL",
			Phase:                 phasePtr(model.PhaseFiscal),
			PlantTypes:            model.StringArray{model.PlantTypeAll},
			EstimatedDurationDays: 45,
			RecurrenceRule:        "YEARLY",
			RequiredEntities:      model.StringArray{"Customs Agency"},
			BaseDocuments:         model.StringArray{"Workshop license application"},
			Conditions: model.ConditionSet{
				"licenseRequired": {Field: "powerKw", Operator: model.OperatorGreaterThan, Value: float64(20)},
			},
			BuiltIn: true,
			Stages: []model.StageTemplate{
				{
					Name:              "Fiscal licensing",
					OrderIndex:        0,
					DurationDays:      45,
					ResponsibleEntity: "Customs Agency",
					Tasks: []model.TaskTemplate{
						{Title: "Apply for electric workshop license", Priority: model.TaskPriorityHigh, EstimatedHours: 6},
						{Title: "Seal fiscal meter", Priority: model.TaskPriorityMedium, EstimatedHours: 2, DependsOn: []int{0}},
					},
				},
			},
		},
	}
}
