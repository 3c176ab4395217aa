package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/voltwise/voltwise/internal/workflow/model"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.WorkflowTemplate{}))
	return New(db, BuiltinTemplates())
}

func templateNames(templates []model.WorkflowTemplate) []string {
	names := make([]string, len(templates))
	for i, tmpl := range templates {
		names[i] = tmpl.Name
	}
	return names
}

func TestListTemplatesFallsBackToBuiltin(t *testing.T) {
	c := newTestCatalog(t)

	templates, err := c.ListTemplates(context.Background(), model.TemplateFilter{Phase: model.PhaseFiscal})
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.True(t, templates[0].BuiltIn)
	assert.Equal(t, BuiltinFiscalID, templates[0].ID)
}

func TestListTemplatesPersistedWins(t *testing.T) {
	c := newTestCatalog(t)

	custom := &model.WorkflowTemplate{
		Name:       "Regional fiscal variant",
		Category:   "FISCAL",
		Phase:      phasePtr(model.PhaseFiscal),
		PlantTypes: model.StringArray{model.PlantTypeAll},
		Stages:     []model.StageTemplate{{Name: "Filing", OrderIndex: 0}},
	}
	require.NoError(t, c.SaveTemplate(context.Background(), custom))

	templates, err := c.ListTemplates(context.Background(), model.TemplateFilter{Phase: model.PhaseFiscal})
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "Regional fiscal variant", templates[0].Name)
	assert.False(t, templates[0].BuiltIn)
}

func TestListTemplatesPowerBoundary(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	// 10 kW photovoltaic: only the simplified track applies.
	power := 10.0
	templates, err := c.ListTemplates(ctx, model.TemplateFilter{
		Phase:     model.PhaseDesign,
		PlantType: "Photovoltaic",
		PowerKw:   &power,
	})
	require.NoError(t, err)
	names := templateNames(templates)
	assert.Contains(t, names, "Simplified authorization (small PV)")
	assert.NotContains(t, names, "Standard authorization")

	// 20 kW sits exactly on the threshold: the simplified track's upper
	// bound is exclusive, the standard track's lower bound inclusive.
	power = 20.0
	templates, err = c.ListTemplates(ctx, model.TemplateFilter{
		Phase:     model.PhaseDesign,
		PlantType: "Photovoltaic",
		PowerKw:   &power,
	})
	require.NoError(t, err)
	names = templateNames(templates)
	assert.NotContains(t, names, "Simplified authorization (small PV)")
	assert.Contains(t, names, "Standard authorization")
}

func TestResolveApplicableProtectedAreaAsymmetry(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	protected := PlantProfile{PowerKw: 500, PlantType: "Photovoltaic", ProtectedArea: true}
	templates, err := c.ResolveApplicable(ctx, protected, model.PhaseDesign)
	require.NoError(t, err)
	names := templateNames(templates)
	require.NotEmpty(t, names)
	assert.Equal(t, "Protected-area screening", names[0], "protected-area templates come first")
	assert.Contains(t, names, "Standard authorization")

	open := PlantProfile{PowerKw: 500, PlantType: "Photovoltaic"}
	templates, err = c.ResolveApplicable(ctx, open, model.PhaseDesign)
	require.NoError(t, err)
	names = templateNames(templates)
	assert.NotContains(t, names, "Protected-area screening")
	assert.Contains(t, names, "Standard authorization")
}

func TestResolveApplicableIgnoresFlagOutsideDesign(t *testing.T) {
	c := newTestCatalog(t)

	profile := PlantProfile{PowerKw: 500, PlantType: "Photovoltaic", ProtectedArea: true}
	templates, err := c.ResolveApplicable(context.Background(), profile, model.PhaseConnection)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, BuiltinConnectionID, templates[0].ID)
}

func TestGetTemplate(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	tmpl, err := c.GetTemplate(ctx, BuiltinConnectionID)
	require.NoError(t, err)
	assert.Equal(t, "Grid connection", tmpl.Name)

	_, err = c.GetTemplate(ctx, uuid.New())
	var notFound *model.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestResolveApplicableHonorsActivationConditions(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	conditional := &model.WorkflowTemplate{
		Name:       "Large-plant environmental screening",
		Category:   "AUTHORIZATION",
		Phase:      phasePtr(model.PhaseDesign),
		PlantTypes: model.StringArray{model.PlantTypeAll},
		Stages:     []model.StageTemplate{{Name: "Screening", OrderIndex: 0}},
		Conditions: model.ConditionSet{
			"largePlant": {Field: "powerKw", Operator: model.OperatorGreaterThan, Value: float64(100)},
		},
	}
	require.NoError(t, c.SaveTemplate(ctx, conditional))

	small := PlantProfile{PowerKw: 50, PlantType: "Photovoltaic"}
	templates, err := c.ResolveApplicable(ctx, small, model.PhaseDesign)
	require.NoError(t, err)
	assert.NotContains(t, templateNames(templates), "Large-plant environmental screening")

	large := PlantProfile{PowerKw: 500, PlantType: "Photovoltaic"}
	templates, err = c.ResolveApplicable(ctx, large, model.PhaseDesign)
	require.NoError(t, err)
	assert.Contains(t, templateNames(templates), "Large-plant environmental screening")
}

func TestSaveTemplateRejectsDuplicateStageOrder(t *testing.T) {
	c := newTestCatalog(t)

	bad := &model.WorkflowTemplate{
		Name:       "Colliding stages",
		Category:   "AUTHORIZATION",
		Phase:      phasePtr(model.PhaseDesign),
		PlantTypes: model.StringArray{model.PlantTypeAll},
		Stages: []model.StageTemplate{
			{Name: "First", OrderIndex: 0},
			{Name: "Second", OrderIndex: 0},
		},
	}
	err := c.SaveTemplate(context.Background(), bad)
	var validation *model.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestSaveTemplateValidatesConditions(t *testing.T) {
	c := newTestCatalog(t)

	bad := &model.WorkflowTemplate{
		Name:     "Broken",
		Category: "AUTHORIZATION",
		Conditions: model.ConditionSet{
			"oops": {Field: "powerKw", Operator: "~=", Value: float64(1)},
		},
	}
	err := c.SaveTemplate(context.Background(), bad)
	var validation *model.ValidationError
	assert.ErrorAs(t, err, &validation)
}
