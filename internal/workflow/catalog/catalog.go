package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltwise/voltwise/internal/workflow/model"
)

// PlantProfile is the subset of plant attributes template resolution
// matches against.
type PlantProfile struct {
	PowerKw       float64
	PlantType     string
	ProtectedArea bool
}

// Catalog resolves workflow templates from the persisted store, falling back
// to an injected read-only built-in set when nothing persisted matches.
// The built-in slice is provided at construction so tests can substitute
// fixtures.
type Catalog struct {
	db      *gorm.DB
	builtin []model.WorkflowTemplate
}

func New(db *gorm.DB, builtin []model.WorkflowTemplate) *Catalog {
	return &Catalog{db: db, builtin: builtin}
}

// ListTemplates returns the templates matching the filter, ordered by name.
// Persisted templates win; the built-in set is scanned with the same
// predicate only when no persisted template matches. An empty result is not
// an error: callers may build a custom workflow from scratch.
func (c *Catalog) ListTemplates(ctx context.Context, filter model.TemplateFilter) ([]model.WorkflowTemplate, error) {
	query := c.db.WithContext(ctx).Model(&model.WorkflowTemplate{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Phase != "" {
		query = query.Where("phase = ?", filter.Phase)
	}

	var persisted []model.WorkflowTemplate
	if err := query.Order("name").Find(&persisted).Error; err != nil {
		return nil, fmt.Errorf("failed to list workflow templates: %w", err)
	}

	matched := filterTemplates(persisted, filter)
	if len(matched) > 0 {
		return matched, nil
	}
	return filterTemplates(c.builtin, filter), nil
}

// filterTemplates applies the plant-type/power/phase/category predicate that
// cannot be pushed into SQL (plant types and power bounds live in jsonb and
// nullable columns).
func filterTemplates(templates []model.WorkflowTemplate, filter model.TemplateFilter) []model.WorkflowTemplate {
	matched := make([]model.WorkflowTemplate, 0, len(templates))
	for _, t := range templates {
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		if !t.MatchesPhase(filter.Phase) {
			continue
		}
		if filter.PlantType != "" && !t.MatchesPlantType(filter.PlantType) {
			continue
		}
		if filter.PowerKw != nil && !t.MatchesPower(*filter.PowerKw) {
			continue
		}
		matched = append(matched, t)
	}
	return matched
}

// ResolveApplicable returns the templates of the given phase applicable to
// the plant profile. A template carrying activation conditions is kept only
// when every condition holds against the profile fields (powerKw, plantType,
// protectedArea).
//
// For the design phase protected-area templates are treated as optional
// add-ons, not filters: when the plant sits in a protected area they are
// prioritized first, otherwise they are excluded. Other phases return all
// matches with the flag ignored.
func (c *Catalog) ResolveApplicable(ctx context.Context, profile PlantProfile, phase model.Phase) ([]model.WorkflowTemplate, error) {
	candidates, err := c.ListTemplates(ctx, model.TemplateFilter{
		Phase:     phase,
		PlantType: profile.PlantType,
		PowerKw:   &profile.PowerKw,
	})
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"powerKw":       profile.PowerKw,
		"plantType":     profile.PlantType,
		"protectedArea": profile.ProtectedArea,
	}
	matches := make([]model.WorkflowTemplate, 0, len(candidates))
	for _, t := range candidates {
		if t.Conditions.Evaluate(fields) {
			matches = append(matches, t)
		}
	}

	if phase != model.PhaseDesign {
		return matches, nil
	}

	var protected, regular []model.WorkflowTemplate
	for _, t := range matches {
		if t.ProtectedArea {
			protected = append(protected, t)
		} else {
			regular = append(regular, t)
		}
	}
	if profile.ProtectedArea {
		return append(protected, regular...), nil
	}
	return regular, nil
}

// GetTemplate resolves a template by ID, looking at the persisted store
// first and the built-in set second.
func (c *Catalog) GetTemplate(ctx context.Context, templateID uuid.UUID) (*model.WorkflowTemplate, error) {
	if templateID == uuid.Nil {
		return nil, fmt.Errorf("template ID cannot be nil")
	}

	var persisted model.WorkflowTemplate
	result := c.db.WithContext(ctx).First(&persisted, "id = ?", templateID)
	if result.Error == nil {
		return &persisted, nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to retrieve workflow template: %w", result.Error)
	}

	for i := range c.builtin {
		if c.builtin[i].ID == templateID {
			t := c.builtin[i]
			return &t, nil
		}
	}
	return nil, model.NewNotFoundError("template", templateID)
}

// SaveTemplate persists a custom template after validating its conditions.
func (c *Catalog) SaveTemplate(ctx context.Context, t *model.WorkflowTemplate) error {
	if t == nil {
		return fmt.Errorf("template cannot be nil")
	}
	if t.Name == "" {
		return model.NewValidationError("template name cannot be empty")
	}
	if err := t.Conditions.Validate(); err != nil {
		return model.NewValidationError("invalid template conditions: %v", err)
	}
	seen := make(map[int]struct{}, len(t.Stages))
	for _, stage := range t.Stages {
		if _, dup := seen[stage.OrderIndex]; dup {
			return model.NewValidationError("duplicate stage order index %d in template", stage.OrderIndex)
		}
		seen[stage.OrderIndex] = struct{}{}
	}

	if err := c.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to save workflow template: %w", err)
	}
	return nil
}
