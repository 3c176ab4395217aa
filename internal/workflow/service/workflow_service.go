package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltwise/voltwise/internal/auth"
	"github.com/voltwise/voltwise/internal/plant"
	"github.com/voltwise/voltwise/internal/workflow/catalog"
	"github.com/voltwise/voltwise/internal/workflow/model"
	"github.com/voltwise/voltwise/utils"
)

// PlantDirectory is the plant lookup collaborator the engine needs. The
// plant package provides the production implementation; tests may stub it.
type PlantDirectory interface {
	GetPlant(ctx context.Context, plantID uuid.UUID, tenantID string) (*plant.Plant, error)
}

// WorkflowService materializes workflow instances from templates or from
// caller-supplied stages, and owns the workflow shell lifecycle (status,
// stages, deletion). Every top-level operation runs within one transaction:
// a partially constructed workflow is never observably committed.
type WorkflowService struct {
	db      *gorm.DB
	catalog *catalog.Catalog
	plants  PlantDirectory
	ts      *TaskService
}

func NewWorkflowService(db *gorm.DB, cat *catalog.Catalog, plants PlantDirectory, ts *TaskService) *WorkflowService {
	return &WorkflowService{db: db, catalog: cat, plants: plants, ts: ts}
}

// Instantiate creates a new workflow for a plant from either a template
// reference or explicit caller-supplied stages. The plant's power and type
// are snapshotted into the workflow config so later plant edits do not
// change what the workflow was sized for.
func (s *WorkflowService) Instantiate(ctx context.Context, actor auth.Actor, plantID uuid.UUID, source model.InstantiationSource, overrides model.InstantiationOverrides) (*model.Workflow, error) {
	if source == nil {
		return nil, model.NewValidationError("instantiation source cannot be nil")
	}

	p, err := s.lookupPlant(ctx, plantID, actor.TenantID)
	if err != nil {
		return nil, err
	}

	status := model.WorkflowStatusActive
	if overrides.Status != "" {
		if overrides.Status != model.WorkflowStatusDraft && overrides.Status != model.WorkflowStatusActive {
			return nil, model.NewValidationError("a new workflow must start as DRAFT or ACTIVE, not %s", overrides.Status)
		}
		status = overrides.Status
	}

	workflow := &model.Workflow{
		Name:        overrides.Name,
		Description: overrides.Description,
		Category:    overrides.Category,
		Type:        model.WorkflowTypeStandard,
		PlantID:     p.ID,
		TenantID:    actor.TenantID,
		Status:      status,
		Config:      snapshotConfig(p, overrides.Config),
	}
	workflow.CreatedBy = actor.UserID
	workflow.UpdatedBy = actor.UserID

	var stages []model.Stage
	var tasks []model.Task

	switch src := source.(type) {
	case model.TemplateRef:
		tmpl, err := s.catalog.GetTemplate(ctx, src.TemplateID)
		if err != nil {
			return nil, err
		}
		if workflow.Name == "" {
			workflow.Name = tmpl.Name
		}
		if workflow.Category == "" {
			workflow.Category = tmpl.Category
		}
		workflow.TemplateID = &tmpl.ID
		workflow.RequiredEntities = append(model.StringArray{}, tmpl.RequiredEntities...)
		stages, tasks = expandTemplate(tmpl, 0, "", actor.UserID)
	case model.ExplicitStages:
		if workflow.Name == "" {
			return nil, model.NewValidationError("a workflow built from explicit stages must be named")
		}
		stages, tasks, err = buildExplicitStages(src.Stages, actor.UserID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, model.NewValidationError("unsupported instantiation source %T", source)
	}

	if err := s.createGraphInTx(ctx, workflow, stages, tasks); err != nil {
		return nil, err
	}
	return s.GetWorkflow(ctx, actor, workflow.ID)
}

// ComposeFromPhases stitches one workflow together from per-phase templates.
// Phases are iterated in canonical order (design, connection, registration,
// fiscal) regardless of map iteration order; stage order indices continue
// across phases and stage names are prefixed with the phase label. Every
// mapped template must resolve or the whole composition is aborted.
func (s *WorkflowService) ComposeFromPhases(ctx context.Context, actor auth.Actor, plantID uuid.UUID, phaseTemplates map[model.Phase]uuid.UUID, overrides model.InstantiationOverrides) (*model.Workflow, error) {
	if len(phaseTemplates) == 0 {
		return nil, model.NewValidationError("phase composition requires at least one phase template")
	}
	for phase := range phaseTemplates {
		if !knownPhase(phase) {
			return nil, model.NewValidationError("unknown phase %q", phase)
		}
	}

	p, err := s.lookupPlant(ctx, plantID, actor.TenantID)
	if err != nil {
		return nil, err
	}

	// Resolve every template before touching the database: a partial
	// composition is never committed.
	resolved := make([]*model.WorkflowTemplate, 0, len(phaseTemplates))
	resolvedPhases := make([]model.Phase, 0, len(phaseTemplates))
	for _, phase := range model.PhaseOrder {
		templateID, ok := phaseTemplates[phase]
		if !ok {
			continue
		}
		tmpl, err := s.catalog.GetTemplate(ctx, templateID)
		if err != nil {
			var notFound *model.NotFoundError
			if errors.As(err, &notFound) {
				return nil, &model.TemplateResolutionError{Phase: phase, TemplateID: templateID}
			}
			return nil, err
		}
		resolved = append(resolved, tmpl)
		resolvedPhases = append(resolvedPhases, phase)
	}

	config := snapshotConfig(p, overrides.Config)
	config[model.ConfigKeyComposed] = true

	name := overrides.Name
	if name == "" {
		name = fmt.Sprintf("%s activation process", p.Name)
	}

	workflow := &model.Workflow{
		Name:        name,
		Description: overrides.Description,
		Category:    overrides.Category,
		Type:        model.WorkflowTypeStandard,
		PlantID:     p.ID,
		TenantID:    actor.TenantID,
		Status:      model.WorkflowStatusActive,
		Config:      config,
	}
	workflow.CreatedBy = actor.UserID
	workflow.UpdatedBy = actor.UserID

	var stages []model.Stage
	var tasks []model.Task
	entities := model.StringArray{}
	orderOffset := 0

	for i, tmpl := range resolved {
		prefix := fmt.Sprintf("[%s] ", resolvedPhases[i])
		phaseStages, phaseTasks := expandTemplate(tmpl, orderOffset, prefix, actor.UserID)
		stages = append(stages, phaseStages...)
		tasks = append(tasks, phaseTasks...)
		// Templates may declare sparse order indices, so the next phase
		// continues after the highest index assigned so far.
		for _, st := range phaseStages {
			if st.OrderIndex >= orderOffset {
				orderOffset = st.OrderIndex + 1
			}
		}
		entities = unionEntities(entities, tmpl.RequiredEntities)
	}
	workflow.RequiredEntities = entities

	if err := s.createGraphInTx(ctx, workflow, stages, tasks); err != nil {
		return nil, err
	}
	return s.GetWorkflow(ctx, actor, workflow.ID)
}

// AddStage appends a stage to an existing workflow. Order index collisions
// are rejected, not silently reordered.
func (s *WorkflowService) AddStage(ctx context.Context, actor auth.Actor, workflowID uuid.UUID, input model.StageInput) (*model.Stage, error) {
	if input.Name == "" {
		return nil, model.NewValidationError("stage name cannot be empty")
	}

	var stage *model.Stage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		workflow, err := getWorkflowInTx(ctx, tx, workflowID, actor.TenantID)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.Stage{}).
			Where("workflow_id = ? AND order_index = ?", workflow.ID, input.OrderIndex).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check stage order index: %w", err)
		}
		if count > 0 {
			return &model.DuplicateOrderError{WorkflowID: workflow.ID, OrderIndex: input.OrderIndex}
		}

		stage = &model.Stage{
			WorkflowID:        workflow.ID,
			Name:              input.Name,
			OrderIndex:        input.OrderIndex,
			DurationDays:      input.DurationDays,
			ResponsibleEntity: input.ResponsibleEntity,
		}
		stage.CreatedBy = actor.UserID
		stage.UpdatedBy = actor.UserID
		if err := tx.Create(stage).Error; err != nil {
			return fmt.Errorf("failed to create stage: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stage, nil
}

// GetWorkflow retrieves a workflow with its stages and tasks, scoped to the
// caller's tenant.
func (s *WorkflowService) GetWorkflow(ctx context.Context, actor auth.Actor, workflowID uuid.UUID) (*model.Workflow, error) {
	if workflowID == uuid.Nil {
		return nil, fmt.Errorf("workflow ID cannot be nil")
	}

	var workflow model.Workflow
	result := s.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB { return db.Order("order_index") }).
		Preload("Tasks").
		First(&workflow, "id = ? AND tenant_id = ?", workflowID, actor.TenantID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFoundError("workflow", workflowID)
		}
		return nil, fmt.Errorf("failed to retrieve workflow: %w", result.Error)
	}
	return &workflow, nil
}

// ListWorkflows retrieves the tenant's workflows, optionally filtered by
// plant, with offset/limit pagination.
func (s *WorkflowService) ListWorkflows(ctx context.Context, actor auth.Actor, plantID *uuid.UUID, offset, limit *int) ([]model.Workflow, error) {
	finalOffset, finalLimit := utils.Page{Offset: offset, Limit: limit}.Window()

	query := s.db.WithContext(ctx).Where("tenant_id = ?", actor.TenantID)
	if plantID != nil {
		query = query.Where("plant_id = ?", *plantID)
	}

	var workflows []model.Workflow
	result := query.Order("created_at DESC").Offset(finalOffset).Limit(finalLimit).Find(&workflows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to retrieve workflows: %w", result.Error)
	}
	return workflows, nil
}

// UpdateWorkflowStatus transitions a workflow's lifecycle status.
func (s *WorkflowService) UpdateWorkflowStatus(ctx context.Context, actor auth.Actor, workflowID uuid.UUID, status model.WorkflowStatus) (*model.Workflow, error) {
	switch status {
	case model.WorkflowStatusDraft, model.WorkflowStatusActive, model.WorkflowStatusPaused,
		model.WorkflowStatusCompleted, model.WorkflowStatusCancelled:
	default:
		return nil, model.NewValidationError("unknown workflow status %q", status)
	}

	var workflow *model.Workflow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		workflow, err = getWorkflowInTx(ctx, tx, workflowID, actor.TenantID)
		if err != nil {
			return err
		}
		workflow.Status = status
		workflow.UpdatedBy = actor.UserID
		if err := tx.Save(workflow).Error; err != nil {
			return fmt.Errorf("failed to update workflow status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return workflow, nil
}

// DeleteWorkflow removes a workflow together with its stages and tasks.
// Children of the deleted workflow are detached, not deleted.
func (s *WorkflowService) DeleteWorkflow(ctx context.Context, actor auth.Actor, workflowID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		workflow, err := getWorkflowInTx(ctx, tx, workflowID, actor.TenantID)
		if err != nil {
			return err
		}

		if err := tx.Where("workflow_id = ?", workflow.ID).Delete(&model.Task{}).Error; err != nil {
			return fmt.Errorf("failed to delete workflow tasks: %w", err)
		}
		if err := tx.Where("workflow_id = ?", workflow.ID).Delete(&model.Stage{}).Error; err != nil {
			return fmt.Errorf("failed to delete workflow stages: %w", err)
		}
		if err := tx.Model(&model.Workflow{}).
			Where("parent_workflow_id = ?", workflow.ID).
			Update("parent_workflow_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach sub-workflows: %w", err)
		}
		if err := tx.Delete(workflow).Error; err != nil {
			return fmt.Errorf("failed to delete workflow: %w", err)
		}
		return nil
	})
}

// lookupPlant translates the plant collaborator's not-found into the engine
// error taxonomy.
func (s *WorkflowService) lookupPlant(ctx context.Context, plantID uuid.UUID, tenantID string) (*plant.Plant, error) {
	p, err := s.plants.GetPlant(ctx, plantID, tenantID)
	if err != nil {
		if errors.Is(err, plant.ErrPlantNotFound) {
			return nil, model.NewNotFoundError("plant", plantID)
		}
		return nil, fmt.Errorf("failed to look up plant: %w", err)
	}
	return p, nil
}

// createGraphInTx persists the workflow shell with its stages and tasks as
// one atomic unit.
func (s *WorkflowService) createGraphInTx(ctx context.Context, workflow *model.Workflow, stages []model.Stage, tasks []model.Task) error {
	seen := make(map[int]struct{}, len(stages))
	for _, st := range stages {
		if _, dup := seen[st.OrderIndex]; dup {
			return model.NewValidationError("duplicate stage order index %d", st.OrderIndex)
		}
		seen[st.OrderIndex] = struct{}{}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(workflow).Error; err != nil {
			return fmt.Errorf("failed to create workflow: %w", err)
		}
		for i := range stages {
			stages[i].WorkflowID = workflow.ID
		}
		for i := range tasks {
			tasks[i].WorkflowID = workflow.ID
		}
		if len(stages) > 0 {
			if err := tx.Create(&stages).Error; err != nil {
				return fmt.Errorf("failed to create workflow stages: %w", err)
			}
		}
		if len(tasks) > 0 {
			if err := tx.Create(&tasks).Error; err != nil {
				return fmt.Errorf("failed to create workflow tasks: %w", err)
			}
		}
		workflow.Progress = ComputeProgress(tasks)
		if err := tx.Model(&model.Workflow{}).
			Where("id = ?", workflow.ID).
			Update("progress", workflow.Progress).Error; err != nil {
			return fmt.Errorf("failed to set initial workflow progress: %w", err)
		}
		return nil
	})
}

// getWorkflowInTx loads a bare workflow row scoped to the tenant. Shared by
// all services in this package.
func getWorkflowInTx(ctx context.Context, tx *gorm.DB, workflowID uuid.UUID, tenantID string) (*model.Workflow, error) {
	if workflowID == uuid.Nil {
		return nil, fmt.Errorf("workflow ID cannot be nil")
	}

	var workflow model.Workflow
	result := tx.WithContext(ctx).First(&workflow, "id = ? AND tenant_id = ?", workflowID, tenantID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFoundError("workflow", workflowID)
		}
		return nil, fmt.Errorf("failed to retrieve workflow: %w", result.Error)
	}
	return &workflow, nil
}

// expandTemplate deep-copies a template's stage and task definitions into
// live entities with fresh identities. Declared dependencies are remapped
// from template-local task indices (position in the template's flattened
// task list) to the newly assigned task IDs. Stage order indices are shifted
// by orderOffset and stage names prefixed for phase traceability.
func expandTemplate(tmpl *model.WorkflowTemplate, orderOffset int, namePrefix string, userID string) ([]model.Stage, []model.Task) {
	now := time.Now().UTC()
	stages := make([]model.Stage, 0, len(tmpl.Stages))
	tasks := make([]model.Task, 0, tmpl.TaskCount())
	indexToTaskID := make(map[int]uuid.UUID, tmpl.TaskCount())

	flatIndex := 0
	for _, stageDef := range tmpl.Stages {
		stage := model.Stage{
			Name:       namePrefix + stageDef.Name,
			OrderIndex: stageDef.OrderIndex + orderOffset,
		}
		if stageDef.DurationDays > 0 {
			d := stageDef.DurationDays
			stage.DurationDays = &d
		}
		if stageDef.ResponsibleEntity != "" {
			e := stageDef.ResponsibleEntity
			stage.ResponsibleEntity = &e
		}
		stage.ID = uuid.New()
		stage.CreatedBy = userID
		stage.UpdatedBy = userID
		stages = append(stages, stage)
		stageID := stage.ID

		for _, taskDef := range stageDef.Tasks {
			task := model.Task{
				StageID:     &stageID,
				Title:       taskDef.Title,
				Description: taskDef.Description,
				Status:      model.TaskStatusToStart,
				Priority:    taskDef.Priority,
				Timeline:    model.JSONMap{model.TimelineKeyStart: now.Format(time.RFC3339)},
			}
			if task.Priority == "" {
				task.Priority = model.TaskPriorityMedium
			}
			if taskDef.EstimatedHours > 0 {
				h := taskDef.EstimatedHours
				task.EstimatedHours = &h
			}
			if taskDef.DurationDays > 0 {
				due := now.AddDate(0, 0, taskDef.DurationDays)
				task.DueDate = &due
				task.Timeline[model.TimelineKeyDue] = due.Format(time.RFC3339)
			}
			task.ID = uuid.New()
			task.CreatedBy = userID
			task.UpdatedBy = userID
			indexToTaskID[flatIndex] = task.ID
			tasks = append(tasks, task)
			flatIndex++
		}
	}

	// Remap declared dependencies now that every task has an identity.
	flatIndex = 0
	for _, stageDef := range tmpl.Stages {
		for _, taskDef := range stageDef.Tasks {
			for _, depIndex := range taskDef.DependsOn {
				depID, ok := indexToTaskID[depIndex]
				if !ok || depIndex == flatIndex {
					continue
				}
				tasks[flatIndex].DependsOn = append(tasks[flatIndex].DependsOn, depID)
			}
			flatIndex++
		}
	}
	return stages, tasks
}

// buildExplicitStages constructs live stages and tasks from caller-supplied
// definitions, enforcing unique stage order indices and in-range, non-self
// dependency indices.
func buildExplicitStages(inputs []model.StageInput, userID string) ([]model.Stage, []model.Task, error) {
	if len(inputs) == 0 {
		return nil, nil, model.NewValidationError("explicit instantiation requires at least one stage")
	}

	now := time.Now().UTC()
	seenOrder := make(map[int]bool, len(inputs))
	total := 0
	for _, in := range inputs {
		if seenOrder[in.OrderIndex] {
			return nil, nil, &model.DuplicateOrderError{OrderIndex: in.OrderIndex}
		}
		seenOrder[in.OrderIndex] = true
		total += len(in.Tasks)
	}

	stages := make([]model.Stage, 0, len(inputs))
	tasks := make([]model.Task, 0, total)
	indexToTaskID := make(map[int]uuid.UUID, total)

	flatIndex := 0
	for _, in := range inputs {
		stage := model.Stage{
			Name:              in.Name,
			OrderIndex:        in.OrderIndex,
			DurationDays:      in.DurationDays,
			ResponsibleEntity: in.ResponsibleEntity,
		}
		stage.ID = uuid.New()
		stage.CreatedBy = userID
		stage.UpdatedBy = userID
		stages = append(stages, stage)
		stageID := stage.ID

		for _, taskIn := range in.Tasks {
			task := model.Task{
				StageID:        &stageID,
				Title:          taskIn.Title,
				Description:    taskIn.Description,
				Status:         model.TaskStatusToStart,
				Priority:       taskIn.Priority,
				Assignee:       taskIn.Assignee,
				DueDate:        taskIn.DueDate,
				EstimatedHours: taskIn.EstimatedHours,
				DocumentIDs:    taskIn.DocumentIDs,
				Timeline:       model.JSONMap{model.TimelineKeyStart: now.Format(time.RFC3339)},
			}
			if task.Priority == "" {
				task.Priority = model.TaskPriorityMedium
			}
			task.ID = uuid.New()
			task.CreatedBy = userID
			task.UpdatedBy = userID
			indexToTaskID[flatIndex] = task.ID
			tasks = append(tasks, task)
			flatIndex++
		}
	}

	flatIndex = 0
	for _, in := range inputs {
		for _, taskIn := range in.Tasks {
			for _, depIndex := range taskIn.DependsOn {
				if depIndex == flatIndex {
					return nil, nil, model.NewValidationError("task %q cannot depend on itself", taskIn.Title)
				}
				depID, ok := indexToTaskID[depIndex]
				if !ok {
					return nil, nil, model.NewValidationError("task %q depends on unknown task index %d", taskIn.Title, depIndex)
				}
				tasks[flatIndex].DependsOn = append(tasks[flatIndex].DependsOn, depID)
			}
			flatIndex++
		}
	}
	return stages, tasks, nil
}

func snapshotConfig(p *plant.Plant, overrides model.JSONMap) model.JSONMap {
	config := model.JSONMap{
		model.ConfigKeyPlantPowerKw: p.PowerKw,
		model.ConfigKeyPlantType:    p.PlantType,
	}
	for k, v := range overrides {
		config[k] = v
	}
	return config
}

func unionEntities(base model.StringArray, add model.StringArray) model.StringArray {
	for _, e := range add {
		if !base.Contains(e) {
			base = append(base, e)
		}
	}
	return base
}

func knownPhase(p model.Phase) bool {
	for _, known := range model.PhaseOrder {
		if p == known {
			return true
		}
	}
	return false
}
