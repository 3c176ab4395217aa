package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voltwise/voltwise/internal/auth"
	"github.com/voltwise/voltwise/internal/workflow"
	"github.com/voltwise/voltwise/internal/workflow/catalog"
	"github.com/voltwise/voltwise/internal/workflow/model"
)

// Router exposes the workflow engine operations over HTTP. It is a thin
// translation layer: request binding, actor extraction and error mapping;
// all semantics live in the services.
type Router struct {
	m *workflow.Manager
}

func New(m *workflow.Manager) *Router {
	return &Router{m: m}
}

// Register mounts the engine routes on the given group.
func (r *Router) Register(api *gin.RouterGroup) {
	api.GET("/templates", r.handleListTemplates)
	api.GET("/templates/applicable", r.handleResolveApplicable)
	api.POST("/templates", r.handleCreateTemplate)

	api.POST("/workflows", r.handleCreateWorkflow)
	api.POST("/workflows/compose", r.handleComposeFromPhases)
	api.POST("/workflows/merge", r.handleMergeWorkflows)
	api.GET("/workflows", r.handleListWorkflows)
	api.GET("/workflows/:id", r.handleGetWorkflow)
	api.DELETE("/workflows/:id", r.handleDeleteWorkflow)
	api.PATCH("/workflows/:id/status", r.handleUpdateWorkflowStatus)
	api.POST("/workflows/:id/clone", r.handleCloneWorkflow)
	api.POST("/workflows/:id/subworkflows", r.handleCreateSubWorkflow)
	api.POST("/workflows/:id/sync", r.handleSyncSubWorkflowProgress)
	api.GET("/workflows/:id/hierarchy", r.handleGetHierarchy)
	api.GET("/workflows/:id/dependencies/validate", r.handleValidateAcyclic)
	api.POST("/workflows/:id/stages", r.handleAddStage)
	api.POST("/workflows/:id/tasks", r.handleAddTask)

	api.PATCH("/tasks/:id/status", r.handleUpdateTaskStatus)
	api.PUT("/tasks/:id/dependencies", r.handleSetTaskDependencies)
}

// actorOrAbort extracts the authenticated actor, aborting with 401 when the
// request carried no usable credentials.
func actorOrAbort(c *gin.Context) (auth.Actor, bool) {
	actor, ok := auth.ActorFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return auth.Actor{}, false
	}
	return actor, true
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid workflow or task ID"})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps engine errors onto HTTP statuses: missing entities to 404,
// order/merge conflicts to 409, other validation failures to 400.
func writeError(c *gin.Context, err error) {
	var notFound *model.NotFoundError
	var duplicateOrder *model.DuplicateOrderError
	var foreignStage *model.ForeignStageError
	var crossPlant *model.CrossPlantMergeError
	var templateRes *model.TemplateResolutionError
	var validation *model.ValidationError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &duplicateOrder), errors.As(err, &crossPlant):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &foreignStage), errors.As(err, &templateRes), errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// handleListTemplates handles GET /api/v1/templates
func (r *Router) handleListTemplates(c *gin.Context) {
	var filter model.TemplateFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template filter: " + err.Error()})
		return
	}

	templates, err := r.m.Catalog.ListTemplates(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

type resolveApplicableRequest struct {
	PowerKw       float64     `form:"powerKw" binding:"required"`
	PlantType     string      `form:"plantType" binding:"required"`
	ProtectedArea bool        `form:"protectedArea"`
	Phase         model.Phase `form:"phase" binding:"required"`
}

// handleResolveApplicable handles GET /api/v1/templates/applicable
func (r *Router) handleResolveApplicable(c *gin.Context) {
	var req resolveApplicableRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plant profile: " + err.Error()})
		return
	}

	profile := catalog.PlantProfile{
		PowerKw:       req.PowerKw,
		PlantType:     req.PlantType,
		ProtectedArea: req.ProtectedArea,
	}
	templates, err := r.m.Catalog.ResolveApplicable(c.Request.Context(), profile, req.Phase)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

// handleCreateTemplate handles POST /api/v1/templates
func (r *Router) handleCreateTemplate(c *gin.Context) {
	if _, ok := actorOrAbort(c); !ok {
		return
	}

	var tmpl model.WorkflowTemplate
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template body: " + err.Error()})
		return
	}
	if err := r.m.Catalog.SaveTemplate(c.Request.Context(), &tmpl); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

type createWorkflowRequest struct {
	PlantID    uuid.UUID                    `json:"plantId" binding:"required"`
	TemplateID *uuid.UUID                   `json:"templateId,omitempty"`
	Stages     []model.StageInput           `json:"stages,omitempty" binding:"dive"`
	Overrides  model.InstantiationOverrides `json:"overrides"`
}

// handleCreateWorkflow handles POST /api/v1/workflows. The body carries
// either a template reference or explicit stages, never both.
func (r *Router) handleCreateWorkflow(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req createWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.TemplateID != nil && len(req.Stages) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "supply either templateId or stages, not both"})
		return
	}

	var source model.InstantiationSource
	if req.TemplateID != nil {
		source = model.TemplateRef{TemplateID: *req.TemplateID}
	} else {
		source = model.ExplicitStages{Stages: req.Stages}
	}

	created, err := r.m.Workflows.Instantiate(c.Request.Context(), actor, req.PlantID, source, req.Overrides)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type composeRequest struct {
	PlantID   uuid.UUID                    `json:"plantId" binding:"required"`
	Phases    map[model.Phase]uuid.UUID    `json:"phases" binding:"required"`
	Overrides model.InstantiationOverrides `json:"overrides"`
}

// handleComposeFromPhases handles POST /api/v1/workflows/compose
func (r *Router) handleComposeFromPhases(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req composeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	created, err := r.m.Workflows.ComposeFromPhases(c.Request.Context(), actor, req.PlantID, req.Phases, req.Overrides)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type mergeRequest struct {
	WorkflowIDs []uuid.UUID `json:"workflowIds" binding:"required,min=2"`
	Name        string      `json:"name" binding:"required"`
	Description string      `json:"description"`
}

// handleMergeWorkflows handles POST /api/v1/workflows/merge
func (r *Router) handleMergeWorkflows(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	composite, err := r.m.Composition.MergeWorkflows(c.Request.Context(), actor, req.WorkflowIDs, req.Name, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, composite)
}

// handleListWorkflows handles GET /api/v1/workflows
func (r *Router) handleListWorkflows(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var query struct {
		PlantID *uuid.UUID `form:"plantId"`
		Offset  *int       `form:"offset"`
		Limit   *int       `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters: " + err.Error()})
		return
	}

	workflows, err := r.m.Workflows.ListWorkflows(c.Request.Context(), actor, query.PlantID, query.Offset, query.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, workflows)
}

// handleGetWorkflow handles GET /api/v1/workflows/:id
func (r *Router) handleGetWorkflow(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	found, err := r.m.Workflows.GetWorkflow(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// handleDeleteWorkflow handles DELETE /api/v1/workflows/:id
func (r *Router) handleDeleteWorkflow(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := r.m.Workflows.DeleteWorkflow(c.Request.Context(), actor, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleUpdateWorkflowStatus handles PATCH /api/v1/workflows/:id/status
func (r *Router) handleUpdateWorkflowStatus(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Status model.WorkflowStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	updated, err := r.m.Workflows.UpdateWorkflowStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// handleCloneWorkflow handles POST /api/v1/workflows/:id/clone
func (r *Router) handleCloneWorkflow(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	opts := model.DefaultCloneOptions()
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid clone options: " + err.Error()})
			return
		}
	}

	clone, err := r.m.Clones.Clone(c.Request.Context(), actor, id, opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, clone)
}

type createSubWorkflowRequest struct {
	Name       string        `json:"name" binding:"required"`
	TemplateID *uuid.UUID    `json:"templateId,omitempty"`
	Config     model.JSONMap `json:"config,omitempty"`
}

// handleCreateSubWorkflow handles POST /api/v1/workflows/:id/subworkflows
func (r *Router) handleCreateSubWorkflow(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req createSubWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	child, err := r.m.Composition.CreateSubWorkflow(c.Request.Context(), actor, id, req.Name, req.TemplateID, req.Config)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, child)
}

// handleSyncSubWorkflowProgress handles POST /api/v1/workflows/:id/sync
func (r *Router) handleSyncSubWorkflowProgress(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	tracking, err := r.m.Composition.SyncSubWorkflowProgress(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tracking)
}

// handleGetHierarchy handles GET /api/v1/workflows/:id/hierarchy
func (r *Router) handleGetHierarchy(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	includeSiblings := c.Query("includeSiblings") == "true"
	hierarchy, err := r.m.Hierarchy.GetHierarchy(c.Request.Context(), actor, id, includeSiblings)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hierarchy)
}

// handleValidateAcyclic handles GET /api/v1/workflows/:id/dependencies/validate
func (r *Router) handleValidateAcyclic(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := r.m.Tasks.ValidateAcyclic(c.Request.Context(), actor, id); err != nil {
		var validation *model.ValidationError
		if errors.As(err, &validation) {
			c.JSON(http.StatusOK, gin.H{"acyclic": false, "detail": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acyclic": true})
}

// handleAddStage handles POST /api/v1/workflows/:id/stages
func (r *Router) handleAddStage(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var input model.StageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stage body: " + err.Error()})
		return
	}

	stage, err := r.m.Workflows.AddStage(c.Request.Context(), actor, id, input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stage)
}

type addTaskRequest struct {
	StageID        *uuid.UUID         `json:"stageId,omitempty"`
	Title          string             `json:"title" binding:"required"`
	Description    string             `json:"description"`
	Priority       model.TaskPriority `json:"priority"`
	Assignee       *string            `json:"assignee,omitempty"`
	DependsOn      []uuid.UUID        `json:"dependsOn,omitempty"`
	DocumentIDs    []uuid.UUID        `json:"documentIds,omitempty"`
	EstimatedHours *float64           `json:"estimatedHours,omitempty"`
}

// handleAddTask handles POST /api/v1/workflows/:id/tasks
func (r *Router) handleAddTask(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req addTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task body: " + err.Error()})
		return
	}

	task := &model.Task{
		WorkflowID:     id,
		StageID:        req.StageID,
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		Assignee:       req.Assignee,
		DependsOn:      req.DependsOn,
		DocumentIDs:    req.DocumentIDs,
		EstimatedHours: req.EstimatedHours,
	}
	if err := r.m.Tasks.AddTask(c.Request.Context(), actor, task); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// handleUpdateTaskStatus handles PATCH /api/v1/tasks/:id/status
func (r *Router) handleUpdateTaskStatus(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Status model.TaskStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	task, err := r.m.Tasks.UpdateTaskStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// handleSetTaskDependencies handles PUT /api/v1/tasks/:id/dependencies
func (r *Router) handleSetTaskDependencies(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		DependsOn []uuid.UUID `json:"dependsOn"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	task, err := r.m.Tasks.SetTaskDependencies(c.Request.Context(), actor, id, req.DependsOn)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}
