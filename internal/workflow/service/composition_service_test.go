package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltwise/voltwise/internal/workflow/catalog"
	"github.com/voltwise/voltwise/internal/workflow/model"
)

func trackingTaskFor(t *testing.T, parent *model.Workflow, childID uuid.UUID) *model.Task {
	t.Helper()
	for i := range parent.Tasks {
		if parent.Tasks[i].TrackedSubWorkflowID() == childID {
			return &parent.Tasks[i]
		}
	}
	t.Fatalf("no tracking task for sub-workflow %s", childID)
	return nil
}

func TestCreateSubWorkflow(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPlant(t, "Rooftop PV", 10, "Photovoltaic")
	parent := env.instantiateFromBuiltin(t, p, model.TemplateRef{TemplateID: catalog.BuiltinSimplifiedDesignID})
	ctx := context.Background()

	child, err := env.composition.CreateSubWorkflow(ctx, env.actor, parent.ID, "Landscape screening",
		&catalog.BuiltinProtectedAreaDesignID, nil)
	require.NoError(t, err)

	assert.Equal(t, "Landscape screening", child.Name)
	require.NotNil(t, child.ParentWorkflowID)
	assert.Equal(t, parent.ID, *child.ParentWorkflowID)
	assert.Equal(t, parent.PlantID, child.PlantID)
	assert.Equal(t, env.actor.TenantID, child.TenantID)
	assert.Len(t, child.Stages, 1)
	assert.Len(t, child.Tasks, 2)

	// The child inherits the plant snapshot keys from the parent config.
	assert.EqualValues(t, 10, child.Config[model.ConfigKeyPlantPowerKw])

	// Entity union of parent and template.
	assert.Contains(t, []string(child.RequiredEntities), "Municipality")
	assert.Contains(t, []string(child.RequiredEntities), "Landscape Authority")

	// The parent gained a tracking task carrying the child's ID.
	reloaded, err := env.workflows.GetWorkflow(ctx, env.actor, parent.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Tasks, 5)
	tracking := trackingTaskFor(t, reloaded, child.ID)
	assert.Nil(t, tracking.StageID, "tracking tasks are stage-less")
	assert.Equal(t, model.TaskStatusToStart, tracking.Status)
	assert.Equal(t, model.TaskPriorityMedium, tracking.Priority)
}

func TestSyncSubWorkflowProgress(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPlant(t, "Rooftop PV", 10, "Photovoltaic")
	parent := env.instantiateFromBuiltin(t, p, model.TemplateRef{TemplateID: catalog.BuiltinSimplifiedDesignID})
	ctx := context.Background()

	child, err := env.composition.CreateSubWorkflow(ctx, env.actor, parent.ID, "Grid works",
		&catalog.BuiltinConnectionID, nil)
	require.NoError(t, err)

	// Active child mirrors as an in-progress tracking task.
	tracking, err := env.composition.SyncSubWorkflowProgress(ctx, env.actor, child.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, tracking.Status)
	assert.EqualValues(t, string(model.WorkflowStatusActive), tracking.Timeline[model.TimelineKeySubWorkflowStatus])

	// Complete the child's tasks, mark it completed, sync again.
	for _, task := range child.Tasks {
		_, err := env.tasks.UpdateTaskStatus(ctx, env.actor, task.ID, model.TaskStatusCompleted)
		require.NoError(t, err)
	}
	_, err = env.workflows.UpdateWorkflowStatus(ctx, env.actor, child.ID, model.WorkflowStatusCompleted)
	require.NoError(t, err)

	tracking, err = env.composition.SyncSubWorkflowProgress(ctx, env.actor, child.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, tracking.Status)
	require.NotNil(t, tracking.CompletedAt)
	require.NotNil(t, tracking.ActualHours)
	assert.Contains(t, tracking.Timeline, model.TimelineKeyEnd)
	assert.EqualValues(t, 100, tracking.Timeline[model.TimelineKeySubWorkflowProgress])

	// Cancelled child blocks its tracking task.
	_, err = env.workflows.UpdateWorkflowStatus(ctx, env.actor, child.ID, model.WorkflowStatusCancelled)
	require.NoError(t, err)
	tracking, err = env.composition.SyncSubWorkflowProgress(ctx, env.actor, child.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusBlocked, tracking.Status)
}

func TestSyncSubWorkflowProgressDoesNotCascade(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPlant(t, "Rooftop PV", 10, "Photovoltaic")
	parent := env.instantiateFromBuiltin(t, p, model.TemplateRef{TemplateID: catalog.BuiltinSimplifiedDesignID})
	ctx := context.Background()

	child, err := env.composition.CreateSubWorkflow(ctx, env.actor, parent.ID, "Grid works",
		&catalog.BuiltinConnectionID, nil)
	require.NoError(t, err)

	_, err = env.workflows.UpdateWorkflowStatus(ctx, env.actor, child.ID, model.WorkflowStatusCompleted)
	require.NoError(t, err)
	_, err = env.composition.SyncSubWorkflowProgress(ctx, env.actor, child.ID)
	require.NoError(t, err)

	// The parent's progress derives from its own five tasks only: the
	// completed tracking task counts as one of five, nothing rolls up.
	reloaded, err := env.workflows.GetWorkflow(ctx, env.actor, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, reloaded.Progress)
}

func TestSyncRequiresSubWorkflow(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPlant(t, "Rooftop PV", 10, "Photovoltaic")
	standalone := env.instantiateFromBuiltin(t, p, model.TemplateRef{TemplateID: catalog.BuiltinSimplifiedDesignID})

	_, err := env.composition.SyncSubWorkflowProgress(context.Background(), env.actor, standalone.ID)
	var validation *model.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestMergeWorkflows(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPlant(t, "Rooftop PV", 10, "Photovoltaic")
	ctx := context.Background()

	a := env.instantiateFromBuiltin(t, p, model.TemplateRef{TemplateID: catalog.BuiltinSimplifiedDesignID})
	b := env.instantiateFromBuiltin(t, p, model.TemplateRef{TemplateID: catalog.BuiltinConnectionID})

	composite, err := env.composition.MergeWorkflows(ctx, env.actor, []uuid.UUID{a.ID, b.ID},
		"Rooftop PV activation", "Unified process")
	require.NoError(t, err)

	assert.Equal(t, model.WorkflowTypeComposite, composite.Type)
	assert.Equal(t, p.ID, composite.PlantID)
	assert.Contains(t, composite.Config, model.ConfigKeySourceWorkflowIDs)
	assert.Contains(t, composite.Config, model.ConfigKeyMergedAt)

	// Entity union across both sources.
	assert.ElementsMatch(t, []string{"Municipality", "Grid Operator"}, []string(composite.RequiredEntities))

	// One sub-workflow and one tracking task per source.
	require.Len(t, composite.Tasks, 2)
	hierarchy, err := env.hierarchy.GetHierarchy(ctx, env.actor, composite.ID, false)
	require.NoError(t, err)
	require.Len(t, hierarchy.Children, 2)

	for _, childRow := range hierarchy.Children {
		child, err := env.workflows.GetWorkflow(ctx, env.actor, childRow.ID)
		require.NoError(t, err)
		require.NotNil(t, child.OriginalWorkflowID)

		var source *model.Workflow
		switch *child.OriginalWorkflowID {
		case a.ID:
			source = a
		case b.ID:
			source = b
		default:
			t.Fatalf("child %s traces to unknown source %s", child.ID, child.OriginalWorkflowID)
		}
		assert.Equal(t, source.Name, child.Name)
		assert.Len(t, child.Stages, len(source.Stages), "merged child mirrors its source's stages")
		assert.Len(t, child.Tasks, len(source.Tasks), "merged child mirrors its source's tasks")
	}

	// The originals are demoted, not deleted.
	for _, sourceID := range []uuid.UUID{a.ID, b.ID} {
		demoted, err := env.workflows.GetWorkflow(ctx, env.actor, sourceID)
		require.NoError(t, err)
		assert.Equal(t, model.WorkflowStatusCancelled, demoted.Status)
		assert.Equal(t, composite.ID.String(), demoted.Config["mergedInto"])
	}
}

func TestMergeStripsStaleTrackingReferences(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPlant(t, "Rooftop PV", 10, "Photovoltaic")
	ctx := context.Background()

	a := env.instantiateFromBuiltin(t, p, model.TemplateRef{TemplateID: catalog.BuiltinSimplifiedDesignID})
	b := env.instantiateFromBuiltin(t, p, model.TemplateRef{TemplateID: catalog.BuiltinConnectionID})

	// Give one source a sub-workflow so its task set carries a tracking
	// task pointing into the source's own hierarchy.
	grandchild, err := env.composition.CreateSubWorkflow(ctx, env.actor, a.ID, "Screening",
		&catalog.BuiltinProtectedAreaDesignID, nil)
	require.NoError(t, err)

	composite, err := env.composition.MergeWorkflows(ctx, env.actor,
		[]uuid.UUID{a.ID, b.ID}, "Merged", "")
	require.NoError(t, err)

	// The merged copies must not point at the cancelled source's children.
	children, err := env.hierarchy.GetHierarchy(ctx, env.actor, composite.ID, false)
	require.NoError(t, err)
	for _, child := range children.Children {
		full, err := env.workflows.GetWorkflow(ctx, env.actor, child.ID)
		require.NoError(t, err)
		for _, task := range full.Tasks {
			assert.Equal(t, uuid.Nil, task.TrackedSubWorkflowID(),
				"copied task %q keeps a stale tracking reference", task.Title)
		}
	}

	// The source's own tracking task is untouched.
	reloadedA, err := env.workflows.GetWorkflow(ctx, env.actor, a.ID)
	require.NoError(t, err)
	assert.NotNil(t, trackingTaskFor(t, reloadedA, grandchild.ID))
}

func TestMergeWorkflowsRejectsCrossPlant(t *testing.T) {
	env := newTestEnv(t)
	p1 := env.createPlant(t, "Rooftop PV", 10, "Photovoltaic")
	p2 := env.createPlant(t, "Hillside wind", 900, "Wind")
	ctx := context.Background()

	a := env.instantiateFromBuiltin(t, p1, model.TemplateRef{TemplateID: catalog.BuiltinSimplifiedDesignID})
	b := env.instantiateFromBuiltin(t, p2, model.TemplateRef{TemplateID: catalog.BuiltinConnectionID})

	var before int64
	require.NoError(t, env.db.Model(&model.Workflow{}).Count(&before).Error)

	_, err := env.composition.MergeWorkflows(ctx, env.actor, []uuid.UUID{a.ID, b.ID}, "Mixed", "")
	var crossPlant *model.CrossPlantMergeError
	require.ErrorAs(t, err, &crossPlant)

	var after int64
	require.NoError(t, env.db.Model(&model.Workflow{}).Count(&after).Error)
	assert.Equal(t, before, after, "a rejected merge creates nothing")
}

func TestMergeWorkflowsRequiresTwo(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPlant(t, "Rooftop PV", 10, "Photovoltaic")
	a := env.instantiateFromBuiltin(t, p, model.TemplateRef{TemplateID: catalog.BuiltinSimplifiedDesignID})

	_, err := env.composition.MergeWorkflows(context.Background(), env.actor, []uuid.UUID{a.ID}, "Solo", "")
	var validation *model.ValidationError
	assert.ErrorAs(t, err, &validation)
}
