package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/voltwise/voltwise/internal/auth"
	"github.com/voltwise/voltwise/internal/plant"
	"github.com/voltwise/voltwise/internal/workflow/catalog"
	"github.com/voltwise/voltwise/internal/workflow/model"
)

// testEnv wires the full service stack onto an in-memory database.
type testEnv struct {
	db            *gorm.DB
	catalog       *catalog.Catalog
	plants        *plant.Service
	tasks         *TaskService
	workflows     *WorkflowService
	clones        *CloneService
	composition   *CompositionService
	hierarchy     *HierarchyService
	notifications chan model.TaskCompletionNotification
	actor         auth.Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&plant.Plant{},
		&model.WorkflowTemplate{},
		&model.Workflow{},
		&model.Stage{},
		&model.Task{},
	))

	notifications := make(chan model.TaskCompletionNotification, 16)
	cat := catalog.New(db, catalog.BuiltinTemplates())
	plants := plant.NewService(db)
	tasks := NewTaskService(db, notifications)
	workflows := NewWorkflowService(db, cat, plants, tasks)

	return &testEnv{
		db:            db,
		catalog:       cat,
		plants:        plants,
		tasks:         tasks,
		workflows:     workflows,
		clones:        NewCloneService(db, workflows, plants),
		composition:   NewCompositionService(db, workflows, cat),
		hierarchy:     NewHierarchyService(db),
		notifications: notifications,
		actor:         auth.Actor{UserID: "tester", TenantID: "tenant-a"},
	}
}

func (e *testEnv) createPlant(t *testing.T, name string, powerKw float64, plantType string) *plant.Plant {
	t.Helper()
	p := &plant.Plant{
		TenantID:  e.actor.TenantID,
		Name:      name,
		PlantType: plantType,
		PowerKw:   powerKw,
	}
	require.NoError(t, e.plants.CreatePlant(context.Background(), p))
	return p
}

// instantiateFromBuiltin creates a workflow from a built-in template for the
// given plant, failing the test on any error.
func (e *testEnv) instantiateFromBuiltin(t *testing.T, p *plant.Plant, ref model.TemplateRef) *model.Workflow {
	t.Helper()
	created, err := e.workflows.Instantiate(context.Background(), e.actor, p.ID, ref, model.InstantiationOverrides{})
	require.NoError(t, err)
	return created
}

func taskByTitle(t *testing.T, tasks []model.Task, title string) *model.Task {
	t.Helper()
	for i := range tasks {
		if tasks[i].Title == title {
			return &tasks[i]
		}
	}
	t.Fatalf("no task titled %q", title)
	return nil
}
