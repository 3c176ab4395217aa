package workflow

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/voltwise/voltwise/internal/plant"
	"github.com/voltwise/voltwise/internal/workflow/catalog"
	"github.com/voltwise/voltwise/internal/workflow/model"
	"github.com/voltwise/voltwise/internal/workflow/service"
)

// CompletionSink receives task-completion events for downstream
// collaborators (notification delivery, document generation). The engine
// only emits; it never waits on the sink.
type CompletionSink interface {
	TaskCompleted(ctx context.Context, n model.TaskCompletionNotification)
}

// Manager wires the engine services together and runs the listener that
// forwards task-completion events to the sink.
type Manager struct {
	Catalog     *catalog.Catalog
	Tasks       *service.TaskService
	Workflows   *service.WorkflowService
	Clones      *service.CloneService
	Composition *service.CompositionService
	Hierarchy   *service.HierarchyService

	sink          CompletionSink
	notifications chan model.TaskCompletionNotification
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewManager builds the engine on top of the given database connection. The
// built-in template set is injected so tests can substitute fixtures; pass
// catalog.BuiltinTemplates() in production. sink may be nil when no
// collaborator consumes completion events.
func NewManager(db *gorm.DB, builtin []model.WorkflowTemplate, sink CompletionSink) *Manager {
	notifications := make(chan model.TaskCompletionNotification, 100)

	cat := catalog.New(db, builtin)
	plants := plant.NewService(db)
	tasks := service.NewTaskService(db, notifications)
	workflows := service.NewWorkflowService(db, cat, plants, tasks)
	clones := service.NewCloneService(db, workflows, plants)
	composition := service.NewCompositionService(db, workflows, cat)
	hierarchy := service.NewHierarchyService(db)

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		Catalog:       cat,
		Tasks:         tasks,
		Workflows:     workflows,
		Clones:        clones,
		Composition:   composition,
		Hierarchy:     hierarchy,
		sink:          sink,
		notifications: notifications,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// StartCompletionListener starts the goroutine that drains task-completion
// events and hands them to the sink.
func (m *Manager) StartCompletionListener() {
	go func() {
		for {
			select {
			case <-m.ctx.Done():
				slog.Info("task completion listener stopped")
				return
			case n := <-m.notifications:
				slog.Info("task completed",
					"task_id", n.TaskID,
					"workflow_id", n.WorkflowID,
					"new_progress", n.NewProgress,
				)
				if m.sink != nil {
					m.sink.TaskCompleted(m.ctx, n)
				}
			}
		}
	}()
}

// StopCompletionListener stops the completion listener goroutine.
func (m *Manager) StopCompletionListener() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Migrate creates the engine tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.WorkflowTemplate{},
		&model.Workflow{},
		&model.Stage{},
		&model.Task{},
	)
}
