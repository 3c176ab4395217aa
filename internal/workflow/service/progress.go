package service

import (
	"math"

	"github.com/voltwise/voltwise/internal/workflow/model"
)

// ComputeProgress derives a workflow's completion percentage from its task
// set: round(100 * completed / total), 0 when there are no tasks. The
// extremes are reserved: 100 only when every task is completed and 0 only
// when none is, so rounding never masks remaining or started work. Pure
// function, called after every task status mutation and after clone/merge
// construction. It never fails.
func ComputeProgress(tasks []model.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range tasks {
		if t.Status == model.TaskStatusCompleted {
			completed++
		}
	}
	if completed == len(tasks) {
		return 100
	}
	p := int(math.Round(100 * float64(completed) / float64(len(tasks))))
	if p == 100 {
		p = 99
	}
	if p == 0 && completed > 0 {
		p = 1
	}
	return p
}
