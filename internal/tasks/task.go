package tasks

import (
	"context"
	"time"
)

// Progress receives completion percentages (0 to 100) from a running task.
// Implementations must be safe for concurrent use.
type Progress interface {
	Report(percent float64)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(percent float64)

// Report calls f(percent).
func (f ProgressFunc) Report(percent float64) { f(percent) }

// Discard ignores progress reports.
var Discard Progress = ProgressFunc(func(float64) {})

// TriggerType selects when a task runs without being asked.
type TriggerType string

const (
	// TriggerInterval runs the task every Interval.
	TriggerInterval TriggerType = "interval"
	// TriggerStartup runs the task once when it is registered.
	TriggerStartup TriggerType = "startup"
)

// Trigger schedules automatic runs of a task.
type Trigger struct {
	Type     TriggerType   `json:"type"`
	Interval time.Duration `json:"interval,omitempty"`
}

// Task is a named unit of work the Manager can run on demand or on a
// schedule. A task with no default triggers only runs when started manually.
type Task interface {
	Name() string
	Key() string
	Description() string
	Category() string
	DefaultTriggers() []Trigger
	Execute(ctx context.Context, progress Progress) error
}
