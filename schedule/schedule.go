// Package schedule implements the scheduling capability of an app: named
// cron-driven triggers that invoke registered tools and keep a persisted
// history of their runs. The app runtime starts and stops the scheduler
// around its run loop; triggers are dispatched exactly like any other
// invocation.
package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/petal-labs/petalapp/tool"
)

// ErrNotFound is returned when a named schedule does not exist.
var ErrNotFound = errors.New("schedule: not found")

// Schedule is one named cron trigger bound to a tool.
type Schedule struct {
	Name      string         `json:"name"`
	Spec      string         `json:"spec"` // standard 5-field cron expression
	Tool      string         `json:"tool"`
	Input     map[string]any `json:"input,omitempty"`
	Enabled   bool           `json:"enabled"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RunRecord is the persisted outcome of one trigger firing.
type RunRecord struct {
	ID         string    `json:"id"`
	Schedule   string    `json:"schedule"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Handler is the capability contract for schedule management.
type Handler interface {
	Create(ctx context.Context, s Schedule) (Schedule, error)
	Get(ctx context.Context, name string) (Schedule, error)
	List(ctx context.Context) ([]Schedule, error)
	Delete(ctx context.Context, name string) error
	Enable(ctx context.Context, name string) (Schedule, error)
	Disable(ctx context.Context, name string) (Schedule, error)

	// Trigger fires a schedule immediately, regardless of its cron spec or
	// enabled state, and returns the recorded outcome.
	Trigger(ctx context.Context, name string) (RunRecord, error)

	// History returns the most recent runs of a schedule, newest first.
	History(ctx context.Context, name string, limit int) ([]RunRecord, error)
}

// Runner is implemented by schedule handlers that own background work. The
// app runtime starts the runner when it enters Running and stops it on
// shutdown.
type Runner interface {
	Start(ctx context.Context) error
	Stop()
}

// Invoker routes a trigger into the app's dispatch path.
type Invoker func(ctx context.Context, req tool.Request) tool.Response

// Store abstracts persistence for schedules and their run history.
type Store interface {
	SaveSchedule(ctx context.Context, s Schedule) error
	DeleteSchedule(ctx context.Context, name string) error
	ListSchedules(ctx context.Context) ([]Schedule, error)
	AppendRun(ctx context.Context, rec RunRecord) error
	ListRuns(ctx context.Context, schedule string, limit int) ([]RunRecord, error)
	Close() error
}
