package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/petal-labs/petalapp/tool"
)

// Cron is the standard schedule handler: robfig/cron drives the triggers,
// run outcomes are persisted through a Store, and every firing is routed to
// the app's dispatcher via the Invoker.
type Cron struct {
	store   Store
	invoker Invoker
	logger  *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	started bool
}

// NewCron creates a cron-backed schedule handler. The invoker is typically
// (*app.App).Invoke.
func NewCron(store Store, invoker Invoker, logger *slog.Logger) *Cron {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cron{
		store:   store,
		invoker: invoker,
		logger:  logger.With("component", "schedule"),
		entries: make(map[string]cron.EntryID),
	}
}

// Start loads persisted schedules and begins firing enabled triggers.
func (c *Cron) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	c.cron = cron.New()
	schedules, err := c.store.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("schedule: load: %w", err)
	}
	for _, s := range schedules {
		if !s.Enabled {
			continue
		}
		if err := c.addEntryLocked(s); err != nil {
			return err
		}
	}

	c.cron.Start()
	c.started = true
	c.logger.Info("scheduler started", "schedules", len(schedules), "active", len(c.entries))
	return nil
}

// Stop halts the trigger loop; running jobs are allowed to finish.
func (c *Cron) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	stopCtx := c.cron.Stop()
	<-stopCtx.Done()
	c.entries = make(map[string]cron.EntryID)
	c.started = false
	c.logger.Info("scheduler stopped")
}

// Create validates and persists a new schedule, activating it immediately
// when the scheduler is running and the schedule is enabled.
func (c *Cron) Create(ctx context.Context, s Schedule) (Schedule, error) {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return Schedule{}, tool.NewError(tool.ErrorCodeInvalidConfig, "schedule name is required")
	}
	if s.Tool == "" {
		return Schedule{}, tool.NewError(tool.ErrorCodeInvalidConfig, "schedule %q names no tool", s.Name)
	}
	if _, err := cron.ParseStandard(s.Spec); err != nil {
		return Schedule{}, tool.NewError(tool.ErrorCodeInvalidConfig, "schedule %q has invalid cron spec %q: %v", s.Name, s.Spec, err)
	}

	if _, err := c.get(ctx, s.Name); err == nil {
		return Schedule{}, tool.NewError(tool.ErrorCodeInvalidConfig, "schedule %q already exists", s.Name)
	}

	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	if err := c.store.SaveSchedule(ctx, s); err != nil {
		return Schedule{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started && s.Enabled {
		if err := c.addEntryLocked(s); err != nil {
			return Schedule{}, err
		}
	}
	return s, nil
}

func (c *Cron) Get(ctx context.Context, name string) (Schedule, error) {
	return c.get(ctx, name)
}

func (c *Cron) List(ctx context.Context) ([]Schedule, error) {
	return c.store.ListSchedules(ctx)
}

func (c *Cron) Delete(ctx context.Context, name string) error {
	if _, err := c.get(ctx, name); err != nil {
		return err
	}
	if err := c.store.DeleteSchedule(ctx, name); err != nil {
		return err
	}
	c.mu.Lock()
	c.removeEntryLocked(name)
	c.mu.Unlock()
	return nil
}

func (c *Cron) Enable(ctx context.Context, name string) (Schedule, error) {
	return c.setEnabled(ctx, name, true)
}

func (c *Cron) Disable(ctx context.Context, name string) (Schedule, error) {
	return c.setEnabled(ctx, name, false)
}

// Trigger fires a schedule now and records the outcome.
func (c *Cron) Trigger(ctx context.Context, name string) (RunRecord, error) {
	s, err := c.get(ctx, name)
	if err != nil {
		return RunRecord{}, err
	}
	return c.run(ctx, s), nil
}

func (c *Cron) History(ctx context.Context, name string, limit int) ([]RunRecord, error) {
	if _, err := c.get(ctx, name); err != nil {
		return nil, err
	}
	return c.store.ListRuns(ctx, name, limit)
}

func (c *Cron) get(ctx context.Context, name string) (Schedule, error) {
	schedules, err := c.store.ListSchedules(ctx)
	if err != nil {
		return Schedule{}, err
	}
	for _, s := range schedules {
		if s.Name == name {
			return s, nil
		}
	}
	return Schedule{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (c *Cron) setEnabled(ctx context.Context, name string, enabled bool) (Schedule, error) {
	s, err := c.get(ctx, name)
	if err != nil {
		return Schedule{}, err
	}
	if s.Enabled == enabled {
		return s, nil
	}
	s.Enabled = enabled
	s.UpdatedAt = time.Now().UTC()
	if err := c.store.SaveSchedule(ctx, s); err != nil {
		return Schedule{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		if enabled {
			if err := c.addEntryLocked(s); err != nil {
				return Schedule{}, err
			}
		} else {
			c.removeEntryLocked(name)
		}
	}
	return s, nil
}

// addEntryLocked registers a cron entry for s. Caller holds c.mu.
func (c *Cron) addEntryLocked(s Schedule) error {
	name := s.Name
	id, err := c.cron.AddFunc(s.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		current, err := c.get(ctx, name)
		if err != nil {
			c.logger.Warn("trigger for missing schedule", "schedule", name)
			return
		}
		c.run(ctx, current)
	})
	if err != nil {
		return tool.NewError(tool.ErrorCodeInvalidConfig, "schedule %q: %v", s.Name, err)
	}
	c.entries[s.Name] = id
	return nil
}

// removeEntryLocked drops the cron entry for name, if any. Caller holds c.mu.
func (c *Cron) removeEntryLocked(name string) {
	if id, ok := c.entries[name]; ok {
		c.cron.Remove(id)
		delete(c.entries, name)
	}
}

// run invokes the schedule's tool and persists the outcome.
func (c *Cron) run(ctx context.Context, s Schedule) RunRecord {
	start := time.Now()
	resp := c.invoker(ctx, tool.Request{
		ID:    uuid.NewString(),
		Tool:  s.Tool,
		Input: s.Input,
	})

	rec := RunRecord{
		ID:         resp.ID,
		Schedule:   s.Name,
		StartedAt:  start.UTC(),
		DurationMS: time.Since(start).Milliseconds(),
		Success:    resp.Ok(),
		Output:     resp.Content,
	}
	if resp.Err != nil {
		rec.Error = resp.Err.Error()
	}

	if err := c.store.AppendRun(ctx, rec); err != nil {
		c.logger.Error("recording schedule run", "schedule", s.Name, "error", err)
	}
	c.logger.Debug("schedule fired",
		"schedule", s.Name,
		"tool", s.Tool,
		"success", rec.Success,
		"duration_ms", rec.DurationMS,
	)
	return rec
}
