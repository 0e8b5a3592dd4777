// Package app is the runtime that ties the pieces of a platform app together:
// a registry of tools, optional channel and schedule capabilities, and a run
// loop that serves invocation requests arriving over a transport. An App is
// built up during a Building phase, then Run freezes the surface and serves
// until the context is cancelled or the platform disconnects.
package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/petal-labs/petalapp/channel"
	"github.com/petal-labs/petalapp/comm"
	"github.com/petal-labs/petalapp/schedule"
	"github.com/petal-labs/petalapp/schema"
	"github.com/petal-labs/petalapp/tool"
	"github.com/petal-labs/petalapp/transport"
)

// State is the app lifecycle phase.
type State int

const (
	// StateBuilding accepts capability registration.
	StateBuilding State = iota
	// StateRunning serves requests; registration is rejected.
	StateRunning
	// StateStopped is terminal. A stopped app cannot be run again.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// App is one platform app process.
type App struct {
	cfg        Config
	logger     *slog.Logger
	registry   *tool.Registry
	dispatcher *tool.Dispatcher

	mu        sync.Mutex
	state     State
	channels  []channel.Handler
	comms     []comm.Handler
	scheduler schedule.Handler
}

// Option configures an App at construction time.
type Option func(*App)

// WithLogger sets the app's logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New validates the configuration and returns an app in the Building state.
func New(cfg Config, opts ...Option) (*App, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("app", cfg.Name)
	a.registry = tool.NewRegistry()
	a.dispatcher = tool.NewDispatcher(a.registry, a.logger)
	return a, nil
}

// RegisterTool adds a tool to the app's surface. Fails with DUPLICATE_TOOL on
// a name collision and REGISTRY_FROZEN once Run has been called.
func (a *App) RegisterTool(h tool.Handler) error {
	return a.registry.Register(h)
}

// RegisterToolFunc is a convenience wrapper over RegisterTool for plain
// functions.
func (a *App) RegisterToolFunc(name, description string, s schema.Schema, fn func(ctx context.Context, input map[string]any) (string, error)) error {
	return a.registry.Register(tool.NewFunc(name, description, s, fn))
}

// RegisterChannel adds a channel capability. Channels are connected when Run
// starts and their inbound messages are forwarded to the platform as events.
func (a *App) RegisterChannel(h channel.Handler) error {
	if h == nil || h.ID() == "" {
		return tool.NewError(tool.ErrorCodeInvalidConfig, "channel handler must have an ID")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateBuilding {
		return tool.NewError(tool.ErrorCodeRegistryFrozen, "register channels before Run")
	}
	for _, c := range a.channels {
		if c.ID() == h.ID() {
			return tool.NewError(tool.ErrorCodeInvalidConfig, "channel %q is already registered", h.ID())
		}
	}
	a.channels = append(a.channels, h)
	return nil
}

// RegisterComm adds an inter-agent communication bridge. Like a channel, it
// is connected when Run starts and its inbound messages are forwarded to the
// platform as events.
func (a *App) RegisterComm(h comm.Handler) error {
	if h == nil || h.Name() == "" {
		return tool.NewError(tool.ErrorCodeInvalidConfig, "comm handler must have a name")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateBuilding {
		return tool.NewError(tool.ErrorCodeRegistryFrozen, "register comm handlers before Run")
	}
	for _, c := range a.comms {
		if c.Name() == h.Name() {
			return tool.NewError(tool.ErrorCodeInvalidConfig, "comm handler %q is already registered", h.Name())
		}
	}
	a.comms = append(a.comms, h)
	return nil
}

// RegisterSchedule installs the schedule capability. At most one handler may
// be installed; NewDefaultScheduler builds the standard one.
func (a *App) RegisterSchedule(h schedule.Handler) error {
	if h == nil {
		return tool.NewError(tool.ErrorCodeInvalidConfig, "nil schedule handler")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateBuilding {
		return tool.NewError(tool.ErrorCodeRegistryFrozen, "register the scheduler before Run")
	}
	if a.scheduler != nil {
		return tool.NewError(tool.ErrorCodeInvalidConfig, "schedule handler is already registered")
	}
	a.scheduler = h
	return nil
}

// NewDefaultScheduler builds the cron scheduler wired to this app's dispatch
// path, persisting under the configured data dir.
func (a *App) NewDefaultScheduler() (*schedule.Cron, error) {
	if a.cfg.DataDir == "" {
		return nil, tool.NewError(tool.ErrorCodeInvalidConfig, "scheduling requires data_dir (or PETALAPP_DATA)")
	}
	store, err := schedule.NewSQLiteStore(schedule.DefaultStorePath(a.cfg.DataDir))
	if err != nil {
		return nil, err
	}
	return schedule.NewCron(store, a.Invoke, a.logger), nil
}

// Invoke dispatches one request through the app's validation and execution
// pipeline. It is the entry point used by the run loop, by the scheduler's
// triggers, and by tests.
func (a *App) Invoke(ctx context.Context, req tool.Request) tool.Response {
	return a.dispatcher.Dispatch(ctx, req)
}

// Tools returns descriptors for the registered tools in registration order.
func (a *App) Tools() []tool.Descriptor {
	return a.registry.List()
}

// Schedules returns the installed schedule handler, or nil.
func (a *App) Schedules() schedule.Handler {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scheduler
}

// State returns the current lifecycle phase.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Run opens a session with the platform and serves it until ctx is cancelled
// or the session ends. The registry is frozen on entry; an app with no
// registered capability refuses to run. On shutdown, in-flight executions get
// the configured grace period to finish before their contexts are cancelled.
func (a *App) Run(ctx context.Context, tr transport.Transport) error {
	a.mu.Lock()
	if a.state != StateBuilding {
		st := a.state
		a.mu.Unlock()
		return tool.NewError(tool.ErrorCodeInvalidConfig, "app is %s; Run may be called once", st)
	}
	if a.registry.Len() == 0 && len(a.channels) == 0 && len(a.comms) == 0 && a.scheduler == nil {
		a.mu.Unlock()
		return tool.NewError(tool.ErrorCodeInvalidConfig, "app exposes no capabilities; register a tool, channel, comm bridge, or schedule before Run")
	}
	a.registry.Freeze()
	a.state = StateRunning
	channels := a.channels
	comms := a.comms
	scheduler := a.scheduler
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.state = StateStopped
		a.mu.Unlock()
	}()

	conn, err := tr.Open(ctx, transport.Info{
		Name:    a.cfg.Name,
		Version: a.cfg.Version,
		ID:      a.cfg.ID,
		Tools:   a.registry.List(),
	})
	if err != nil {
		return err
	}

	// Invocations run on their own context so a cancelled run context does not
	// cut off executions still inside their grace period.
	invokeCtx, cancelInvoke := context.WithCancel(context.Background())
	defer cancelInvoke()

	fwdCtx, cancelFwd := context.WithCancel(ctx)
	defer cancelFwd()
	fwd, fwdGroupCtx := errgroup.WithContext(fwdCtx)
	for _, ch := range channels {
		if err := a.startChannel(fwdGroupCtx, fwd, ch, conn); err != nil {
			_ = conn.Close(context.Background())
			return err
		}
	}
	for _, cm := range comms {
		if err := a.startComm(fwdGroupCtx, fwd, cm, conn); err != nil {
			_ = conn.Close(context.Background())
			return err
		}
	}

	if runner, ok := scheduler.(schedule.Runner); ok {
		if err := runner.Start(ctx); err != nil {
			cancelFwd()
			_ = fwd.Wait()
			_ = conn.Close(context.Background())
			return err
		}
		defer runner.Stop()
	}

	a.logger.Info("app running",
		"version", a.cfg.Version,
		"tools", a.registry.Len(),
		"channels", len(channels),
		"comms", len(comms),
		"scheduled", scheduler != nil,
	)

	var inflight sync.WaitGroup
serve:
	for {
		select {
		case <-ctx.Done():
			break serve
		case req, ok := <-conn.Recv():
			if !ok {
				break serve
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				resp := a.Invoke(invokeCtx, req)
				if invokeCtx.Err() != nil {
					// Past the grace period; the caller has given up on this
					// invocation and its response is discarded.
					return
				}
				if err := conn.Send(invokeCtx, resp); err != nil {
					a.logger.Warn("response dropped", "id", resp.ID, "error", err)
				}
			}()
		}
	}

	a.shutdown(&inflight, cancelInvoke)

	cancelFwd()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGrace)
	defer cancel()
	for _, ch := range channels {
		if err := ch.Disconnect(shutdownCtx); err != nil {
			a.logger.Warn("channel disconnect", "channel", ch.ID(), "error", err)
		}
	}
	for _, cm := range comms {
		if err := cm.Disconnect(shutdownCtx); err != nil {
			a.logger.Warn("comm disconnect", "comm", cm.Name(), "error", err)
		}
	}
	_ = fwd.Wait()

	closeErr := conn.Close(shutdownCtx)
	a.logger.Info("app stopped")
	if ctx.Err() != nil {
		return nil
	}
	return closeErr
}

// shutdown waits up to the configured grace period for in-flight executions,
// then cancels whatever is still running. Cancellation is cooperative, so a
// handler that never observes its context must not hold Run open: after a
// short drain its goroutine is abandoned and the cancelled invoke context
// ensures any late response is discarded.
func (a *App) shutdown(inflight *sync.WaitGroup, cancelInvoke context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(a.cfg.ShutdownGrace):
		a.logger.Warn("shutdown grace elapsed; cancelling in-flight invocations", "grace", a.cfg.ShutdownGrace)
		cancelInvoke()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
			a.logger.Warn("abandoning invocations that ignored cancellation")
		}
	}
}

// startChannel connects a channel and spawns its inbound forwarder.
func (a *App) startChannel(ctx context.Context, g *errgroup.Group, ch channel.Handler, conn transport.Conn) error {
	if err := ch.Connect(ctx, nil); err != nil {
		return tool.WrapError(tool.ErrorCodeInvalidConfig, err)
	}
	inbox, err := ch.Receive(ctx)
	if err != nil {
		return tool.WrapError(tool.ErrorCodeInvalidConfig, err)
	}

	id := ch.ID()
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-inbox:
				if !ok {
					return nil
				}
				ev := transport.Event{
					Channel:  msg.ChannelID,
					User:     msg.UserID,
					Text:     msg.Text,
					Metadata: msg.Metadata,
				}
				if err := conn.Notify(ctx, ev); err != nil {
					a.logger.Warn("event dropped", "channel", id, "error", err)
				}
			}
		}
	})
	return nil
}

// startComm connects a comm bridge and spawns its inbound forwarder. Bus
// messages surface to the platform as events keyed by topic.
func (a *App) startComm(ctx context.Context, g *errgroup.Group, h comm.Handler, conn transport.Conn) error {
	if err := h.Connect(ctx, nil); err != nil {
		return tool.WrapError(tool.ErrorCodeInvalidConfig, err)
	}
	inbox, err := h.Receive(ctx)
	if err != nil {
		return tool.WrapError(tool.ErrorCodeInvalidConfig, err)
	}

	name := h.Name()
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-inbox:
				if !ok {
					return nil
				}
				var meta string
				if len(msg.Metadata) > 0 {
					if raw, err := json.Marshal(msg.Metadata); err == nil {
						meta = string(raw)
					}
				}
				ev := transport.Event{
					Channel:  msg.Topic,
					User:     msg.From,
					Text:     msg.Content,
					Metadata: meta,
				}
				if err := conn.Notify(ctx, ev); err != nil {
					a.logger.Warn("event dropped", "comm", name, "error", err)
				}
			}
		}
	})
	return nil
}
