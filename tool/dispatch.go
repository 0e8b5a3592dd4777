package tool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/petal-labs/petalapp/schema"
)

// Request is one invocation delivered by the transport: a tool name and the
// untyped input value that arrived with it. ID is minted by the dispatcher
// when the transport did not assign one.
type Request struct {
	ID    string         `json:"id"`
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

// Response is the normalized outcome of one invocation: either Content on
// success or a structured Err. Exactly one of the two is set.
type Response struct {
	ID      string `json:"id"`
	Content string `json:"content,omitempty"`
	Err     *Error `json:"error,omitempty"`
}

// Ok reports whether the invocation succeeded.
func (r Response) Ok() bool {
	return r.Err == nil
}

// Dispatcher resolves a request's tool via the registry, validates its input
// against the tool's schema, runs the handler, and normalizes the outcome
// into a Response. Every failure mode is local to the one invocation: a
// misbehaving tool never terminates the process or disturbs the dispatch of
// concurrent requests. Retries are deliberately absent — the dispatcher
// cannot know whether an execution is safely retryable.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Dispatch processes one request to completion. It is safe for concurrent
// use; each call is an independent unit of work.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	start := time.Now()

	resp := d.dispatch(ctx, req)

	obs := InvokeObservation{
		Tool:       req.Tool,
		Action:     actionOf(req.Input),
		DurationMS: time.Since(start).Milliseconds(),
		Success:    resp.Ok(),
	}
	if resp.Err != nil {
		obs.ErrorCode = resp.Err.Code
		d.logger.Debug("invocation failed",
			"id", req.ID,
			"tool", req.Tool,
			"code", resp.Err.Code,
			"duration_ms", obs.DurationMS,
		)
	} else {
		d.logger.Debug("invocation completed",
			"id", req.ID,
			"tool", req.Tool,
			"duration_ms", obs.DurationMS,
		)
	}
	emitInvokeObservation(obs)

	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) Response {
	h, ok := d.registry.Lookup(req.Tool)
	if !ok {
		return Response{ID: req.ID, Err: NewError(ErrorCodeToolNotFound, "no tool registered as %q", req.Tool)}
	}

	if err := Validate(h.Schema(), req.Input); err != nil {
		if toolErr, ok := AsError(err); ok {
			return Response{ID: req.ID, Err: toolErr}
		}
		return Response{ID: req.ID, Err: WrapError(ErrorCodeExecutionFailed, err)}
	}

	content, err := d.execute(ctx, h, req.Input)
	if err != nil {
		// Validation codes belong to the dispatcher's pre-execution checks; a
		// failure out of Execute is an execution failure whatever code it
		// carried.
		if toolErr, ok := AsError(err); ok && toolErr.Code == ErrorCodeExecutionFailed {
			return Response{ID: req.ID, Err: toolErr}
		}
		return Response{ID: req.ID, Err: WrapError(ErrorCodeExecutionFailed, err)}
	}

	return Response{ID: req.ID, Content: content}
}

// execute runs the handler with a recover fence. A panic inside a handler is
// a programming defect in that tool, not a reason to take down the process;
// it is converted into an EXECUTION_FAILED response.
func (d *Dispatcher) execute(ctx context.Context, h Handler, input map[string]any) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic recovered",
				"tool", h.Name(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			err = NewError(ErrorCodeExecutionFailed, "tool %q panicked: %v", h.Name(), r)
		}
	}()
	return h.Execute(ctx, input)
}

func actionOf(input map[string]any) string {
	if a, ok := input[schema.ActionField].(string); ok {
		return a
	}
	return ""
}
