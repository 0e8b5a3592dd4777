package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/petal-labs/petalapp/tool"
)

// envelope is the JSON frame exchanged over a WebSocket session.
//
// Platform → app: {type: describe} and {type: invoke, id, tool, input}.
// App → platform: {type: tools, info}, {type: result, id, content|error},
// {type: event, event}, and {type: error, error} for malformed frames.
type envelope struct {
	Type    string         `json:"type"`
	ID      string         `json:"id,omitempty"`
	Tool    string         `json:"tool,omitempty"`
	Input   map[string]any `json:"input,omitempty"`
	Content string         `json:"content,omitempty"`
	Error   *tool.Error    `json:"error,omitempty"`
	Info    *Info          `json:"info,omitempty"`
	Event   *Event         `json:"event,omitempty"`
}

// WS serves platform sessions over WebSocket. The app listens and the
// platform connects; any number of platform connections may share one
// session, with responses routed back to the connection that sent the
// corresponding invoke frame.
type WS struct {
	addr   string
	logger *slog.Logger
}

// NewWS creates a WebSocket transport bound to addr (host:port; use :0 to
// pick a free port).
func NewWS(addr string, logger *slog.Logger) *WS {
	if logger == nil {
		logger = slog.Default()
	}
	return &WS{addr: addr, logger: logger.With("component", "transport")}
}

// Open binds the listener and starts accepting platform connections.
func (t *WS) Open(ctx context.Context, info Info) (Conn, error) {
	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", t.addr, err)
	}

	c := &wsConn{
		info:     info,
		logger:   t.logger,
		requests: make(chan tool.Request, 64),
		done:     make(chan struct{}),
		pending:  make(map[string]*wsPeer),
		peers:    make(map[*wsPeer]struct{}),
	}

	srv := &http.Server{Handler: http.HandlerFunc(c.handle)}
	c.srv = srv
	c.addr = ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("transport serve ended", "error", err)
		}
	}()

	t.logger.Info("transport listening", "addr", c.addr, "app", info.Name)
	return c, nil
}

// wsPeer is one connected platform client.
type wsPeer struct {
	mu   sync.Mutex // one writer at a time per websocket
	conn *websocket.Conn
}

func (p *wsPeer) write(ctx context.Context, e envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return wsjson.Write(ctx, p.conn, e)
}

// wsConn is the live session handed to the app's run loop.
type wsConn struct {
	info   Info
	logger *slog.Logger
	srv    *http.Server
	addr   string

	requests  chan tool.Request
	done      chan struct{}
	closeOnce sync.Once
	sendWG    sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	pending map[string]*wsPeer // invocation ID -> originating peer
	peers   map[*wsPeer]struct{}
}

// Addr returns the bound listen address.
func (c *wsConn) Addr() string {
	return c.addr
}

func (c *wsConn) Recv() <-chan tool.Request {
	return c.requests
}

// Send routes the response to the peer that sent the matching invoke frame.
func (c *wsConn) Send(ctx context.Context, resp tool.Response) error {
	c.mu.Lock()
	p, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("transport: no pending invocation %s", resp.ID)
	}

	return p.write(ctx, envelope{
		Type:    "result",
		ID:      resp.ID,
		Content: resp.Content,
		Error:   resp.Err,
	})
}

// Notify broadcasts an app-originated event to every connected peer.
func (c *wsConn) Notify(ctx context.Context, ev Event) error {
	c.mu.Lock()
	peers := make([]*wsPeer, 0, len(c.peers))
	for p := range c.peers {
		peers = append(peers, p)
	}
	c.mu.Unlock()

	var firstErr error
	for _, p := range peers {
		if err := p.write(ctx, envelope{Type: "event", Event: &ev}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close stops accepting connections and closes the request stream. Safe to
// call more than once.
func (c *wsConn) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)

		// Force-close: websocket connections are hijacked, so a graceful
		// Shutdown would not wait for them anyway.
		err = c.srv.Close()

		c.sendWG.Wait()
		close(c.requests)
	})
	return err
}

// handle upgrades one platform connection and runs its read loop.
func (c *wsConn) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // session auth is the platform supervisor's concern
	})
	if err != nil {
		c.logger.Error("websocket accept failed", "error", err)
		return
	}

	p := &wsPeer{conn: ws}
	c.mu.Lock()
	c.peers[p] = struct{}{}
	c.mu.Unlock()

	c.logger.Debug("platform connected", "remote", r.RemoteAddr)
	defer func() {
		c.mu.Lock()
		delete(c.peers, p)
		for id, owner := range c.pending {
			if owner == p {
				delete(c.pending, id)
			}
		}
		c.mu.Unlock()
		ws.Close(websocket.StatusNormalClosure, "session ended")
		c.logger.Debug("platform disconnected", "remote", r.RemoteAddr)
	}()

	for {
		_, data, err := ws.Read(r.Context())
		if err != nil {
			return
		}

		var e envelope
		if err := json.Unmarshal(data, &e); err != nil {
			// Malformed frame: report it on this connection, keep the
			// session and every other invocation untouched.
			_ = p.write(r.Context(), envelope{
				Type:  "error",
				Error: tool.NewError(tool.ErrorCodeInvalidConfig, "malformed envelope: %v", err),
			})
			continue
		}

		switch e.Type {
		case "ping":
			_ = p.write(r.Context(), envelope{Type: "pong", ID: e.ID})

		case "describe":
			info := c.info
			_ = p.write(r.Context(), envelope{Type: "tools", ID: e.ID, Info: &info})

		case "invoke":
			id := e.ID
			if id == "" {
				id = uuid.NewString()
			}
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				_ = p.write(r.Context(), envelope{
					Type:  "result",
					ID:    id,
					Error: tool.NewError(tool.ErrorCodeExecutionFailed, "app is shutting down"),
				})
				continue
			}
			c.pending[id] = p
			c.sendWG.Add(1)
			c.mu.Unlock()

			select {
			case c.requests <- tool.Request{ID: id, Tool: e.Tool, Input: e.Input}:
			case <-c.done:
			}
			c.sendWG.Done()

		default:
			_ = p.write(r.Context(), envelope{
				Type:  "error",
				ID:    e.ID,
				Error: tool.NewError(tool.ErrorCodeInvalidConfig, "unknown envelope type %q", e.Type),
			})
		}
	}
}
