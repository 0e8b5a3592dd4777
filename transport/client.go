package transport

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/petal-labs/petalapp/tool"
)

// Client is the platform side of a WebSocket session. It is what the CLI and
// tests use to introspect and invoke a running app. A Client reads frames
// from a single goroutine; it is not safe for concurrent use.
type Client struct {
	conn *websocket.Conn

	// Events receives app-originated events observed while waiting for
	// replies. Buffered; overflow is dropped.
	Events chan Event
}

// Dial connects to a running app at url (ws://host:port).
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	return &Client{
		conn:   conn,
		Events: make(chan Event, 16),
	}, nil
}

// Describe asks the app for its identity and tool listing.
func (c *Client) Describe(ctx context.Context) (Info, error) {
	id := uuid.NewString()
	if err := wsjson.Write(ctx, c.conn, envelope{Type: "describe", ID: id}); err != nil {
		return Info{}, fmt.Errorf("transport: describe: %w", err)
	}

	e, err := c.await(ctx, "tools", id)
	if err != nil {
		return Info{}, err
	}
	if e.Info == nil {
		return Info{}, fmt.Errorf("transport: tools frame carried no info")
	}
	return *e.Info, nil
}

// Call invokes a named tool with the given input and waits for its response.
// A tool-level failure is returned inside the Response, not as an error;
// the error return covers the transport only.
func (c *Client) Call(ctx context.Context, toolName string, input map[string]any) (tool.Response, error) {
	id := uuid.NewString()
	if err := wsjson.Write(ctx, c.conn, envelope{Type: "invoke", ID: id, Tool: toolName, Input: input}); err != nil {
		return tool.Response{}, fmt.Errorf("transport: invoke %s: %w", toolName, err)
	}

	e, err := c.await(ctx, "result", id)
	if err != nil {
		return tool.Response{}, err
	}
	return tool.Response{ID: e.ID, Content: e.Content, Err: e.Error}, nil
}

// await reads frames until one matches the wanted type and ID, surfacing
// events on the side and failing on error frames addressed to this request.
func (c *Client) await(ctx context.Context, wantType, wantID string) (envelope, error) {
	for {
		var e envelope
		if err := wsjson.Read(ctx, c.conn, &e); err != nil {
			return envelope{}, fmt.Errorf("transport: read: %w", err)
		}

		switch {
		case e.Type == wantType && e.ID == wantID:
			return e, nil
		case e.Type == "event" && e.Event != nil:
			select {
			case c.Events <- *e.Event:
			default:
			}
		case e.Type == "error" && (e.ID == wantID || e.ID == ""):
			if e.Error != nil {
				return envelope{}, e.Error
			}
			return envelope{}, fmt.Errorf("transport: request %s rejected", wantID)
		}
	}
}

// Close ends the session.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
