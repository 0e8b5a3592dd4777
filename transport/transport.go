// Package transport connects a running app to the hosting platform. The core
// consumes only the contract defined here: a connection that yields a finite
// stream of invocation requests and accepts responses in reply. The wire
// protocol behind that contract belongs to the transport, not to the dispatch
// core; this package ships a WebSocket implementation plus a matching client.
package transport

import (
	"context"

	"github.com/petal-labs/petalapp/tool"
)

// Info carries the app identity and introspection data a transport presents
// to the platform when the session is established.
type Info struct {
	Name    string            `json:"name"`
	Version string            `json:"version,omitempty"`
	ID      string            `json:"id,omitempty"`
	Tools   []tool.Descriptor `json:"tools"`
}

// Event is an app-originated notification forwarded to the platform, such as
// an inbound message surfaced by a channel capability.
type Event struct {
	Channel  string `json:"channel"`
	User     string `json:"user,omitempty"`
	Text     string `json:"text"`
	Metadata string `json:"metadata,omitempty"`
}

// Conn is one live session with the platform.
//
// Recv yields invocation requests for as long as the session is up and is
// closed on disconnect. Send delivers the response for a previously received
// request; pairing is by invocation ID. Notify pushes an app-originated
// event. A Conn's methods are safe for concurrent use.
type Conn interface {
	Recv() <-chan tool.Request
	Send(ctx context.Context, resp tool.Response) error
	Notify(ctx context.Context, ev Event) error
	Close(ctx context.Context) error
}

// Transport establishes sessions with the platform.
type Transport interface {
	Open(ctx context.Context, info Info) (Conn, error)
}
