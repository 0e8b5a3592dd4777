// Package comm defines the inter-agent communication capability: a bridge to
// the platform's message bus, over which an app exchanges topic-addressed
// messages with other agents. The app runtime connects a registered comm
// handler when it starts, forwards its inbound messages to the hosting
// platform as events, and disconnects it on shutdown.
package comm

import "context"

// Message is one message on the communication bus.
type Message struct {
	ID             string            `json:"id,omitempty"`
	From           string            `json:"from,omitempty"`
	To             string            `json:"to,omitempty"`
	Topic          string            `json:"topic"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Timestamp      int64             `json:"timestamp,omitempty"`
}

// Handler is the capability contract for a communication bus bridge.
//
// Connect is called once when the app enters its run loop and Disconnect once
// on shutdown. Receive returns the inbound stream: only messages on
// subscribed topics, or addressed to this handler by name, arrive on it, and
// the stream is closed when the handler disconnects.
type Handler interface {
	Name() string
	Connect(ctx context.Context, config map[string]string) error
	Disconnect(ctx context.Context) error
	Connected() bool
	Send(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error
	Receive(ctx context.Context) (<-chan Message, error)
}
