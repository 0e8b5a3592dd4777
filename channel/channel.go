// Package channel defines the messaging capability an app may register next
// to its tools: a bidirectional bridge to an external messaging platform
// (chat service, message broker, webhook source). The app runtime connects
// registered channels when it starts, forwards their inbound messages to the
// hosting platform as events, and disconnects them on shutdown.
package channel

import "context"

// Inbound is one message arriving from the external platform a channel
// bridges to.
type Inbound struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id,omitempty"`
	Text      string `json:"text"`
	Metadata  string `json:"metadata,omitempty"`
}

// Handler is the capability contract for a channel.
//
// Connect is called once when the app enters its run loop and Disconnect once
// on shutdown. Receive returns a stream of inbound messages; the stream is
// closed when the channel disconnects. Send delivers outbound text to the
// external side.
type Handler interface {
	ID() string
	Connect(ctx context.Context, config map[string]string) error
	Disconnect(ctx context.Context) error
	Send(ctx context.Context, channelID, text string) error
	Receive(ctx context.Context) (<-chan Inbound, error)
}
