package channel

import (
	"context"
	"sync"

	"github.com/petal-labs/petalapp/tool"
)

// Loopback is an in-process channel: everything sent outbound reappears on
// the inbound stream. It backs tests and local development, where no external
// messaging platform is attached.
type Loopback struct {
	id string

	mu        sync.Mutex
	inbox     chan Inbound
	connected bool
}

// NewLoopback creates a loopback channel with the given identifier.
func NewLoopback(id string) *Loopback {
	return &Loopback{id: id}
}

func (l *Loopback) ID() string { return l.id }

func (l *Loopback) Connect(_ context.Context, _ map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connected {
		return tool.NewError(tool.ErrorCodeInvalidConfig, "channel %q is already connected", l.id)
	}
	l.inbox = make(chan Inbound, 64)
	l.connected = true
	return nil
}

func (l *Loopback) Disconnect(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return nil
	}
	l.connected = false
	close(l.inbox)
	return nil
}

func (l *Loopback) Send(ctx context.Context, channelID, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return tool.NewError(tool.ErrorCodeInvalidConfig, "channel %q is not connected", l.id)
	}
	select {
	case l.inbox <- Inbound{ChannelID: channelID, Text: text}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inject places an inbound message on the stream directly, as if the external
// side had produced it.
func (l *Loopback) Inject(msg Inbound) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return
	}
	l.inbox <- msg
}

func (l *Loopback) Receive(_ context.Context) (<-chan Inbound, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return nil, tool.NewError(tool.ErrorCodeInvalidConfig, "channel %q is not connected", l.id)
	}
	return l.inbox, nil
}
