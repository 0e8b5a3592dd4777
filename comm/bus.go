package comm

import (
	"context"
	"sync"

	"github.com/petal-labs/petalapp/tool"
)

// Bus is an in-process communication handler: a message sent to a subscribed
// topic, or addressed to this handler by name, loops back onto the inbound
// stream. It backs tests and local development the way channel.Loopback does
// for messaging channels.
type Bus struct {
	name string

	mu        sync.Mutex
	inbox     chan Message
	topics    map[string]struct{}
	connected bool
}

// NewBus creates a bus handler with the given agent name.
func NewBus(name string) *Bus {
	return &Bus{name: name, topics: make(map[string]struct{})}
}

func (b *Bus) Name() string { return b.name }

func (b *Bus) Connect(_ context.Context, _ map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connected {
		return tool.NewError(tool.ErrorCodeInvalidConfig, "comm handler %q is already connected", b.name)
	}
	b.inbox = make(chan Message, 64)
	b.connected = true
	return nil
}

func (b *Bus) Disconnect(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return nil
	}
	b.connected = false
	close(b.inbox)
	return nil
}

func (b *Bus) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *Bus) Send(ctx context.Context, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return tool.NewError(tool.ErrorCodeInvalidConfig, "comm handler %q is not connected", b.name)
	}
	if !b.deliverable(msg) {
		return nil
	}
	select {
	case b.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) Subscribe(_ context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return tool.NewError(tool.ErrorCodeInvalidConfig, "comm handler %q is not connected", b.name)
	}
	b.topics[topic] = struct{}{}
	return nil
}

func (b *Bus) Unsubscribe(_ context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics, topic)
	return nil
}

func (b *Bus) Receive(_ context.Context) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return nil, tool.NewError(tool.ErrorCodeInvalidConfig, "comm handler %q is not connected", b.name)
	}
	return b.inbox, nil
}

// Inject places an inbound message on the stream directly, as if another
// agent had produced it. Undeliverable and pre-connect messages are dropped.
func (b *Bus) Inject(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected || !b.deliverable(msg) {
		return
	}
	b.inbox <- msg
}

// deliverable reports whether msg would reach this handler's inbound stream.
// Callers hold mu.
func (b *Bus) deliverable(msg Message) bool {
	if msg.To == b.name {
		return true
	}
	_, ok := b.topics[msg.Topic]
	return ok
}
