// Package bus wires platform channels to the cleaner engine in-process.
// Inbound messages flow through a single buffered Go channel; outbound
// delivery is routed to per-channel handler functions.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"linkscrub/internal/domain"
	"linkscrub/internal/metrics"
)

// How long Publish waits on a full buffer before giving the message up.
const fullBusGrace = 10 * time.Second

// MemoryBus routes messages between platform channels and the engine.
// One consumer reads Subscribe; each channel registers an outbound handler
// under its Name.
type MemoryBus struct {
	in  chan domain.InboundMessage
	log *slog.Logger

	mu     sync.RWMutex
	out    map[string]func(domain.OutboundMessage)
	closed bool
}

// New creates a MemoryBus buffering up to bufferSize inbound messages.
func New(bufferSize int, logger *slog.Logger) *MemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &MemoryBus{
		in:  make(chan domain.InboundMessage, bufferSize),
		out: make(map[string]func(domain.OutboundMessage)),
		log: logger,
	}
}

// Publish hands an inbound message to the engine. When the buffer is full it
// waits a bounded grace period rather than dropping immediately; a message
// that still cannot be queued after the grace period is counted and dropped.
func (b *MemoryBus) Publish(msg domain.InboundMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.log.Warn("publish on closed bus", "channel", msg.Channel)
		return
	}

	select {
	case b.in <- msg:
		return
	default:
	}

	b.log.Warn("inbound buffer full, waiting", "channel", msg.Channel, "sender", msg.SenderID)
	timer := time.NewTimer(fullBusGrace)
	defer timer.Stop()
	select {
	case b.in <- msg:
		b.log.Info("queued after wait", "channel", msg.Channel)
	case <-timer.C:
		metrics.BusDrops.Inc()
		b.log.Error("inbound message dropped, buffer full past grace period",
			"channel", msg.Channel, "sender", msg.SenderID)
	}
}

// Subscribe returns the inbound stream. The channel is closed by Close.
func (b *MemoryBus) Subscribe() <-chan domain.InboundMessage {
	return b.in
}

// SendOutbound routes a message to the handler registered for its channel.
// Messages for channels with no handler are logged and discarded.
func (b *MemoryBus) SendOutbound(msg domain.OutboundMessage) {
	b.mu.RLock()
	deliver, ok := b.out[msg.Channel]
	b.mu.RUnlock()

	if !ok {
		b.log.Warn("outbound message for unregistered channel", "channel", msg.Channel)
		return
	}
	deliver(msg)
}

// OnOutbound registers the delivery function for a channel, replacing any
// previous registration under the same name.
func (b *MemoryBus) OnOutbound(channelName string, handler func(domain.OutboundMessage)) {
	b.mu.Lock()
	b.out[channelName] = handler
	b.mu.Unlock()
}

// Close shuts the inbound stream. Safe to call more than once.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.in)
}
