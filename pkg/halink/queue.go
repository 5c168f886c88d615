package halink

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CommandTTL is the maximum age a queued SET command may reach before being
// discarded unsent.
const CommandTTL = 600 * time.Second

// queueCapacity bounds the pending command backlog; the protocol is a
// best-effort command channel, so overflow drops rather than blocks.
const queueCapacity = 256

type pendingCommand struct {
	enqueuedAt time.Time
	payload    any
}

// commandQueue serializes SET delivery when the device requests an
// inter-command delay. Single consumer, any number of producers.
type commandQueue struct {
	items     chan pendingCommand
	transport *FrameTransport
	logger    *zap.Logger
}

func newCommandQueue(transport *FrameTransport, logger *zap.Logger) *commandQueue {
	return &commandQueue{
		items:     make(chan pendingCommand, queueCapacity),
		transport: transport,
		logger:    logger,
	}
}

func (q *commandQueue) enqueue(payload any) {
	select {
	case q.items <- pendingCommand{enqueuedAt: time.Now(), payload: payload}:
	default:
		q.logger.Warn("command queue full, dropping SET")
	}
}

// drain is the background worker: it transmits the oldest entry, sleeps the
// configured delay and repeats. TTL-expired entries and entries caught by a
// connection loss are discarded without transmission.
func (q *commandQueue) drain(ctx context.Context, delay time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-q.items:
			if time.Since(cmd.enqueuedAt) > CommandTTL {
				q.logger.Debug("dropping stale SET command")
				continue
			}
			if !q.transport.Connected() {
				q.logger.Debug("dropping SET command, device disconnected")
				continue
			}
			_ = q.transport.Send(cmd.payload)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}
}

// discard empties the queue. Queued commands are stale intent, not guaranteed
// delivery; they never survive a worker restart.
func (q *commandQueue) discard() {
	for {
		select {
		case <-q.items:
		default:
			return
		}
	}
}
