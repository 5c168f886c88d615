package halink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultConfigTimeout is the handshake window: a device that does not send
// its CONFIG within this time after connecting is assumed unresponsive or
// protocol-incompatible and gets a forced reconnect.
const DefaultConfigTimeout = 5 * time.Second

// Callbacks is the host-facing surface of one device link. All callbacks are
// optional and are invoked from the client's goroutines; raw protocol errors
// never reach them.
type Callbacks struct {
	OnConfigUpdated          func(ConfigDoc)
	OnStateUpdated           func(key string, state EntityState)
	OnAliveUpdated           func(state AliveState)
	OnEventFired             func(event EventRecord)
	OnConnectionStateChanged func(connected bool)
}

// ClientConfig bundles the transport tunables with the handshake timeout.
type ClientConfig struct {
	Transport     TransportConfig
	ConfigTimeout time.Duration
}

// Client ties together transport, message parsing and the SET command
// dispatcher for a single device endpoint.
type Client struct {
	cfg       ClientConfig
	callbacks Callbacks
	transport *FrameTransport
	parser    *MessageParser
	queue     *commandQueue
	logger    *zap.Logger

	mu             sync.Mutex
	config         *ConfigDoc
	configReceived bool
	handshakeTimer *time.Timer
	drainCancel    context.CancelFunc

	runCancel context.CancelFunc
	done      chan struct{}
}

func NewClient(cfg ClientConfig, callbacks Callbacks, logger *zap.Logger) *Client {
	if cfg.ConfigTimeout <= 0 {
		cfg.ConfigTimeout = DefaultConfigTimeout
	}
	transport := NewFrameTransport(cfg.Transport, logger)
	c := &Client{
		cfg:       cfg,
		callbacks: callbacks,
		transport: transport,
		parser:    NewMessageParser(logger),
		queue:     newCommandQueue(transport, logger),
		logger:    logger,
		done:      make(chan struct{}),
	}
	transport.OnFrame = c.handleFrame
	transport.OnConnected = c.handleConnected
	transport.OnDisconnected = c.handleDisconnected
	return c
}

// Start launches the reconnect+read loop. It returns immediately; Stop tears
// everything down.
func (c *Client) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.runCancel = cancel
	go func() {
		defer close(c.done)
		c.transport.Run(ctx)
	}()
}

// Stop cancels the handshake timer and the drain worker, discards the queue,
// closes the socket and waits for the run loop to return. Every step executes
// regardless of the state a previous one found.
func (c *Client) Stop() {
	c.mu.Lock()
	c.cancelHandshakeTimerLocked()
	c.stopDrainLocked()
	c.mu.Unlock()

	if c.runCancel != nil {
		c.runCancel()
		select {
		case <-c.done:
		case <-time.After(3 * time.Second):
			c.logger.Warn("client run loop did not stop in time")
		}
	}
}

// Connected reports the live transport state.
func (c *Client) Connected() bool {
	return c.transport.Connected()
}

// Config returns the most recently accepted device config, or nil before the
// first CONFIG frame.
func (c *Client) Config() *ConfigDoc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// SendSet renders a SET command for entityKey in the device's negotiated mode
// and either transmits it immediately or hands it to the delay queue.
func (c *Client) SendSet(entityKey string, value any) error {
	c.mu.Lock()
	mode := SetModeLight
	delayMs := 0
	if c.config != nil {
		mode = c.config.SetMode
		delayMs = c.config.DelayMs
	}
	c.mu.Unlock()

	var payload any
	if mode == SetModeLight {
		payload = fmt.Sprintf("%s=%v", entityKey, value)
	} else {
		payload = map[string]any{"set": map[string]any{entityKey: map[string]any{"value": value}}}
	}

	if delayMs > 0 {
		c.queue.enqueue(payload)
		return nil
	}
	return c.transport.Send(payload)
}

func (c *Client) handleFrame(raw string) {
	msg := c.parser.Parse(raw)
	if msg == nil {
		return
	}
	switch msg.Type {
	case MessageConfig:
		c.processConfig(*msg.Config)
	case MessageState:
		c.processState(*msg.State)
	case MessageEvent:
		for _, ev := range msg.Events {
			if c.callbacks.OnEventFired != nil {
				c.callbacks.OnEventFired(ev)
			}
		}
	}
}

func (c *Client) processConfig(doc ConfigDoc) {
	c.mu.Lock()
	c.configReceived = true
	c.cancelHandshakeTimerLocked()
	c.config = &doc
	c.restartDrainLocked()
	c.mu.Unlock()

	version := 0
	if doc.Version != nil {
		version = *doc.Version
	}
	c.logger.Info("received CONFIG",
		zap.Int("version", version),
		zap.Int("entities", len(doc.Entities)))

	if c.callbacks.OnConfigUpdated != nil {
		c.callbacks.OnConfigUpdated(doc)
	}
}

func (c *Client) processState(doc StateDoc) {
	if doc.Alive != nil && c.callbacks.OnAliveUpdated != nil {
		c.callbacks.OnAliveUpdated(*doc.Alive)
	}
	if c.callbacks.OnStateUpdated != nil {
		for key, st := range doc.Entities {
			c.callbacks.OnStateUpdated(key, st)
		}
	}
}

func (c *Client) handleConnected() {
	c.mu.Lock()
	c.configReceived = false
	c.startHandshakeTimerLocked()
	c.restartDrainLocked()
	c.mu.Unlock()

	if c.callbacks.OnConnectionStateChanged != nil {
		c.callbacks.OnConnectionStateChanged(true)
	}
}

func (c *Client) handleDisconnected() {
	c.mu.Lock()
	c.cancelHandshakeTimerLocked()
	c.stopDrainLocked()
	c.mu.Unlock()

	if c.callbacks.OnConnectionStateChanged != nil {
		c.callbacks.OnConnectionStateChanged(false)
	}
}

// startHandshakeTimerLocked arms the one-shot CONFIG watchdog. Receiving any
// CONFIG frame cancels it for the rest of the connection lifetime.
func (c *Client) startHandshakeTimerLocked() {
	c.cancelHandshakeTimerLocked()
	c.handshakeTimer = time.AfterFunc(c.cfg.ConfigTimeout, func() {
		c.mu.Lock()
		received := c.configReceived
		c.mu.Unlock()
		if !received && c.transport.Connected() {
			c.logger.Warn("no CONFIG received, forcing reconnect",
				zap.Duration("timeout", c.cfg.ConfigTimeout))
			c.transport.Disconnect()
		}
	})
}

func (c *Client) cancelHandshakeTimerLocked() {
	if c.handshakeTimer != nil {
		c.handshakeTimer.Stop()
		c.handshakeTimer = nil
	}
}

// restartDrainLocked reconciles the drain worker with the current delay_ms
// and connection state. Any transition stops the old worker and drops its
// backlog: queued commands are stale intent once conditions change.
func (c *Client) restartDrainLocked() {
	delayMs := 0
	if c.config != nil {
		delayMs = c.config.DelayMs
	}
	if delayMs > 0 && c.transport.Connected() {
		if c.drainCancel == nil {
			ctx, cancel := context.WithCancel(context.Background())
			c.drainCancel = cancel
			go c.queue.drain(ctx, time.Duration(delayMs)*time.Millisecond)
			c.logger.Debug("SET drain worker started", zap.Int("delay_ms", delayMs))
		}
		return
	}
	c.stopDrainLocked()
}

func (c *Client) stopDrainLocked() {
	if c.drainCancel != nil {
		c.drainCancel()
		c.drainCancel = nil
		c.logger.Debug("SET drain worker stopped")
	}
	c.queue.discard()
}
