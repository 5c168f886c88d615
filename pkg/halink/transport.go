package halink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultDialTimeout bounds a single connection attempt.
	DefaultDialTimeout = 5 * time.Second
	// DefaultReconnectInterval is the backoff base, doubled per failed
	// attempt up to DefaultMaxReconnectInterval.
	DefaultReconnectInterval    = 5 * time.Second
	DefaultMaxReconnectInterval = 60 * time.Second
	// DefaultPingInterval is the idle window after which the transport sends
	// a ':' keepalive when OS keepalive could not be enabled.
	DefaultPingInterval = 15 * time.Second
)

var ErrNotConnected = errors.New("halink: not connected")

// keepaliveConfig mirrors the probing the device firmware expects.
var keepaliveConfig = net.KeepAliveConfig{
	Enable:   true,
	Idle:     15 * time.Second,
	Interval: 5 * time.Second,
	Count:    2,
}

// TransportConfig carries the tunables of a FrameTransport. Zero values fall
// back to the defaults above.
type TransportConfig struct {
	Host                 string
	Port                 int
	DialTimeout          time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	PingInterval         time.Duration
}

func (c *TransportConfig) withDefaults() TransportConfig {
	out := *c
	if out.DialTimeout <= 0 {
		out.DialTimeout = DefaultDialTimeout
	}
	if out.ReconnectInterval <= 0 {
		out.ReconnectInterval = DefaultReconnectInterval
	}
	if out.MaxReconnectInterval <= 0 {
		out.MaxReconnectInterval = DefaultMaxReconnectInterval
	}
	if out.PingInterval <= 0 {
		out.PingInterval = DefaultPingInterval
	}
	return out
}

// FrameTransport owns the TCP socket to one device endpoint. Run drives the
// reconnect and read phases sequentially on a single goroutine; Send may be
// called concurrently and serializes writes on the socket.
type FrameTransport struct {
	cfg TransportConfig

	OnFrame        func(string)
	OnConnected    func()
	OnDisconnected func()

	writeMu sync.Mutex
	connMu  sync.Mutex
	conn    net.Conn

	connected      atomic.Bool
	osKeepalive    bool
	reconnectDelay time.Duration

	logger *zap.Logger
}

func NewFrameTransport(cfg TransportConfig, logger *zap.Logger) *FrameTransport {
	cfg = cfg.withDefaults()
	return &FrameTransport{
		cfg:            cfg,
		reconnectDelay: cfg.ReconnectInterval,
		logger:         logger.With(zap.String("endpoint", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))),
	}
}

// Connected reports whether a socket is currently established.
func (t *FrameTransport) Connected() bool {
	return t.connected.Load()
}

// Run blocks until ctx is cancelled, alternating connect attempts with
// exponential backoff and the frame read loop. It owns the only read path.
func (t *FrameTransport) Run(ctx context.Context) {
	// closing the socket is what unblocks a pending read on cancellation
	stop := context.AfterFunc(ctx, t.disconnect)
	defer stop()
	defer t.disconnect()

	for ctx.Err() == nil {
		if !t.Connected() {
			t.tryConnect(ctx)
		}
		if t.Connected() {
			t.readLoop(ctx)
		}
		if ctx.Err() != nil {
			return
		}

		t.logger.Warn("disconnected, retrying", zap.Duration("delay", t.reconnectDelay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.reconnectDelay):
		}
		t.reconnectDelay = min(t.reconnectDelay*2, t.cfg.MaxReconnectInterval)
	}
}

func (t *FrameTransport) tryConnect(ctx context.Context) {
	dialer := net.Dialer{Timeout: t.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port))
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Warn("connect failed", zap.Error(err))
		}
		return
	}

	t.osKeepalive = false
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetKeepAliveConfig(keepaliveConfig); err != nil {
			t.logger.Debug("OS keepalive unavailable", zap.Error(err))
		} else {
			t.osKeepalive = true
		}
	}

	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()
	t.connected.Store(true)
	t.reconnectDelay = t.cfg.ReconnectInterval

	t.logger.Info("connected")
	if t.OnConnected != nil {
		t.OnConnected()
	}
}

// readLoop reads NUL-delimited frames until an error, an idle-ping failure or
// connection closure, then tears the connection down.
func (t *FrameTransport) readLoop(ctx context.Context) {
	defer t.disconnect()

	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()
	if conn == nil {
		return
	}
	reader := bufio.NewReader(conn)

	// partial carries bytes of an unterminated frame across idle-ping
	// deadlines so a frame straddling the boundary is reassembled intact
	var partial []byte

	for ctx.Err() == nil && t.Connected() {
		if !t.osKeepalive {
			if err := conn.SetReadDeadline(time.Now().Add(t.cfg.PingInterval)); err != nil {
				t.logger.Warn("read deadline failed", zap.Error(err))
				return
			}
		}

		data, err := reader.ReadBytes(0)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				// ReadBytes hands back whatever arrived before the
				// deadline; keep it for the next pass
				partial = append(partial, data...)
				if werr := t.writeRaw([]byte(":")); werr != nil {
					t.logger.Warn("keepalive failed", zap.Error(werr))
					return
				}
				continue
			}
			if ctx.Err() == nil {
				t.logger.Warn("read error", zap.Error(err))
			}
			return
		}

		if len(partial) > 0 {
			data = append(partial, data...)
			partial = nil
		}
		frame := strings.TrimSpace(strings.ToValidUTF8(string(data[:len(data)-1]), ""))
		if frame == "" || frame == ":" {
			// protocol keepalive, never forwarded
			continue
		}
		t.logger.Debug("frame received", zap.String("frame", frame))
		if t.OnFrame != nil {
			t.OnFrame(frame)
		}
	}
}

// Send renders and writes one outbound frame. Objects are encoded as JSON
// with a NUL terminator; strings get a terminator appended if absent. Other
// payload shapes are rejected with an error, never a panic.
func (t *FrameTransport) Send(message any) error {
	if !t.Connected() {
		t.logger.Warn("cannot send: not connected")
		return ErrNotConnected
	}

	var data []byte
	switch m := message.(type) {
	case string:
		if !strings.HasSuffix(m, "\x00") {
			m += "\x00"
		}
		data = []byte(m)
	case map[string]any:
		payload, err := json.Marshal(m)
		if err != nil {
			t.logger.Warn("cannot send: marshal failed", zap.Error(err))
			return err
		}
		data = append(payload, 0)
	default:
		t.logger.Warn("cannot send: unsupported payload type", zap.String("type", fmt.Sprintf("%T", message)))
		return fmt.Errorf("halink: unsupported payload type %T", message)
	}

	if err := t.writeRaw(data); err != nil {
		t.logger.Warn("send failed", zap.Error(err))
		t.disconnect()
		return err
	}
	return nil
}

func (t *FrameTransport) writeRaw(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	_, err := conn.Write(data)
	return err
}

// Disconnect force-closes the current socket. The read loop observes the
// closure and returns control to the reconnect phase, so this is also how the
// config-handshake timeout escalates.
func (t *FrameTransport) Disconnect() {
	t.disconnect()
}

func (t *FrameTransport) disconnect() {
	t.connMu.Lock()
	conn := t.conn
	t.conn = nil
	t.connMu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if t.connected.Swap(false) {
		if t.OnDisconnected != nil {
			t.OnDisconnected()
		}
	}
}
