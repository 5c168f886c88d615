package actor

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/jzolee/halink2mqtt/internal/core/domain"
	"github.com/jzolee/halink2mqtt/internal/core/events"
	"github.com/jzolee/halink2mqtt/internal/util"
	"github.com/jzolee/halink2mqtt/pkg/halink"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLinkActorDeviceRoundTrip(t *testing.T) {

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := util.LoadTestConfig()
	cfg.Device.Host = "127.0.0.1"
	cfg.Device.Port = uint(ln.Addr().(*net.TCPAddr).Port)
	cfg.Device.ReconnectIntervalMillis = 1000

	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	es := &eventstream.EventStream{}
	published := make(chan any, 32)
	sub := es.Subscribe(func(value any) { published <- value })
	defer es.Unsubscribe(sub)

	as := actor.NewActorSystem()
	context := as.Root
	defer as.Shutdown()

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewLinkActor(&cfg, es, logger)
	})
	pid, err := context.SpawnNamed(props, "link")
	require.NoError(t, err)
	defer context.Stop(pid)

	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()

	// connection state event
	ev := waitEvent[events.ConnectionStateUpdateEvent](t, published)
	assert.True(t, ev.Connected)

	// device sends its config
	_, err = conn.Write([]byte(`{"c":{"v":1,"sw":{"Relay":{}},"s":{"Room Temp":{"dc":"temperature"}}}}` + "\x00"))
	require.NoError(t, err)

	cfgEv := waitEvent[events.DeviceConfigUpdatedEvent](t, published)
	assert.Contains(t, cfgEv.Config.Entities, "relay")
	assert.Contains(t, cfgEv.Config.Entities, "room_temp")

	// state update resolves the platform from the config
	_, err = conn.Write([]byte(`{"s":{"Relay":1,"unknown_key":5,"alive":1}}` + "\x00"))
	require.NoError(t, err)

	var sawSwitch, sawSensor, sawAlive bool
	deadline := time.After(3 * time.Second)
	for !(sawSwitch && sawSensor && sawAlive) {
		select {
		case msg := <-published:
			switch st := msg.(type) {
			case events.EntityStateUpdateEvent:
				if st.State.Key == "relay" {
					assert.Equal(t, halink.PlatformSwitch, st.Platform)
					sawSwitch = true
				}
				if st.State.Key == "unknown_key" {
					assert.Equal(t, halink.PlatformSensor, st.Platform, "undeclared keys default to sensor")
					sawSensor = true
				}
			case events.AliveStateUpdateEvent:
				assert.Equal(t, float64(1), st.State.Value)
				sawAlive = true
			}
		case <-deadline:
			t.Fatal("missing state events")
		}
	}

	// SET command reaches the device wire
	context.Send(pid, domain.SendSetRequest{Key: "relay", Value: 1})

	reader := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	frame, err := reader.ReadBytes(0)
	require.NoError(t, err)
	assert.Equal(t, "relay=1", string(frame[:len(frame)-1]))
}

func waitEvent[T any](t *testing.T, ch chan any) T {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-ch:
			if ev, ok := msg.(T); ok {
				return ev
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}
