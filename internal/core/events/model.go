package events

import (
	"fmt"

	"github.com/jzolee/halink2mqtt/pkg/halink"
)

type DeviceUpdateEventMixIn struct {
	DeviceId string
}

type DeviceUpdateEvent interface {
	DeviceUpdateEvent() string
	UpdateDeviceId() string
}

func (e DeviceUpdateEventMixIn) DeviceUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e DeviceUpdateEventMixIn) UpdateDeviceId() string {
	return e.DeviceId
}

// ConnectionStateUpdateEvent tracks the TCP link to the device.
type ConnectionStateUpdateEvent struct {
	DeviceUpdateEventMixIn
	Connected bool
}

// DeviceConfigUpdatedEvent fires once per accepted CONFIG frame.
type DeviceConfigUpdatedEvent struct {
	DeviceUpdateEventMixIn
	Config halink.ConfigDoc
}

// EntityStateUpdateEvent fires per entity per STATE frame. Platform is
// resolved from the latest config; undeclared keys default to sensor.
type EntityStateUpdateEvent struct {
	DeviceUpdateEventMixIn
	Platform string
	State    halink.EntityState
}

// AliveStateUpdateEvent carries the reserved liveness channel.
type AliveStateUpdateEvent struct {
	DeviceUpdateEventMixIn
	State halink.AliveState
}

// DeviceEventFiredEvent carries one ad hoc device event.
type DeviceEventFiredEvent struct {
	DeviceUpdateEventMixIn
	Event halink.EventRecord
}
