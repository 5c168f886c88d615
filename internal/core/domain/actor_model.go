package domain

import "github.com/jzolee/halink2mqtt/pkg/halink"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_LINK         = "link"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// SendSetRequest asks the link actor to deliver a SET command to the device.
// Value carries the already coerced wire value (1/0 for switches, a float for
// numbers, the option string for selects, the press value for buttons).
type SendSetRequest struct {
	ActorRequestMixIn
	Key   string
	Value any
}

type SendSetResponse struct {
	ActorResponseMixIn
}

// GetDeviceConfigRequest returns the latest accepted device config, nil
// before the first CONFIG frame.
type GetDeviceConfigRequest struct {
	ActorRequestMixIn
}

type GetDeviceConfigResponse struct {
	ActorResponseMixIn
	Config *halink.ConfigDoc
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

// PublishDiscoveryRequest carries everything the MQTT actor needs to announce
// the device's entities to Home Assistant.
type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	DeviceConfig halink.ConfigDoc
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
