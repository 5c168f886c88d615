package mqtt

import (
	"fmt"

	"github.com/jzolee/halink2mqtt/internal/core/events"
	"github.com/jzolee/halink2mqtt/pkg/halink"
)

type HADiscoveryConfig struct {
	Device              HADiscoveryDevice `json:"device"`
	StateTopic          string            `json:"state_topic,omitempty"`
	CommandTopic        string            `json:"command_topic,omitempty"`
	JsonAttributesTopic string            `json:"json_attributes_topic,omitempty"`
	StateClass          string            `json:"state_class,omitempty"`
	DeviceClass         string            `json:"device_class,omitempty"`
	UnitOfMeasurement   string            `json:"unit_of_measurement,omitempty"`
	AvTopic             string            `json:"availability_topic,omitempty"`
	EntityCategory      string            `json:"entity_category,omitempty"`
	Name                string            `json:"name"`
	UniqueId            string            `json:"unique_id"`
	Platform            string            `json:"platform"`
	PayloadOn           string            `json:"payload_on,omitempty"`
	PayloadOff          string            `json:"payload_off,omitempty"`
	PayloadPress        string            `json:"payload_press,omitempty"`
	Icon                string            `json:"icon,omitempty"`
	Min                 float64           `json:"min,omitempty"`
	Max                 float64           `json:"max,omitempty"`
	Step                float64           `json:"step,omitempty"`
	Mode                string            `json:"mode,omitempty"`
	Options             []string          `json:"options,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

func (c *MQTTClient) HADiscoveryEntityTopic(dev events.Device, spec halink.EntitySpec) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", c.haDiscoveryTopic(), spec.Platform, dev.Id, spec.Key)
}

func (c *MQTTClient) HADiscoveryBridgeStateTopic(dev events.Device) string {
	return fmt.Sprintf("%s/binary_sensor/%s/bridge_state/config", c.haDiscoveryTopic(), dev.Id)
}

func (c *MQTTClient) HADiscoveryDeviceAliveTopic(dev events.Device) string {
	return fmt.Sprintf("%s/binary_sensor/%s/device_alive/config", c.haDiscoveryTopic(), dev.Id)
}

// EntitySpecToHADiscoveryMessage maps one declared entity onto a Home
// Assistant MQTT discovery message.
func EntitySpecToHADiscoveryMessage(client *MQTTClient, dev events.Device, spec halink.EntitySpec) HADiscoveryConfig {
	name := spec.FriendlyName
	if name == "" {
		name = spec.Key
	}
	disConfig := HADiscoveryConfig{
		Device:            device(dev),
		AvTopic:           client.DeviceAvailabilityTopic(),
		Name:              name,
		UniqueId:          fmt.Sprintf("%s_%s", dev.Id, spec.Key),
		Platform:          "mqtt",
		DeviceClass:       spec.StringField("device_class"),
		StateClass:        spec.StringField("state_class"),
		UnitOfMeasurement: spec.StringField("unit_of_measurement"),
		EntityCategory:    spec.StringField("entity_category"),
		Icon:              spec.StringField("icon"),
	}
	if spec.Platform != halink.PlatformButton {
		disConfig.StateTopic = client.EntityStateTopic(spec.Platform, spec.Key)
		disConfig.JsonAttributesTopic = client.EntityAttributesTopic(spec.Platform, spec.Key)
	}
	switch spec.Platform {
	case halink.PlatformSwitch:
		disConfig.CommandTopic = client.SwitchCommandTopic(spec.Key)
		disConfig.PayloadOn = MQTT_PAYLOAD_ON
		disConfig.PayloadOff = MQTT_PAYLOAD_OFF
	case halink.PlatformBinarySensor:
		disConfig.PayloadOn = MQTT_PAYLOAD_ON
		disConfig.PayloadOff = MQTT_PAYLOAD_OFF
	case halink.PlatformNumber:
		disConfig.CommandTopic = client.NumberCommandTopic(spec.Key)
		if v, ok := spec.FloatField("min"); ok {
			disConfig.Min = v
		}
		if v, ok := spec.FloatField("max"); ok {
			disConfig.Max = v
		}
		if v, ok := spec.FloatField("step"); ok {
			disConfig.Step = v
		}
		disConfig.Mode = spec.StringField("mode")
	case halink.PlatformSelect:
		disConfig.CommandTopic = client.SelectCommandTopic(spec.Key)
		disConfig.Options = stringOptions(spec.Fields["options"])
	case halink.PlatformButton:
		disConfig.CommandTopic = client.ButtonCommandTopic(spec.Key)
		disConfig.PayloadPress = MQTT_PAYLOAD_PRESS
	}
	return disConfig
}

// BridgeStateToHADiscoveryMessage declares a connectivity sensor for the
// bridge process.
func BridgeStateToHADiscoveryMessage(client *MQTTClient, dev events.Device) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:      device(dev),
		StateTopic:  client.BridgeStateTopic(),
		DeviceClass: "connectivity",
		Name:        "Bridge state",
		UniqueId:    fmt.Sprintf("%s_bridge_state", dev.Id),
		Platform:    "mqtt",
		PayloadOn:   MQTT_PAYLOAD_ONLINE,
		PayloadOff:  MQTT_PAYLOAD_OFFLINE,
	}
}

// DeviceAliveToHADiscoveryMessage declares a connectivity sensor tracking the
// device's reserved alive channel.
func DeviceAliveToHADiscoveryMessage(client *MQTTClient, dev events.Device) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:         device(dev),
		StateTopic:     client.DeviceAvailabilityTopic(),
		AvTopic:        client.BridgeStateTopic(),
		DeviceClass:    "connectivity",
		EntityCategory: "diagnostic",
		Name:           "Alive",
		UniqueId:       fmt.Sprintf("%s_device_alive", dev.Id),
		Platform:       "mqtt",
		PayloadOn:      MQTT_PAYLOAD_ONLINE,
		PayloadOff:     MQTT_PAYLOAD_OFFLINE,
	}
}

func stringOptions(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	options := make([]string, 0, len(raw))
	for _, o := range raw {
		options = append(options, fmt.Sprintf("%v", o))
	}
	return options
}

func device(d events.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}
