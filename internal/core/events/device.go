package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/jzolee/halink2mqtt/pkg/halink"

	"github.com/carlmjohnson/versioninfo"
)

// Device is the identity block attached to Home Assistant discovery
// messages.
type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

// BridgeDevice identifies this bridge process itself.
func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("halink_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "HaLink",
		Model:        "halink2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("HaLink Bridge %s", md5HashShort(baseTopic)),
	}
}

// LinkDevice builds the device identity from the CONFIG device metadata
// block, falling back to generic values when the device declares nothing.
func LinkDevice(deviceId, name string, cfg halink.ConfigDoc, bridge Device) Device {
	dev := Device{
		Id:           fmt.Sprintf("halink_%s", deviceId),
		Name:         name,
		Manufacturer: "HaLink Device",
		Model:        "Generic",
		ViaDevice:    bridge.Id,
	}
	if m, ok := cfg.Device["manufacturer"].(string); ok && m != "" {
		dev.Manufacturer = m
	}
	if m, ok := cfg.Device["model"].(string); ok && m != "" {
		dev.Model = m
	}
	if v, ok := cfg.Device["sw_version"].(string); ok && v != "" {
		dev.Version = v
	}
	if n, ok := cfg.Device["name"].(string); ok && n != "" {
		dev.Name = n
	}
	return dev
}

func md5HashShort(str string) string {
	hash := md5.Sum([]byte(str))
	return hex.EncodeToString(hash[:])[:8]
}
