package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jzolee/halink2mqtt/pkg/halink"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Device   DeviceConfig `mapstructure:"device"`
	MQTT     MQTTConfig   `mapstructure:"mqtt"`

	Port    uint `mapstructure:"port"`
	HttpLog bool `mapstructure:"http_log"`
}

type DeviceConfig struct {
	Host                       string
	Port                       uint
	Name                       string
	ReconnectIntervalMillis    uint32 `mapstructure:"reconnect_interval_millis"`
	MaxReconnectIntervalMillis uint32 `mapstructure:"max_reconnect_interval_millis"`
	ConfigTimeoutMillis        uint32 `mapstructure:"config_timeout_millis"`
	PingIntervalMillis         uint32 `mapstructure:"ping_interval_millis"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

// DeviceId derives the stable device identifier from the endpoint, normalized
// the same way entity keys are.
func (c DeviceConfig) DeviceId() string {
	return halink.NormalizeKey(fmt.Sprintf("%s_%d", c.Host, c.Port))
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
