package util

import (
	"github.com/jzolee/halink2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Device: config.DeviceConfig{
			Host:                       "-.-.-.-",
			Port:                       5001,
			Name:                       "Test Device",
			ReconnectIntervalMillis:    5000,
			MaxReconnectIntervalMillis: 60000,
			ConfigTimeoutMillis:        5000,
			PingIntervalMillis:         15000,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "halink",
		},
		Port: 8080,
	}
}
