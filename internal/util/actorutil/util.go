package actorutil

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jzolee/halink2mqtt/internal/core/domain"
	"github.com/jzolee/halink2mqtt/internal/mqtt"
	"github.com/jzolee/halink2mqtt/pkg/halink"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToSetRequest converts an MQTT command into a device SET
// request, coercing the payload to the value type the platform expects.
func ParsedMQTTCommandToSetRequest(cmd mqtt.ParsedMQTTCommand, cfg *halink.ConfigDoc) (domain.ActorRequest, error) {
	switch cmd.Platform {
	case halink.PlatformSwitch:
		var value int
		if cmd.Payload == mqtt.MQTT_PAYLOAD_ON {
			value = 1
		}
		return domain.SendSetRequest{Key: cmd.EntityId, Value: value}, nil
	case halink.PlatformNumber:
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, err
		}
		return domain.SendSetRequest{Key: cmd.EntityId, Value: value}, nil
	case halink.PlatformSelect:
		return domain.SendSetRequest{Key: cmd.EntityId, Value: cmd.Payload}, nil
	case halink.PlatformButton:
		return domain.SendSetRequest{Key: cmd.EntityId, Value: buttonPressValue(cfg, cmd.EntityId)}, nil
	}
	return nil, fmt.Errorf("platform %s does not accept commands", cmd.Platform)
}

func buttonPressValue(cfg *halink.ConfigDoc, entityId string) any {
	if cfg != nil {
		if spec, ok := cfg.Entities[entityId]; ok {
			if v, ok := spec.Fields["press_value"]; ok {
				return v
			}
		}
	}
	return 1
}
