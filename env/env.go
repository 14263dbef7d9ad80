// Package env loads the galvo service configuration from the environment.
package env

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/jt05610/galvo"
	"go.uber.org/zap"
)

type Environment struct {
	URI        string
	Exchange   string
	DeviceID   string
	SerialPort string
	Baud       int
	SampleRate float64
	Axes       []galvo.AxisID
	Channels   map[galvo.AxisID]string
	Initial    map[galvo.AxisID]float64
	Table      galvo.Table
}

// LoadEnv reads .env and the process environment. Anything missing or
// malformed is fatal; the daemon cannot run half-configured.
func LoadEnv(logger *zap.Logger) *Environment {
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using process environment")
	}
	environ := &Environment{
		URI:        mustLookup(logger, "RABBITMQ_URI"),
		Exchange:   mustLookup(logger, "AMQP_EXCHANGE"),
		DeviceID:   mustLookup(logger, "DEVICE_ID"),
		SerialPort: mustLookup(logger, "SERIAL_PORT"),
		Baud:       int(mustInt(logger, "SERIAL_BAUD")),
		SampleRate: mustFloat(logger, "SAMPLE_RATE"),
		Channels:   make(map[galvo.AxisID]string),
		Initial:    make(map[galvo.AxisID]float64),
		Table:      make(galvo.Table),
	}
	for _, name := range strings.Split(mustLookup(logger, "GALVO_AXES"), ",") {
		ax := galvo.AxisID(strings.TrimSpace(name))
		if ax == "" {
			continue
		}
		suffix := strings.ToUpper(string(ax))
		environ.Axes = append(environ.Axes, ax)
		environ.Channels[ax] = mustLookup(logger, "DAC_CHANNEL_"+suffix)
		environ.Initial[ax] = mustFloat(logger, "INIT_POS_"+suffix)
		environ.Table[ax] = galvo.Calibration{
			Gain:    mustFloat(logger, "CAL_GAIN_"+suffix),
			Offset:  mustFloat(logger, "CAL_OFFSET_"+suffix),
			MinCode: int(mustInt(logger, "CAL_MIN_CODE_"+suffix)),
			MaxCode: int(mustInt(logger, "CAL_MAX_CODE_"+suffix)),
		}
	}
	if len(environ.Axes) == 0 {
		logger.Fatal("GALVO_AXES declares no axes")
	}
	return environ
}

func mustLookup(logger *zap.Logger, key string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		logger.Fatal("environment variable not set", zap.String("key", key))
	}
	return v
}

func mustInt(logger *zap.Logger, key string) int64 {
	v, err := strconv.ParseInt(mustLookup(logger, key), 10, 64)
	if err != nil {
		logger.Fatal("failed to parse integer", zap.String("key", key), zap.Error(err))
	}
	return v
}

func mustFloat(logger *zap.Logger, key string) float64 {
	v, err := strconv.ParseFloat(mustLookup(logger, key), 64)
	if err != nil {
		logger.Fatal("failed to parse float", zap.String("key", key), zap.Error(err))
	}
	return v
}
