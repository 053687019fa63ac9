package telemetry

import (
	"fmt"

	"github.com/satishbabariya/sqltyped/internal/debug"
)

// TelemetryType represents the type of telemetry.
type TelemetryType string

const (
	// TypeNoop is the no-op telemetry type.
	TypeNoop TelemetryType = "noop"

	// TypeLogging logs every query through the debug logger.
	TypeLogging TelemetryType = "logging"

	// TypeStats keeps in-memory statistics.
	TypeStats TelemetryType = "stats"
)

// NewTelemetry creates a new telemetry adapter based on configuration.
func NewTelemetry(config *Config) (Telemetry, error) {
	if config == nil {
		return NewNoopTelemetry(), nil
	}

	switch TelemetryType(config.Type) {
	case TypeNoop, "":
		return NewNoopTelemetry(), nil

	case TypeLogging:
		return NewLoggingTelemetry(debug.With("component", "telemetry"), config.SlowQuery), nil

	case TypeStats:
		return NewStatsTelemetry(), nil

	default:
		return nil, fmt.Errorf("unknown telemetry type: %s", config.Type)
	}
}
