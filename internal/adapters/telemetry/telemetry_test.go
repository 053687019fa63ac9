package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopTelemetry(t *testing.T) {
	ctx := context.Background()
	tel := NewNoopTelemetry()

	tel.RecordQuery(ctx, QueryInfo{Table: "fighters", Operation: "findMany", Duration: time.Millisecond, Success: true})
	tel.RecordError(ctx, ErrorInfo{Error: errors.New("test error"), Table: "fighters", Operation: "insert"})

	assert.NoError(t, tel.Flush(ctx))
	assert.NoError(t, tel.Close(ctx))
}

func TestLoggingTelemetry(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tel := NewLoggingTelemetry(logger, 100*time.Millisecond)

	tel.RecordQuery(ctx, QueryInfo{Table: "fighters", Operation: "findMany", SQL: "select * from fighters", Duration: time.Millisecond, Success: true, Typed: true})
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), `sql="select * from fighters"`)

	buf.Reset()
	tel.RecordQuery(ctx, QueryInfo{Table: "fighters", Operation: "findMany", Duration: time.Second})
	assert.Contains(t, buf.String(), "level=WARN")

	buf.Reset()
	tel.RecordError(ctx, ErrorInfo{Error: errors.New("constraint failed"), Table: "fights", Operation: "insert"})
	assert.Contains(t, buf.String(), "constraint failed")
}

func TestStatsTelemetry(t *testing.T) {
	ctx := context.Background()
	tel := NewStatsTelemetry()

	tel.RecordQuery(ctx, QueryInfo{Table: "fighters", Operation: "findMany", Duration: 10 * time.Millisecond, Success: true, Typed: true})
	tel.RecordQuery(ctx, QueryInfo{Table: "fighters", Operation: "findMany", Duration: 30 * time.Millisecond, Success: true, Typed: true})
	tel.RecordQuery(ctx, QueryInfo{Operation: "query", Duration: time.Millisecond, Success: true})
	tel.RecordError(ctx, ErrorInfo{Table: "fighters", Operation: "insert", Error: errors.New("boom")})

	snap := tel.Snapshot()
	require.Len(t, snap, 3)

	assert.Equal(t, "", snap[0].Table)
	assert.Equal(t, int64(1), snap[0].Untyped)

	many := snap[1]
	assert.Equal(t, "findMany", many.Operation)
	assert.Equal(t, int64(2), many.Count)
	assert.Equal(t, 20*time.Millisecond, many.Mean())
	assert.Equal(t, 30*time.Millisecond, many.Max)

	assert.Equal(t, "insert", snap[2].Operation)
	assert.Equal(t, int64(1), snap[2].Errors)
}

func TestNewTelemetry(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		want    any
		wantErr bool
	}{
		{"nil config", nil, &NoopTelemetry{}, false},
		{"noop", &Config{Type: "noop"}, &NoopTelemetry{}, false},
		{"logging", &Config{Type: "logging"}, &LoggingTelemetry{}, false},
		{"stats", &Config{Type: "stats"}, &StatsTelemetry{}, false},
		{"unknown", &Config{Type: "prometheus"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tel, err := NewTelemetry(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, tel)
		})
	}
}
