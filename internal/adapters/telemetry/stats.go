package telemetry

import (
	"context"
	"sort"
	"sync"
	"time"
)

// StatsTelemetry keeps per table and operation counters in memory.
type StatsTelemetry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// Entry aggregates the queries of one table and operation.
type Entry struct {
	Table     string
	Operation string
	Count     int64
	Errors    int64
	Untyped   int64
	Total     time.Duration
	Max       time.Duration
}

// Mean returns the mean query duration.
func (e Entry) Mean() time.Duration {
	if e.Count == 0 {
		return 0
	}
	return e.Total / time.Duration(e.Count)
}

// NewStatsTelemetry creates a new in-memory stats adapter.
func NewStatsTelemetry() *StatsTelemetry {
	return &StatsTelemetry{entries: make(map[string]*Entry)}
}

func (s *StatsTelemetry) entry(table, operation string) *Entry {
	key := table + "_" + operation
	e, ok := s.entries[key]
	if !ok {
		e = &Entry{Table: table, Operation: operation}
		s.entries[key] = e
	}
	return e
}

// RecordQuery records a query execution.
func (s *StatsTelemetry) RecordQuery(ctx context.Context, info QueryInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(info.Table, info.Operation)
	e.Count++
	e.Total += info.Duration
	if info.Duration > e.Max {
		e.Max = info.Duration
	}
	if !info.Typed {
		e.Untyped++
	}
}

// RecordError records an error.
func (s *StatsTelemetry) RecordError(ctx context.Context, info ErrorInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entry(info.Table, info.Operation).Errors++
}

// Flush does nothing.
func (s *StatsTelemetry) Flush(ctx context.Context) error {
	return nil
}

// Close does nothing.
func (s *StatsTelemetry) Close(ctx context.Context) error {
	return nil
}

// Snapshot returns a copy of all entries sorted by table and operation.
func (s *StatsTelemetry) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].Operation < out[j].Operation
	})
	return out
}

var _ Telemetry = (*StatsTelemetry)(nil)
