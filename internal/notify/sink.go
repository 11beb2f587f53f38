// Package notify carries error and status reports out of the sync core.
// Nothing in the core terminates the process on failure; every recoverable
// condition becomes an Event emitted through a Sink.
package notify

import (
	"context"
	"sync"
	"time"

	"prism/internal/logging"
)

type Event struct {
	Fields     map[string]string
	OccurredAt time.Time
	Level      string
	Message    string
}

type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// LoggerSink forwards events to a structured logger.
type LoggerSink struct {
	logger *logging.Logger
}

func NewLoggerSink(logger *logging.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

func (sink *LoggerSink) Emit(_ context.Context, event Event) error {
	if sink == nil || sink.logger == nil {
		return nil
	}
	switch event.Level {
	case "debug":
		sink.logger.Debug(event.Message, event.Fields)
	case "warn", "warning":
		sink.logger.Warn(event.Message, event.Fields)
	case "error":
		sink.logger.Error(event.Message, event.Fields)
	default:
		sink.logger.Info(event.Message, event.Fields)
	}
	return nil
}

// MemorySink records emitted events for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (sink *MemorySink) Emit(_ context.Context, event Event) error {
	if sink == nil {
		return nil
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	sink.events = append(sink.events, event)
	return sink.err
}

func (sink *MemorySink) Events() []Event {
	if sink == nil {
		return nil
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	events := make([]Event, len(sink.events))
	copy(events, sink.events)
	return events
}

func (sink *MemorySink) SetError(err error) {
	if sink == nil {
		return
	}
	sink.mu.Lock()
	sink.err = err
	sink.mu.Unlock()
}
