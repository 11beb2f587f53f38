package watcher

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"prism/internal/logging"
)

// Event represents a single filesystem change.
type Event struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
}

// Handle releases watcher resources for a registration.
type Handle interface {
	Close() error
}

// Watch registers a callback for filesystem events on a path.
type Watch interface {
	Watch(path string, callback func(Event)) (Handle, error)
}

// Options controls watcher behavior.
type Options struct {
	Logger       *logging.Logger
	Debounce     time.Duration
	MaxWatches   int
	ErrorHandler func(error)
}

// Metrics reports watcher counters.
type Metrics struct {
	ActiveWatches   int
	EventsDelivered uint64
	EventsDropped   uint64
	Errors          uint64
	RestartAttempts int
}
