package watcher

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"prism/internal/logging"
)

const (
	defaultDebounce    = 100 * time.Millisecond
	defaultMaxWatches  = 100
	maxRestartAttempts = 3
	restartBaseDelay   = 200 * time.Millisecond
)

var ErrMaxWatchesExceeded = errors.New("max watches exceeded")

// Watcher is the concrete fsnotify-backed implementation of Watch.
type Watcher struct {
	watcher          *fsnotify.Watcher
	mutex            sync.Mutex
	callbacks        map[string][]callbackEntry
	dirs             map[string]int
	pending          map[string]pendingEvent
	debounceDuration time.Duration
	events           chan fsnotify.Event
	errors           chan error
	done             chan struct{}
	closed           bool
	logger           *logging.Logger
	maxWatches       int
	activeWatches    int
	nextID           uint64

	eventsDelivered uint64
	eventsDropped   uint64
	errorCount      uint64

	restartMutex    sync.Mutex
	restartTimer    *time.Timer
	restartAttempts int
	errorHandler    func(error)
}

// New creates a Watcher with default options.
func New() (*Watcher, error) {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a Watcher with custom options.
func NewWithOptions(options Options) (*Watcher, error) {
	source, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := options.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	maxWatches := options.MaxWatches
	if maxWatches <= 0 {
		maxWatches = defaultMaxWatches
	}

	instance := &Watcher{
		watcher:          source,
		callbacks:        make(map[string][]callbackEntry),
		dirs:             make(map[string]int),
		pending:          make(map[string]pendingEvent),
		debounceDuration: debounce,
		events:           make(chan fsnotify.Event, 16),
		errors:           make(chan error, 4),
		done:             make(chan struct{}),
		logger:           options.Logger,
		maxWatches:       maxWatches,
		errorHandler:     options.ErrorHandler,
	}

	instance.startForwarder(source)
	go instance.run()
	return instance, nil
}

// Close shuts down the watcher and stops event processing. Safe to call
// more than once.
func (watcher *Watcher) Close() error {
	if watcher == nil {
		return nil
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil
	}
	watcher.closed = true
	for _, entry := range watcher.pending {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	watcher.pending = nil
	watcher.mutex.Unlock()

	watcher.restartMutex.Lock()
	if watcher.restartTimer != nil {
		watcher.restartTimer.Stop()
		watcher.restartTimer = nil
	}
	watcher.restartMutex.Unlock()

	close(watcher.done)
	if watcher.watcher == nil {
		return nil
	}
	return watcher.watcher.Close()
}

// SetErrorHandler configures a callback for unrecoverable watch failures.
func (watcher *Watcher) SetErrorHandler(handler func(error)) {
	if watcher == nil {
		return
	}
	watcher.restartMutex.Lock()
	watcher.errorHandler = handler
	watcher.restartMutex.Unlock()
}

func (watcher *Watcher) run() {
	for {
		select {
		case event := <-watcher.events:
			watcher.handleEvent(event)
		case err := <-watcher.errors:
			watcher.handleError(err)
		case <-watcher.done:
			return
		}
	}
}

func (watcher *Watcher) startForwarder(source *fsnotify.Watcher) {
	if source == nil {
		return
	}

	go func() {
		for {
			select {
			case event, ok := <-source.Events:
				if !ok {
					return
				}
				select {
				case watcher.events <- event:
				case <-watcher.done:
					return
				}
			case err, ok := <-source.Errors:
				if !ok {
					return
				}
				select {
				case watcher.errors <- err:
				case <-watcher.done:
					return
				}
			case <-watcher.done:
				return
			}
		}
	}()
}

// Metrics reports current watcher stats.
func (watcher *Watcher) Metrics() Metrics {
	if watcher == nil {
		return Metrics{}
	}
	watcher.mutex.Lock()
	active := watcher.activeWatches
	watcher.mutex.Unlock()
	watcher.restartMutex.Lock()
	restartAttempts := watcher.restartAttempts
	watcher.restartMutex.Unlock()
	return Metrics{
		ActiveWatches:   active,
		EventsDelivered: atomic.LoadUint64(&watcher.eventsDelivered),
		EventsDropped:   atomic.LoadUint64(&watcher.eventsDropped),
		Errors:          atomic.LoadUint64(&watcher.errorCount),
		RestartAttempts: restartAttempts,
	}
}

func (watcher *Watcher) logWarn(message string, fields map[string]string) {
	if watcher == nil || watcher.logger == nil {
		return
	}
	watcher.logger.Warn(message, withWatcherFields(fields))
}

func (watcher *Watcher) logDebug(message string, fields map[string]string) {
	if watcher == nil || watcher.logger == nil {
		return
	}
	watcher.logger.Debug(message, withWatcherFields(fields))
}

func withWatcherFields(fields map[string]string) map[string]string {
	merged := make(map[string]string, len(fields)+1)
	merged["prism.component"] = "watcher"
	for key, value := range fields {
		merged[key] = value
	}
	return merged
}
