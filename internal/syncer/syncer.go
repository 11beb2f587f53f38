// Package syncer keeps the active theme synchronized across processes
// through a shared state file. Local changes are debounced into one
// atomic overwrite of the file; external overwrites are observed through a
// filesystem watch and debounced into one reload. A suppression gate around
// the local-change notification keeps a reload from re-entering the save
// path, which is the only thing standing between this protocol and an
// unbounded write loop.
package syncer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"prism/internal/event"
	"prism/internal/fsutil"
	"prism/internal/logging"
	"prism/internal/notify"
	"prism/internal/theme"
	"prism/internal/watcher"
)

const (
	// MinDebounce is the floor the configuration surface enforces; delays
	// below it are clamped rather than rejected.
	MinDebounce     = 50 * time.Millisecond
	DefaultDebounce = 200 * time.Millisecond
	DefaultTheme    = "default"

	stateFileMode = 0o644
)

var ErrNotStarted = errors.New("synchronizer not started")
var ErrStopped = errors.New("synchronizer stopped")

// Options configures a Synchronizer.
type Options struct {
	// Path is the shared state file. Required.
	Path string
	// DefaultTheme is applied when the state file is absent or empty.
	DefaultTheme string
	// Debounce is the quiet period for both the save and the reload path.
	Debounce time.Duration
	// AutoLoad wires the watch-driven reload path. When false the
	// synchronizer only ever saves.
	AutoLoad bool

	Registry *theme.Registry
	Applier  theme.Applier
	Logger   *logging.Logger
	Sink     notify.Sink
	// Watch supplies the filesystem watch implementation. When nil and
	// AutoLoad is set, the synchronizer owns a private watcher.
	Watch watcher.Watch
}

// Synchronizer orchestrates the save/load/propagate protocol for one state
// file.
type Synchronizer struct {
	path         string
	defaultTheme string
	delay        time.Duration
	autoLoad     bool

	registry *theme.Registry
	applier  theme.Applier
	logger   *logging.Logger
	sink     notify.Sink
	watch    watcher.Watch

	changes *event.Bus[ChangeEvent]
	updates *event.Bus[StateEvent]
	gate    *changeGate

	saveQueue *debouncer[string]
	loadQueue *debouncer[struct{}]

	mu         sync.Mutex
	current    string
	started    bool
	stopped    bool
	handle     watcher.Handle
	ownWatcher *watcher.Watcher
}

func New(options Options) (*Synchronizer, error) {
	if strings.TrimSpace(options.Path) == "" {
		return nil, errors.New("state file path is required")
	}

	defaultTheme := strings.TrimSpace(options.DefaultTheme)
	if defaultTheme == "" {
		defaultTheme = DefaultTheme
	}
	delay := options.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if delay < MinDebounce {
		delay = MinDebounce
	}
	registry := options.Registry
	if registry == nil {
		registry = theme.NewRegistry()
	}
	applier := options.Applier
	if applier == nil {
		applier = theme.NopApplier{}
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.NewLoggerWithOutput(nil, logging.LevelInfo, nil)
	}
	sink := options.Sink
	if sink == nil {
		sink = notify.NewLoggerSink(logger)
	}

	s := &Synchronizer{
		path:         options.Path,
		defaultTheme: defaultTheme,
		delay:        delay,
		autoLoad:     options.AutoLoad,
		registry:     registry,
		applier:      applier,
		logger:       logger,
		sink:         sink,
		watch:        options.Watch,
		changes:      event.NewBus[ChangeEvent](context.Background(), event.BusOptions{Name: "theme_changes"}),
		updates:      event.NewBus[StateEvent](context.Background(), event.BusOptions{Name: "theme_updates"}),
		current:      defaultTheme,
	}
	s.saveQueue = newDebouncer(delay, s.save)
	s.loadQueue = newDebouncer(delay, func(struct{}) { s.load() })
	s.gate = newChangeGate(s.changes, func(change ChangeEvent) {
		s.saveQueue.call(change.Theme)
	})
	return s, nil
}

// Start reads the state file, applies the persisted theme (or the default),
// restores the local-change gate, and, when auto-load is enabled, registers
// the watch-driven reload path. A missing or empty state file is a normal
// first-run condition, not a failure.
func (s *Synchronizer) Start() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	token, err := fsutil.ReadToken(s.path)
	if err != nil {
		s.report("error", "state file unreadable, using default theme", map[string]string{
			"path":  s.path,
			"error": err.Error(),
		})
		token = ""
	}

	// The gate is not restored yet, so the startup application can never
	// feed back into the save path.
	if token == "" {
		s.logger.Debug("no persisted theme, using default", map[string]string{
			"path":  s.path,
			"theme": s.defaultTheme,
		})
	} else if err := s.applyTheme(token, SourceStartup); err != nil {
		s.report("error", "persisted theme rejected on startup", map[string]string{
			"theme": token,
			"error": err.Error(),
		})
	}

	s.gate.restore()

	if !s.autoLoad {
		return nil
	}
	if token == "" {
		// Persist the startup theme so peers have a file to observe.
		s.writeState(s.currentTheme())
	}
	return s.startWatch()
}

func (s *Synchronizer) startWatch() error {
	watch := s.watch
	if watch == nil {
		// Raw fsnotify bursts are coalesced with a short window; the
		// configured delay is applied once, by the reload debouncer.
		instance, err := watcher.NewWithOptions(watcher.Options{
			Logger:   s.logger,
			Debounce: 20 * time.Millisecond,
		})
		if err != nil {
			return err
		}
		instance.SetErrorHandler(func(err error) {
			s.report("error", "filesystem watch failed, reloads suspended", map[string]string{
				"path":  s.path,
				"error": err.Error(),
			})
		})
		s.mu.Lock()
		s.ownWatcher = instance
		s.mu.Unlock()
		watch = instance
	}

	handle, err := watch.Watch(s.path, func(watcher.Event) {
		s.loadQueue.call(struct{}{})
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()
	return nil
}

// Stop tears the synchronizer down. A save still inside its debounce window
// is dropped. Safe to call more than once.
func (s *Synchronizer) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	handle := s.handle
	s.handle = nil
	ownWatcher := s.ownWatcher
	s.ownWatcher = nil
	s.mu.Unlock()

	s.saveQueue.stop()
	s.loadQueue.stop()
	s.gate.clear()
	if handle != nil {
		_ = handle.Close()
	}
	if ownWatcher != nil {
		_ = ownWatcher.Close()
	}
	s.changes.Close()
	s.updates.Close()
	return nil
}

// Set records a local theme change: the theme is applied immediately and
// the change propagates to the state file through the debounced save path.
func (s *Synchronizer) Set(name string) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.mu.Unlock()

	if err := s.applyTheme(name, SourceLocal); err != nil {
		s.report("error", "theme apply failed", map[string]string{
			"theme": name,
			"error": err.Error(),
		})
		return err
	}
	return nil
}

// SaveNow validates and persists a theme immediately, bypassing the
// debounce window. Used by one-shot callers that exit right after saving.
func (s *Synchronizer) SaveNow(name string) error {
	name = strings.TrimSpace(name)
	if !s.registry.Valid(name) {
		err := &theme.ErrUnknownTheme{Name: name}
		s.report("error", "theme not saved", map[string]string{
			"theme": name,
			"error": err.Error(),
		})
		return err
	}
	return s.writeState(name)
}

// Current returns the theme last applied in this process.
func (s *Synchronizer) Current() string {
	return s.currentTheme()
}

// Updates exposes the applied-state feed for observers.
func (s *Synchronizer) Updates() *event.Bus[StateEvent] {
	if s == nil {
		return nil
	}
	return s.updates
}

// save is the debounced save path: validate, then atomically overwrite the
// state file with the final value of the burst.
func (s *Synchronizer) save(name string) {
	if !s.registry.Valid(name) {
		s.report("warn", "unknown theme, not saved", map[string]string{
			"theme": name,
		})
		return
	}
	_ = s.writeState(name)
}

func (s *Synchronizer) writeState(name string) error {
	if err := fsutil.WriteFileAtomic(s.path, []byte(name), stateFileMode); err != nil {
		s.report("error", "state file write failed", map[string]string{
			"path":  s.path,
			"error": err.Error(),
		})
		return err
	}
	s.logger.Debug("state saved", map[string]string{
		"path":  s.path,
		"theme": name,
	})
	return nil
}

// load is the debounced reload path. The gate is cleared for its whole
// extent and restored on every exit, error exits included; losing the
// restore would permanently cut off local-change propagation.
func (s *Synchronizer) load() {
	s.gate.clear()
	defer s.gate.restore()

	token, err := fsutil.ReadToken(s.path)
	if err != nil {
		s.report("error", "state file read failed", map[string]string{
			"path":  s.path,
			"error": err.Error(),
		})
		return
	}
	if token == "" {
		// An empty or deleted file falls back to the in-memory theme.
		s.logger.Debug("state file empty, keeping current theme", map[string]string{
			"path":  s.path,
			"theme": s.currentTheme(),
		})
		return
	}
	if !s.registry.Valid(token) {
		s.report("error", "unrecognized theme in state file", map[string]string{
			"path":  s.path,
			"theme": token,
		})
		return
	}
	if token == s.currentTheme() {
		return
	}
	if err := s.applyTheme(token, SourceReload); err != nil {
		s.report("error", "reloaded theme rejected", map[string]string{
			"theme": token,
			"error": err.Error(),
		})
	}
}

// applyTheme applies a theme through the external collaborator, records it
// as current, and publishes both the observer update and the local-change
// notification. Whether the change notification reaches the save path is
// the gate's decision.
func (s *Synchronizer) applyTheme(name string, source Source) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("theme name is empty")
	}
	if err := s.applier.Apply(context.Background(), name); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = name
	s.mu.Unlock()

	now := time.Now().UTC()
	s.updates.Publish(StateEvent{Theme: name, Source: source, At: now})
	s.changes.Publish(ChangeEvent{Theme: name, At: now})
	s.logger.Info("theme applied", map[string]string{
		"theme":  name,
		"source": string(source),
	})
	return nil
}

func (s *Synchronizer) currentTheme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Synchronizer) report(level, message string, fields map[string]string) {
	_ = s.sink.Emit(context.Background(), notify.Event{
		Level:      level,
		Message:    message,
		Fields:     fields,
		OccurredAt: time.Now().UTC(),
	})
}
