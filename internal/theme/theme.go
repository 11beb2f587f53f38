// Package theme defines the collaborators the sync core validates and
// applies theme tokens through.
package theme

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrUnknownTheme reports a token outside the recognized set.
type ErrUnknownTheme struct {
	Name string
}

func (err *ErrUnknownTheme) Error() string {
	return fmt.Sprintf("unknown theme %q", err.Name)
}

// Registry is the set of recognized theme names.
type Registry struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// DefaultThemes are always recognized.
var DefaultThemes = []string{"default", "nordic", "kanagawa", "gruvbox", "rose-pine"}

func NewRegistry(names ...string) *Registry {
	registry := &Registry{names: make(map[string]struct{})}
	registry.Add(DefaultThemes...)
	registry.Add(names...)
	return registry
}

func (registry *Registry) Add(names ...string) {
	if registry == nil {
		return
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		registry.names[name] = struct{}{}
	}
}

func (registry *Registry) Valid(name string) bool {
	if registry == nil {
		return false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	_, ok := registry.names[name]
	return ok
}

func (registry *Registry) Names() []string {
	if registry == nil {
		return nil
	}
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.names))
	for name := range registry.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Applier applies a theme to the host. Implementations must be idempotent:
// re-applying the current theme is harmless.
type Applier interface {
	Apply(ctx context.Context, name string) error
}

type ApplierFunc func(ctx context.Context, name string) error

func (fn ApplierFunc) Apply(ctx context.Context, name string) error {
	return fn(ctx, name)
}

// NopApplier accepts every theme without side effects, for hosts that only
// persist and propagate.
type NopApplier struct{}

func (NopApplier) Apply(context.Context, string) error {
	return nil
}

const defaultHookTimeout = 10 * time.Second

// HookApplier runs a user-configured command with the theme name appended,
// e.g. `tmux-theme-switch` becomes `tmux-theme-switch nordic`.
type HookApplier struct {
	Command string
	Timeout time.Duration
}

func (applier *HookApplier) Apply(ctx context.Context, name string) error {
	if applier == nil || strings.TrimSpace(applier.Command) == "" {
		return nil
	}
	timeout := applier.Timeout
	if timeout <= 0 {
		timeout = defaultHookTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	parts := strings.Fields(applier.Command)
	args := append(parts[1:], name)
	output, err := exec.CommandContext(ctx, parts[0], args...).CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			return fmt.Errorf("apply hook %q: %w", applier.Command, err)
		}
		return fmt.Errorf("apply hook %q: %w: %s", applier.Command, err, detail)
	}
	return nil
}
