package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

type callbackEntry struct {
	id       uint64
	callback func(Event)
}

type watchHandle struct {
	watcher *Watcher
	path    string
	id      uint64
	once    sync.Once
}

func (handle *watchHandle) Close() error {
	if handle == nil || handle.watcher == nil {
		return nil
	}
	var err error
	handle.once.Do(func() {
		err = handle.watcher.removeCallback(handle.path, handle.id)
	})
	return err
}

// Watch registers a callback for filesystem events on a file path. The file
// does not have to exist yet; its parent directory does. Events are observed
// on the parent directory and filtered by name, so creation, writes, and
// rename-into-place are all delivered.
func (watcher *Watcher) Watch(path string, callback func(Event)) (Handle, error) {
	if watcher == nil {
		return nil, errors.New("watcher is nil")
	}
	if path == "" {
		return nil, errors.New("path is required")
	}
	if callback == nil {
		return nil, errors.New("callback is required")
	}

	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch parent directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch parent %q: not a directory", dir)
	}
	if target, err := os.Stat(path); err == nil && target.IsDir() {
		return nil, fmt.Errorf("watch %q: directories are not supported", path)
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil, errors.New("watcher is closed")
	}

	needsAdd := watcher.callbacks[path] == nil
	if needsAdd && watcher.activeWatches >= watcher.maxWatches {
		watcher.mutex.Unlock()
		return nil, ErrMaxWatchesExceeded
	}
	watcher.nextID++
	entry := callbackEntry{callback: callback, id: watcher.nextID}
	watcher.callbacks[path] = append(watcher.callbacks[path], entry)
	needsDirAdd := false
	if needsAdd {
		watcher.activeWatches++
		watcher.dirs[dir]++
		needsDirAdd = watcher.dirs[dir] == 1
	}
	activeCount := watcher.activeWatches
	watcher.mutex.Unlock()

	if needsDirAdd {
		if err := watcher.watcher.Add(dir); err != nil {
			watcher.dropCallback(path, entry.id)
			watcher.logWarn("watch add failed", map[string]string{
				"path":  path,
				"error": err.Error(),
			})
			return nil, err
		}
	}
	if needsAdd {
		watcher.logDebug("watch added", map[string]string{
			"path":           path,
			"active_watches": strconv.Itoa(activeCount),
		})
	}

	return &watchHandle{watcher: watcher, path: path, id: entry.id}, nil
}

func (watcher *Watcher) removeCallback(path string, id uint64) error {
	if watcher == nil {
		return nil
	}

	dir := filepath.Dir(path)
	removeDir := false
	watcher.mutex.Lock()
	if watcher.dropCallbackLocked(path, id) {
		watcher.dirs[dir]--
		if watcher.dirs[dir] <= 0 {
			delete(watcher.dirs, dir)
			removeDir = true
		}
	}
	closed := watcher.closed
	activeCount := watcher.activeWatches
	watcher.mutex.Unlock()

	if removeDir && !closed && watcher.watcher != nil {
		if err := watcher.watcher.Remove(dir); err != nil {
			watcher.logWarn("watch remove failed", map[string]string{
				"path":  path,
				"error": err.Error(),
			})
			return err
		}
	}
	watcher.logDebug("watch removed", map[string]string{
		"path":           path,
		"active_watches": strconv.Itoa(activeCount),
	})
	return nil
}

func (watcher *Watcher) dropCallback(path string, id uint64) {
	if watcher == nil {
		return
	}
	dir := filepath.Dir(path)
	watcher.mutex.Lock()
	if watcher.dropCallbackLocked(path, id) {
		watcher.dirs[dir]--
		if watcher.dirs[dir] <= 0 {
			delete(watcher.dirs, dir)
		}
	}
	watcher.mutex.Unlock()
}

// dropCallbackLocked removes one registration and reports whether the path
// no longer has any callbacks.
func (watcher *Watcher) dropCallbackLocked(path string, id uint64) bool {
	callbacks := watcher.callbacks[path]
	if len(callbacks) == 0 {
		return false
	}
	for index, candidate := range callbacks {
		if candidate.id == id {
			callbacks = append(callbacks[:index], callbacks[index+1:]...)
			break
		}
	}
	if len(callbacks) == 0 {
		delete(watcher.callbacks, path)
		if watcher.activeWatches > 0 {
			watcher.activeWatches--
		}
		return true
	}
	watcher.callbacks[path] = callbacks
	return false
}

func (watcher *Watcher) callbacksForPathLocked(path string) []func(Event) {
	entries := watcher.callbacks[path]
	if len(entries) == 0 {
		return nil
	}
	callbacks := make([]func(Event), 0, len(entries))
	for _, entry := range entries {
		callbacks = append(callbacks, entry.callback)
	}
	return callbacks
}
