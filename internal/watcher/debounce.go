package watcher

import (
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

type pendingEvent struct {
	timer *time.Timer
	event Event
}

func (watcher *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	watcher.mutex.Lock()
	if watcher.closed || watcher.pending == nil {
		watcher.mutex.Unlock()
		return
	}
	if len(watcher.callbacks[path]) == 0 {
		watcher.mutex.Unlock()
		return
	}

	entry := watcher.pending[path]
	superseded := entry.timer != nil
	entry.event = Event{
		Path:      path,
		Op:        event.Op,
		Timestamp: time.Now().UTC(),
	}
	if entry.timer == nil {
		entry.timer = time.AfterFunc(watcher.debounceDuration, func() {
			watcher.flush(path)
		})
	} else {
		entry.timer.Reset(watcher.debounceDuration)
	}
	watcher.pending[path] = entry
	watcher.mutex.Unlock()

	if superseded {
		atomic.AddUint64(&watcher.eventsDropped, 1)
	}
}

func (watcher *Watcher) flush(path string) {
	watcher.mutex.Lock()
	if watcher.closed || watcher.pending == nil {
		watcher.mutex.Unlock()
		return
	}
	entry, ok := watcher.pending[path]
	if !ok {
		watcher.mutex.Unlock()
		return
	}
	delete(watcher.pending, path)
	callbacks := watcher.callbacksForPathLocked(path)
	watcher.mutex.Unlock()

	for _, callback := range callbacks {
		callback(entry.event)
		atomic.AddUint64(&watcher.eventsDelivered, 1)
	}
}
