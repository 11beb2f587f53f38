package watcher

import (
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

func (watcher *Watcher) handleError(err error) {
	if err == nil {
		return
	}
	atomic.AddUint64(&watcher.errorCount, 1)
	watcher.logWarn("watcher error", map[string]string{
		"error": err.Error(),
	})
	watcher.scheduleRestart(err)
}

func restartDelay(attempt int) time.Duration {
	return restartBaseDelay * time.Duration(1<<attempt)
}

func (watcher *Watcher) scheduleRestart(err error) {
	if watcher == nil {
		return
	}
	watcher.mutex.Lock()
	closed := watcher.closed
	watcher.mutex.Unlock()

	watcher.restartMutex.Lock()
	if closed || watcher.restartTimer != nil {
		watcher.restartMutex.Unlock()
		return
	}
	if watcher.restartAttempts >= maxRestartAttempts {
		handler := watcher.errorHandler
		watcher.restartMutex.Unlock()
		if handler != nil {
			handler(err)
		}
		return
	}
	delay := restartDelay(watcher.restartAttempts)
	watcher.restartAttempts++
	watcher.restartTimer = time.AfterFunc(delay, watcher.performRestart)
	watcher.restartMutex.Unlock()
}

func (watcher *Watcher) performRestart() {
	if watcher == nil {
		return
	}
	restartErr := watcher.restart()

	watcher.restartMutex.Lock()
	watcher.restartTimer = nil
	if restartErr == nil {
		watcher.restartAttempts = 0
		watcher.restartMutex.Unlock()
		return
	}
	watcher.restartMutex.Unlock()

	watcher.logWarn("watcher restart failed", map[string]string{
		"error": restartErr.Error(),
	})
	watcher.scheduleRestart(restartErr)
}

// restart replaces the fsnotify instance and re-adds every watched parent
// directory.
func (watcher *Watcher) restart() error {
	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil
	}
	dirs := make([]string, 0, len(watcher.dirs))
	for dir := range watcher.dirs {
		dirs = append(dirs, dir)
	}
	watcher.mutex.Unlock()

	replacement, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		if err := replacement.Add(dir); err != nil {
			watcher.logWarn("watcher re-add failed", map[string]string{
				"path":  dir,
				"error": err.Error(),
			})
		}
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		_ = replacement.Close()
		return nil
	}
	previous := watcher.watcher
	watcher.watcher = replacement
	watcher.mutex.Unlock()

	watcher.startForwarder(replacement)
	if previous != nil {
		_ = previous.Close()
	}
	return nil
}
