// Package watcher provides filesystem event watching for prism state files.
//
// Watches are registered per file but observed through the file's parent
// directory, so a watch survives atomic rename-into-place overwrites and may
// target a file that does not exist yet. Callbacks run on the watcher's own
// dispatch goroutine, never inside the fsnotify event callback, and events
// for the same path are debounced before delivery.
package watcher
