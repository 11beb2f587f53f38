package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDispatchesWriteEvent(t *testing.T) {
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	path := filepath.Join(t.TempDir(), "state")
	if err := os.WriteFile(path, []byte("nordic"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	events := make(chan Event, 1)
	handle, err := watcher.Watch(path, func(event Event) {
		select {
		case events <- event:
		default:
		}
	})
	if err != nil {
		t.Fatalf("watch path: %v", err)
	}
	defer handle.Close()

	if err := os.WriteFile(path, []byte("gruvbox"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	event, ok := waitForEvent(events)
	if !ok {
		t.Fatal("timed out waiting for write event")
	}
	if event.Path != filepath.Clean(path) {
		t.Fatalf("expected path %q, got %q", path, event.Path)
	}
}

func TestWatcherObservesFileCreatedLater(t *testing.T) {
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	path := filepath.Join(t.TempDir(), "state")

	events := make(chan Event, 1)
	handle, err := watcher.Watch(path, func(event Event) {
		select {
		case events <- event:
		default:
		}
	})
	if err != nil {
		t.Fatalf("watch missing file: %v", err)
	}
	defer handle.Close()

	if err := os.WriteFile(path, []byte("nordic"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}

	if _, ok := waitForEvent(events); !ok {
		t.Fatal("timed out waiting for create event")
	}
}

func TestWatcherSurvivesRenameIntoPlace(t *testing.T) {
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "state")
	if err := os.WriteFile(path, []byte("nordic"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	events := make(chan Event, 4)
	handle, err := watcher.Watch(path, func(event Event) {
		select {
		case events <- event:
		default:
		}
	})
	if err != nil {
		t.Fatalf("watch path: %v", err)
	}
	defer handle.Close()

	for _, value := range []string{"gruvbox", "kanagawa"} {
		temp := filepath.Join(dir, "temp")
		if err := os.WriteFile(temp, []byte(value), 0o644); err != nil {
			t.Fatalf("write temp: %v", err)
		}
		if err := os.Rename(temp, path); err != nil {
			t.Fatalf("rename: %v", err)
		}
		if _, ok := waitForEvent(events); !ok {
			t.Fatalf("timed out waiting for rename event for %q", value)
		}
	}
}

func TestWatcherCoalescesEventBursts(t *testing.T) {
	watcher, err := NewWithOptions(Options{Debounce: 150 * time.Millisecond})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	path := filepath.Join(t.TempDir(), "state")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	count := make(chan struct{}, 16)
	handle, err := watcher.Watch(path, func(Event) {
		count <- struct{}{}
	})
	if err != nil {
		t.Fatalf("watch path: %v", err)
	}
	defer handle.Close()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("burst"), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-count:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for coalesced event")
	}
	select {
	case <-count:
		t.Fatal("burst produced more than one delivery")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherHandleCloseStopsDelivery(t *testing.T) {
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	path := filepath.Join(t.TempDir(), "state")
	if err := os.WriteFile(path, []byte("nordic"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	events := make(chan Event, 1)
	handle, err := watcher.Watch(path, func(event Event) {
		select {
		case events <- event:
		default:
		}
	})
	if err != nil {
		t.Fatalf("watch path: %v", err)
	}

	if err := handle.Close(); err != nil {
		t.Fatalf("close handle: %v", err)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if err := os.WriteFile(path, []byte("gruvbox"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	select {
	case <-events:
		t.Fatal("received event after handle close")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherRejectsBadRegistrations(t *testing.T) {
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	if _, err := watcher.Watch("", func(Event) {}); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := watcher.Watch(filepath.Join(t.TempDir(), "missing", "state"), func(Event) {}); err == nil {
		t.Fatal("expected error for missing parent directory")
	}
	dir := t.TempDir()
	if _, err := watcher.Watch(dir, func(Event) {}); err == nil {
		t.Fatal("expected error for directory target")
	}
	if _, err := watcher.Watch(filepath.Join(dir, "state"), nil); err == nil {
		t.Fatal("expected error for nil callback")
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := watcher.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := watcher.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := watcher.Watch(filepath.Join(t.TempDir(), "state"), func(Event) {}); err == nil {
		t.Fatal("expected watch on closed watcher to fail")
	}
}

func TestWatcherMaxWatches(t *testing.T) {
	watcher, err := NewWithOptions(Options{MaxWatches: 1})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	dir := t.TempDir()
	first, err := watcher.Watch(filepath.Join(dir, "one"), func(Event) {})
	if err != nil {
		t.Fatalf("first watch: %v", err)
	}
	defer first.Close()

	if _, err := watcher.Watch(filepath.Join(dir, "two"), func(Event) {}); err != ErrMaxWatchesExceeded {
		t.Fatalf("expected ErrMaxWatchesExceeded, got %v", err)
	}
}

func waitForEvent(events <-chan Event) (Event, bool) {
	select {
	case event := <-events:
		return event, true
	case <-time.After(2 * time.Second):
		return Event{}, false
	}
}
