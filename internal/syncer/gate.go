package syncer

import (
	"sync"

	"prism/internal/event"
)

// changeGate owns the local-change subscription on the change bus. The
// reload path clears it for the duration of a reload so that applying an
// externally observed theme never re-enters the save path, and restores it
// on every exit.
//
// restore is idempotent: a second restore never double-registers the
// handler. A generation counter fences events that were already buffered
// for a subscription when it was cleared.
type changeGate struct {
	mu         sync.Mutex
	bus        *event.Bus[ChangeEvent]
	handler    func(ChangeEvent)
	cancel     func()
	generation uint64
}

func newChangeGate(bus *event.Bus[ChangeEvent], handler func(ChangeEvent)) *changeGate {
	return &changeGate{bus: bus, handler: handler}
}

func (gate *changeGate) restore() {
	if gate == nil {
		return
	}
	gate.mu.Lock()
	defer gate.mu.Unlock()
	if gate.cancel != nil {
		return
	}
	gate.generation++
	generation := gate.generation
	output, cancel := gate.bus.Subscribe()
	gate.cancel = cancel

	go func() {
		for change := range output {
			if !gate.current(generation) {
				continue
			}
			gate.handler(change)
		}
	}()
}

func (gate *changeGate) clear() {
	if gate == nil {
		return
	}
	gate.mu.Lock()
	defer gate.mu.Unlock()
	if gate.cancel == nil {
		return
	}
	gate.cancel()
	gate.cancel = nil
	gate.generation++
}

func (gate *changeGate) active() bool {
	if gate == nil {
		return false
	}
	gate.mu.Lock()
	defer gate.mu.Unlock()
	return gate.cancel != nil
}

func (gate *changeGate) current(generation uint64) bool {
	gate.mu.Lock()
	defer gate.mu.Unlock()
	return gate.generation == generation
}
