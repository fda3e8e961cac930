package common

import (
	"sync"
	"sync/atomic"
)

// Ensure BaseEventEmitter implements the EventEmitter interface.
var _ EventEmitter = &BaseEventEmitter{}

const (
	// Connection
	EventConnectionClose string = "close"
)

// EventHandler is invoked with the event payload on every emit of the
// event it is registered for.
type EventHandler func(data any)

type eventHandler struct {
	fn      EventHandler
	removed atomic.Bool
}

// EventEmitter that all event emitters need to implement.
type EventEmitter interface {
	emit(event string, data any)
	on(event string, fn EventHandler) func()
}

// BaseEventEmitter emits events to registered handlers.
//
// Handlers for one event are kept in registration order and emit
// iterates over a snapshot of that order, so a handler may remove
// itself (or any other handler) from within its own invocation without
// disturbing the in-progress fan-out.
type BaseEventEmitter struct {
	emu      sync.Mutex
	handlers map[string][]*eventHandler
}

// NewBaseEventEmitter creates a new instance of a base event emitter.
func NewBaseEventEmitter() BaseEventEmitter {
	return BaseEventEmitter{
		handlers: make(map[string][]*eventHandler),
	}
}

// on registers a handler for a specific event. The returned function
// removes the registration; calling it more than once is a no-op.
// Each call registers a distinct handler, even for the same fn.
func (e *BaseEventEmitter) on(event string, fn EventHandler) func() {
	h := &eventHandler{fn: fn}
	e.emu.Lock()
	e.handlers[event] = append(e.handlers[event], h)
	e.emu.Unlock()

	return func() {
		if !h.removed.CompareAndSwap(false, true) {
			return
		}
		e.emu.Lock()
		defer e.emu.Unlock()
		hs := e.handlers[event]
		for i, o := range hs {
			if o == h {
				e.handlers[event] = append(hs[:i:i], hs[i+1:]...)
				break
			}
		}
	}
}

func (e *BaseEventEmitter) emit(event string, data any) {
	e.emu.Lock()
	snapshot := make([]*eventHandler, len(e.handlers[event]))
	copy(snapshot, e.handlers[event])
	e.emu.Unlock()

	for _, h := range snapshot {
		if h.removed.Load() {
			continue
		}
		h.fn(data)
	}
}

// removeAllHandlers drops every registration for every event.
func (e *BaseEventEmitter) removeAllHandlers() {
	e.emu.Lock()
	defer e.emu.Unlock()
	for _, hs := range e.handlers {
		for _, h := range hs {
			h.removed.Store(true)
		}
	}
	e.handlers = make(map[string][]*eventHandler)
}

// handlerCount reports the number of live registrations for an event.
func (e *BaseEventEmitter) handlerCount(event string) int {
	e.emu.Lock()
	defer e.emu.Unlock()
	return len(e.handlers[event])
}
