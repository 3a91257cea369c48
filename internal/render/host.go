package render

import (
	"errors"
	"fmt"
	"time"
)

// FrameID identifies a requested frame callback. Zero means none.
type FrameID uint64

// FrameFunc is invoked once per display refresh it was requested for.
type FrameFunc func(now time.Time)

// Scheduler hands out display refresh callbacks, one shot each.
type Scheduler interface {
	RequestFrame(fn FrameFunc) FrameID
	CancelFrame(id FrameID)
}

// ListenerID identifies a registered event listener. Zero means none.
type ListenerID uint64

// Listener receives input events.
type Listener func(Event)

// EventTarget is the surface-side event registry.
type EventTarget interface {
	AddListener(kind EventKind, listener Listener) ListenerID
	RemoveListener(id ListenerID) error
}

// ErrUnknownListener is returned when removing a listener that is not registered.
var ErrUnknownListener = errors.New("listener not registered")

type pendingFrame struct {
	id FrameID
	fn FrameFunc
}

type registeredListener struct {
	kind     EventKind
	listener Listener
}

// Host is a cooperative scheduler and event registry driven by a display
// adapter: the adapter calls RunFrames once per refresh and Dispatch for
// each input event, all from one goroutine.
type Host struct {
	nextFrame    FrameID
	frames       []pendingFrame
	due          []pendingFrame
	nextListener ListenerID
	listeners    map[ListenerID]registeredListener
	order        []ListenerID
}

// NewHost creates an empty host.
func NewHost() *Host {
	return &Host{
		listeners: make(map[ListenerID]registeredListener),
	}
}

// RequestFrame queues fn for the next refresh.
func (h *Host) RequestFrame(fn FrameFunc) FrameID {
	h.nextFrame++
	h.frames = append(h.frames, pendingFrame{id: h.nextFrame, fn: fn})
	return h.nextFrame
}

// CancelFrame drops a queued callback, including one still waiting its
// turn in the refresh being run. Unknown ids are ignored.
func (h *Host) CancelFrame(id FrameID) {
	h.frames = dropFrame(h.frames, id)
	h.due = dropFrame(h.due, id)
}

func dropFrame(frames []pendingFrame, id FrameID) []pendingFrame {
	for i, frame := range frames {
		if frame.id == id {
			return append(frames[:i:i], frames[i+1:]...)
		}
	}
	return frames
}

// RunFrames runs the callbacks queued before this refresh. Callbacks they
// request run on the following refresh. It returns the number run.
func (h *Host) RunFrames(now time.Time) int {
	h.due = h.frames
	h.frames = nil
	ran := 0
	for len(h.due) > 0 {
		frame := h.due[0]
		h.due = h.due[1:]
		frame.fn(now)
		ran++
	}
	h.due = nil
	return ran
}

// PendingFrames returns the number of queued callbacks.
func (h *Host) PendingFrames() int {
	return len(h.frames)
}

// AddListener registers a listener for one event kind.
func (h *Host) AddListener(kind EventKind, listener Listener) ListenerID {
	h.nextListener++
	id := h.nextListener
	h.listeners[id] = registeredListener{kind: kind, listener: listener}
	h.order = append(h.order, id)
	return id
}

// RemoveListener unregisters a listener. Removing an id twice is an error.
func (h *Host) RemoveListener(id ListenerID) error {
	if _, ok := h.listeners[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownListener, id)
	}
	delete(h.listeners, id)
	for i, registered := range h.order {
		if registered == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListenerCount returns the number of registered listeners.
func (h *Host) ListenerCount() int {
	return len(h.listeners)
}

// Dispatch delivers an event to every listener of its kind, in
// registration order.
func (h *Host) Dispatch(event Event) int {
	delivered := 0
	for _, id := range append([]ListenerID(nil), h.order...) {
		registered, ok := h.listeners[id]
		if !ok || registered.kind != event.Kind {
			continue
		}
		registered.listener(event)
		delivered++
	}
	return delivered
}
