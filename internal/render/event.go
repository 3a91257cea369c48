package render

import "levelview/internal/camera"

// EventKind enumerates the input events the loop listens for.
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
	TouchStart
	TouchMove
	TouchEnd
	Resize
)

var eventKindNames = [...]string{
	PointerDown: "pointer-down",
	PointerMove: "pointer-move",
	PointerUp:   "pointer-up",
	TouchStart:  "touch-start",
	TouchMove:   "touch-move",
	TouchEnd:    "touch-end",
	Resize:      "resize",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "unknown"
}

// source maps a pointer or touch event kind to its camera input source.
func (k EventKind) source() camera.Source {
	switch k {
	case TouchStart, TouchMove, TouchEnd:
		return camera.Touch
	default:
		return camera.Pointer
	}
}

// Event is one input event. X and Y are surface coordinates for pointer
// and touch events; Width and Height are set for Resize.
type Event struct {
	Kind   EventKind
	X, Y   float64
	Width  int
	Height int
}
