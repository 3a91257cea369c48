package render

import (
	"errors"

	"levelview/internal/camera"
)

// ErrSurfaceUnavailable is returned by surfaces that cannot provide a
// draw context (no size yet, already released, no terminal).
var ErrSurfaceUnavailable = errors.New("drawing surface unavailable")

// Surface is the drawing target the loop renders onto.
type Surface interface {
	// Acquire returns a draw context. The loop holds at most one.
	Acquire() (DrawContext, error)
	// Size is the surface size in square units; the projection aspect is
	// width/height.
	Size() (width, height int)
}

// DrawContext issues draw calls and owns the surface resources.
type DrawContext interface {
	Draw(frame *Frame) error
	Release() error
}

// ProjectedSegment is a segment with its screen placement.
type ProjectedSegment struct {
	Segment
	X, Y  float64 // NDC
	Depth float64
	Scale float64 // NDC units per scene unit
}

// Frame is everything one draw call needs. It is reused between ticks and
// only valid for the duration of Draw.
type Frame struct {
	Tick       uint64
	Version    uint64
	Valid      bool
	View       camera.View
	Projection camera.Projection
	// Segments are the visible segments ordered far to near.
	Segments []ProjectedSegment
}
