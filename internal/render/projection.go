package render

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"levelview/internal/camera"
)

// Projector maps scene points to normalized device coordinates for one
// camera view.
type Projector struct {
	eye     r3.Vec
	forward r3.Vec
	right   r3.Vec
	up      r3.Vec
	focal   float64
	proj    camera.Projection
}

// NewProjector precomputes the view basis.
func NewProjector(view camera.View, proj camera.Projection) Projector {
	forward := r3.Unit(r3.Sub(view.Target, view.Eye))
	right := r3.Unit(r3.Cross(forward, view.Up))
	return Projector{
		eye:     view.Eye,
		forward: forward,
		right:   right,
		up:      r3.Cross(right, forward),
		focal:   1 / math.Tan(proj.FieldOfView*math.Pi/360),
		proj:    proj,
	}
}

// Project returns x and y in [-1, 1] for visible points (y up), the view
// depth, and the scale in NDC units per scene unit at that depth. ok is
// false when the point falls outside the clip range.
func (p Projector) Project(point r3.Vec) (x, y, depth, scale float64, ok bool) {
	rel := r3.Sub(point, p.eye)
	depth = r3.Dot(rel, p.forward)
	if depth < p.proj.Near || depth > p.proj.Far {
		return 0, 0, depth, 0, false
	}
	scale = p.focal / depth
	x = r3.Dot(rel, p.right) * scale / p.proj.Aspect
	y = r3.Dot(rel, p.up) * scale
	return x, y, depth, scale, true
}
