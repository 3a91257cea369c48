package camera

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// State is the drag state of the controller.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Source identifies the input device driving a drag.
type Source int

const (
	Pointer Source = iota
	Touch
)

// View is the camera transform consumed by the renderer.
type View struct {
	Eye    r3.Vec
	Target r3.Vec
	Up     r3.Vec
}

// Projection holds the perspective parameters. Only Resize changes it.
type Projection struct {
	FieldOfView float64 // degrees, vertical
	Aspect      float64
	Near        float64
	Far         float64
}

// Controller is the orbit camera. One drag at a time: a press from any
// source while a drag is active is ignored, and only the source that
// started the drag can move or end it.
type Controller struct {
	config     Config
	eye        r3.Vec
	projection Projection

	state  State
	source Source
	radius float64
	angle  float64
	lastX  float64
	lastY  float64
}

// NewController creates an idle controller at the configured eye.
func NewController(config Config) *Controller {
	return &Controller{
		config: config,
		eye:    config.Eye,
		projection: Projection{
			FieldOfView: config.FieldOfView,
			Aspect:      1,
			Near:        config.Near,
			Far:         config.Far,
		},
	}
}

// State returns the current drag state.
func (c *Controller) State() State {
	return c.state
}

// Radius returns the orbit radius fixed for the active (or last) drag.
func (c *Controller) Radius() float64 {
	return c.radius
}

// Angle returns the orbit angle of the active (or last) drag in radians.
func (c *Controller) Angle() float64 {
	return c.angle
}

// Down starts a drag at pointer coordinates (x, y). It returns false when
// a drag is already active.
func (c *Controller) Down(source Source, x, y float64) bool {
	if c.state == Dragging {
		return false
	}
	dx := c.eye.X - c.config.Pivot.X
	dz := c.eye.Z - c.config.Pivot.Z

	c.state = Dragging
	c.source = source
	c.radius = math.Hypot(dx, dz)
	c.angle = math.Atan2(dz, dx)
	c.lastX = x
	c.lastY = y
	return true
}

// Move orbits the camera by the pointer delta since the last event.
func (c *Controller) Move(source Source, x, y float64) bool {
	if c.state != Dragging || source != c.source {
		return false
	}
	deltaX := x - c.lastX
	deltaY := y - c.lastY
	c.lastX = x
	c.lastY = y

	c.angle += deltaX * c.config.AngularSensitivity
	height := c.eye.Y + deltaY*c.config.VerticalSensitivity
	height = math.Max(c.config.MinHeight, math.Min(c.config.MaxHeight, height))

	c.eye = r3.Vec{
		X: c.config.Pivot.X + math.Cos(c.angle)*c.radius,
		Y: height,
		Z: c.config.Pivot.Z + math.Sin(c.angle)*c.radius,
	}
	return true
}

// Up ends the drag started by source, whether or not it moved.
func (c *Controller) Up(source Source) bool {
	if c.state != Dragging || source != c.source {
		return false
	}
	c.state = Idle
	return true
}

// Cancel ends any active drag regardless of source.
func (c *Controller) Cancel() {
	c.state = Idle
}

// Reset returns to the configured eye and ends any drag.
func (c *Controller) Reset() {
	c.state = Idle
	c.eye = c.config.Eye
}

// Resize updates the projection aspect for a new surface size. Drag
// state and the view are left alone.
func (c *Controller) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	c.projection.Aspect = width / height
}

// Projection returns the perspective parameters.
func (c *Controller) Projection() Projection {
	return c.projection
}

// View returns the current transform, always aimed at the pivot.
func (c *Controller) View() View {
	return View{
		Eye:    c.eye,
		Target: c.config.Pivot,
		Up:     r3.Vec{Y: 1},
	}
}
