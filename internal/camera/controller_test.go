package camera

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func horizontalDistance(v View) float64 {
	return math.Hypot(v.Eye.X-v.Target.X, v.Eye.Z-v.Target.Z)
}

// TestNewController tests the initial view
func TestNewController(t *testing.T) {
	controller := NewController(DefaultConfig())

	assert.Equal(t, Idle, controller.State())
	view := controller.View()
	assert.Equal(t, r3.Vec{X: 0, Y: 8, Z: 15}, view.Eye)
	assert.Equal(t, r3.Vec{}, view.Target)
	assert.Equal(t, r3.Vec{Y: 1}, view.Up)
	assert.Equal(t, 1.0, controller.Projection().Aspect)
}

// TestController_Drag tests angle accumulation and radius stability
func TestController_Drag(t *testing.T) {
	controller := NewController(DefaultConfig())

	require.True(t, controller.Down(Pointer, 100, 50))
	assert.Equal(t, Dragging, controller.State())
	radius := controller.Radius()
	start := controller.Angle()
	assert.Equal(t, 15.0, radius)
	assert.InDelta(t, math.Pi/2, start, 1e-12)

	// cumulative horizontal delta of 120
	assert.True(t, controller.Move(Pointer, 130, 50))
	assert.True(t, controller.Move(Pointer, 180, 50))
	assert.True(t, controller.Move(Pointer, 220, 50))

	assert.InDelta(t, start+0.01*120, controller.Angle(), 1e-12)
	assert.Equal(t, radius, controller.Radius())
	assert.InDelta(t, radius, horizontalDistance(controller.View()), 1e-9)
	assert.InDelta(t, 8.0, controller.View().Eye.Y, 1e-12)

	assert.True(t, controller.Up(Pointer))
	assert.Equal(t, Idle, controller.State())
}

// TestController_VerticalOnly tests that vertical movement does not drift the radius
func TestController_VerticalOnly(t *testing.T) {
	controller := NewController(DefaultConfig())

	controller.Down(Pointer, 0, 0)
	radius := controller.Radius()
	angle := controller.Angle()
	for y := 10.0; y <= 200; y += 10 {
		controller.Move(Pointer, 0, y)
	}

	assert.Equal(t, radius, controller.Radius())
	assert.Equal(t, angle, controller.Angle())
	assert.InDelta(t, radius, horizontalDistance(controller.View()), 1e-9)
	assert.InDelta(t, 10.0, controller.View().Eye.Y, 1e-9)
}

// TestController_HeightClamp tests the vertical bounds
func TestController_HeightClamp(t *testing.T) {
	tests := []struct {
		name     string
		deltaY   float64
		expected float64
	}{
		{name: "Clamp to max", deltaY: 5000, expected: DefaultMaxHeight},
		{name: "Clamp to min", deltaY: -5000, expected: DefaultMinHeight},
		{name: "Within range", deltaY: 300, expected: 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller := NewController(DefaultConfig())
			controller.Down(Pointer, 0, 0)
			controller.Move(Pointer, 0, tt.deltaY)
			assert.InDelta(t, tt.expected, controller.View().Eye.Y, 1e-9)
		})
	}
}

// TestController_ClampIsPerMove tests that the height recovers right away after hitting a bound
func TestController_ClampIsPerMove(t *testing.T) {
	controller := NewController(DefaultConfig())
	controller.Down(Pointer, 0, 0)
	controller.Move(Pointer, 0, 5000)
	controller.Move(Pointer, 0, 4900)
	assert.InDelta(t, DefaultMaxHeight-1, controller.View().Eye.Y, 1e-9)
}

// TestController_SingleDrag tests that a second source cannot start a drag
func TestController_SingleDrag(t *testing.T) {
	controller := NewController(DefaultConfig())

	require.True(t, controller.Down(Pointer, 0, 0))
	assert.False(t, controller.Down(Touch, 500, 500))
	assert.False(t, controller.Down(Pointer, 500, 500))

	// the touch stream must not steer or end the pointer drag
	assert.False(t, controller.Move(Touch, 900, 0))
	assert.False(t, controller.Up(Touch))
	assert.Equal(t, Dragging, controller.State())

	// pointer reference coordinates were not replaced by the ignored press
	controller.Move(Pointer, 10, 0)
	assert.InDelta(t, math.Pi/2+0.1, controller.Angle(), 1e-12)

	assert.True(t, controller.Up(Pointer))
	assert.True(t, controller.Down(Touch, 0, 0))
	assert.True(t, controller.Up(Touch))
}

// TestController_IdleEvents tests that moves and releases without a drag do nothing
func TestController_IdleEvents(t *testing.T) {
	controller := NewController(DefaultConfig())
	before := controller.View()

	assert.False(t, controller.Move(Pointer, 100, 100))
	assert.False(t, controller.Up(Pointer))
	assert.Equal(t, before, controller.View())
	assert.Equal(t, Idle, controller.State())
}

// TestController_UpWithoutMove tests release right after press
func TestController_UpWithoutMove(t *testing.T) {
	controller := NewController(DefaultConfig())
	before := controller.View()

	controller.Down(Touch, 3, 4)
	controller.Up(Touch)

	assert.Equal(t, Idle, controller.State())
	assert.Equal(t, before, controller.View())
}

// TestController_ResumeDrag tests that a second drag starts from the current position
func TestController_ResumeDrag(t *testing.T) {
	controller := NewController(DefaultConfig())
	controller.Down(Pointer, 0, 0)
	controller.Move(Pointer, 50, 0)
	controller.Up(Pointer)
	first := controller.Angle()

	controller.Down(Pointer, 1000, 1000)
	assert.InDelta(t, first, controller.Angle(), 1e-9)
	assert.InDelta(t, 15.0, controller.Radius(), 1e-9)
}

// TestController_Resize tests that resizing changes projection only
func TestController_Resize(t *testing.T) {
	controller := NewController(DefaultConfig())
	controller.Down(Pointer, 0, 0)
	controller.Move(Pointer, 20, 0)
	view := controller.View()

	controller.Resize(1600, 800)
	assert.Equal(t, 2.0, controller.Projection().Aspect)
	assert.Equal(t, Dragging, controller.State())
	assert.Equal(t, view, controller.View())

	controller.Resize(0, 100)
	assert.Equal(t, 2.0, controller.Projection().Aspect)
}

// TestController_CancelAndReset tests forced teardown of a drag
func TestController_CancelAndReset(t *testing.T) {
	controller := NewController(DefaultConfig())
	controller.Down(Touch, 0, 0)
	controller.Move(Touch, 100, 100)
	controller.Cancel()
	assert.Equal(t, Idle, controller.State())
	assert.NotEqual(t, r3.Vec{X: 0, Y: 8, Z: 15}, controller.View().Eye)

	controller.Reset()
	assert.Equal(t, r3.Vec{X: 0, Y: 8, Z: 15}, controller.View().Eye)
}

// TestConfig_Validate tests camera configuration checks
func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.MinHeight = 20
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.FieldOfView = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Far = bad.Near
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Eye = r3.Vec{Y: 5}
	assert.Error(t, bad.Validate())
}
