package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"levelview/internal/camera"
)

func defaultProjector(aspect float64) Projector {
	controller := camera.NewController(camera.DefaultConfig())
	controller.Resize(aspect, 1)
	return NewProjector(controller.View(), controller.Projection())
}

// TestProjector_Project tests basic projection geometry
func TestProjector_Project(t *testing.T) {
	projector := defaultProjector(1)

	x, y, depth, scale, ok := projector.Project(r3.Vec{})
	require.True(t, ok)
	assert.InDelta(t, 0, x, 1e-12)
	assert.InDelta(t, 0, y, 1e-12)
	assert.InDelta(t, 17, depth, 1e-12) // |(0,8,15)|
	assert.Greater(t, scale, 0.0)

	// camera looks down -z from +z, so +x is screen right
	x, _, _, _, ok = projector.Project(r3.Vec{X: 2})
	require.True(t, ok)
	assert.Greater(t, x, 0.0)

	// points above the pivot are screen up
	_, y, _, _, ok = projector.Project(r3.Vec{Y: 2})
	require.True(t, ok)
	assert.Greater(t, y, 0.0)

	// behind the camera is clipped
	_, _, _, _, ok = projector.Project(r3.Vec{Y: 16, Z: 30})
	assert.False(t, ok)
}

// TestProjector_Aspect tests horizontal scaling by aspect
func TestProjector_Aspect(t *testing.T) {
	narrow, _, _, _, _ := defaultProjector(1).Project(r3.Vec{X: 2})
	wide, _, _, _, _ := defaultProjector(2).Project(r3.Vec{X: 2})
	assert.InDelta(t, narrow/2, wide, 1e-12)
}

// TestScene tests segment layout
func TestScene(t *testing.T) {
	scene := NewScene(topologyForTest())
	require.Len(t, scene.Segments, 24*8)

	first := scene.Segments[0]
	assert.Equal(t, 0, first.Slot)
	assert.Equal(t, 4, first.Sensor)
	assert.Equal(t, 0, first.Bit)
	assert.InDelta(t, 0.2, first.Center.Y, 1e-12)
	assert.InDelta(t, 7*0.4+0.2, scene.Segments[7].Center.Y, 1e-12)
	assert.Equal(t, InactiveColor, first.Color)

	r, g, b := ActiveColor.RGB()
	assert.Equal(t, [3]uint8{0x00, 0x66, 0xff}, [3]uint8{r, g, b})
}
