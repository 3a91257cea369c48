package render

import (
	"gonum.org/v1/gonum/spatial/r3"

	"levelview/internal/state"
	"levelview/internal/telemetry"
	"levelview/internal/topology"
)

// Color is a 24-bit RGB value.
type Color uint32

// Segment appearance
const (
	ActiveColor     Color = 0x0066ff
	InactiveColor   Color = 0x333333
	ActiveOpacity         = 0.8
	InactiveOpacity       = 0.3
	SegmentHeight         = 0.4
	SegmentRadius         = 0.25
)

// RGB splits the color into channels.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Segment is the visual for one bit of one slot. Bit 0 (the MSB) is the
// lowest segment of the rod.
type Segment struct {
	Slot    int
	Sensor  int
	Bit     int
	Center  r3.Vec
	Active  bool
	Color   Color
	Opacity float64
}

// Scene holds the segments of every slot, slot-major.
type Scene struct {
	Segments []Segment
}

// NewScene builds an all-inactive scene from the topology.
func NewScene(topo *topology.Topology) *Scene {
	scene := &Scene{
		Segments: make([]Segment, 0, topo.SensorCount()*telemetry.BitsPerSensor),
	}
	for _, slot := range topo.Slots() {
		for bit := 0; bit < telemetry.BitsPerSensor; bit++ {
			scene.Segments = append(scene.Segments, Segment{
				Slot:    slot.Index,
				Sensor:  slot.Sensor,
				Bit:     bit,
				Center:  r3.Add(slot.Position, r3.Vec{Y: float64(bit)*SegmentHeight + SegmentHeight/2}),
				Color:   InactiveColor,
				Opacity: InactiveOpacity,
			})
		}
	}
	return scene
}

// Apply sets each segment's color and opacity from the snapshot's flags.
func (s *Scene) Apply(snapshot *state.Snapshot) {
	for i := range s.Segments {
		segment := &s.Segments[i]
		if segment.Slot >= snapshot.Len() {
			continue
		}
		segment.Active = snapshot.Slot(segment.Slot).Active[segment.Bit]
		if segment.Active {
			segment.Color = ActiveColor
			segment.Opacity = ActiveOpacity
		} else {
			segment.Color = InactiveColor
			segment.Opacity = InactiveOpacity
		}
	}
}
