package topology

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// Slot is one physical rod position.
type Slot struct {
	Index    int
	Row      int
	Column   int
	Sensor   int
	Position r3.Vec
}

// Topology maps sensor numbers to slots and slots to scene coordinates.
// It is immutable once built and safe for concurrent readers.
type Topology struct {
	rows         []int
	slots        []Slot
	slotBySensor []int // indexed by sensor-1
}

// New validates the table and precomputes both lookup directions.
func New(table Table) (*Topology, error) {
	if err := Validate(table); err != nil {
		return nil, err
	}

	count := table.SensorCount()
	topo := &Topology{
		rows:         append([]int(nil), table.Rows...),
		slots:        make([]Slot, 0, count),
		slotBySensor: make([]int, count),
	}

	index := 0
	for row, n := range table.Rows {
		width := float64(n-1) * table.SpacingX
		for col := 0; col < n; col++ {
			sensor := table.Permutation[index]
			topo.slots = append(topo.slots, Slot{
				Index:  index,
				Row:    row,
				Column: col,
				Sensor: sensor,
				Position: r3.Vec{
					X: -width/2 + float64(col)*table.SpacingX,
					Y: 0,
					Z: table.RowOrigin + float64(row)*table.SpacingRow,
				},
			})
			topo.slotBySensor[sensor-1] = index
			index++
		}
	}
	return topo, nil
}

// MustNew is New for tables that are part of the build; an invalid table
// is a programming error and panics.
func MustNew(table Table) *Topology {
	topo, err := New(table)
	if err != nil {
		panic(fmt.Sprintf("topology: %v", err))
	}
	return topo
}

var defaultTopology = sync.OnceValue(func() *Topology {
	return MustNew(DefaultTable())
})

// Default returns the shared reference topology.
func Default() *Topology {
	return defaultTopology()
}

// SensorCount returns the number of sensors (and slots).
func (t *Topology) SensorCount() int {
	return len(t.slots)
}

// Rows returns a copy of the row sizes.
func (t *Topology) Rows() []int {
	return append([]int(nil), t.rows...)
}

// SensorOf returns the sensor number at a slot, or 0 when slot is out of range.
func (t *Topology) SensorOf(slot int) int {
	if slot < 0 || slot >= len(t.slots) {
		return 0
	}
	return t.slots[slot].Sensor
}

// SlotOf returns the slot holding a sensor, or -1 when sensor is out of range.
func (t *Topology) SlotOf(sensor int) int {
	if sensor < 1 || sensor > len(t.slotBySensor) {
		return -1
	}
	return t.slotBySensor[sensor-1]
}

// PositionOf returns the base coordinates of a slot.
func (t *Topology) PositionOf(slot int) r3.Vec {
	return t.slots[slot].Position
}

// Slot returns a copy of the slot descriptor.
func (t *Topology) Slot(slot int) Slot {
	return t.slots[slot]
}

// Slots returns a copy of all slot descriptors in slot order.
func (t *Topology) Slots() []Slot {
	return append([]Slot(nil), t.slots...)
}
