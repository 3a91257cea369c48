package state

import (
	"time"

	"levelview/internal/telemetry"
)

// SlotState is the render state of one slot: its reading and one flag per
// bit, position 0 being the MSB.
type SlotState struct {
	Slot   int
	Sensor int
	Value  uint8
	Active [telemetry.BitsPerSensor]bool
}

// Snapshot is one complete, immutable visualization state. Nothing in a
// published snapshot is ever written again.
type Snapshot struct {
	version   uint64
	appliedAt time.Time
	valid     bool
	slots     []SlotState
	values    []uint8 // indexed by sensor-1
}

// Version increases by one with every published snapshot. The initial
// snapshot is version 0.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// AppliedAt is when the snapshot was published.
func (s *Snapshot) AppliedAt() time.Time {
	return s.appliedAt
}

// Valid reports whether the source frame was well formed. A malformed
// frame still produces a snapshot, with every segment inactive.
func (s *Snapshot) Valid() bool {
	return s.valid
}

// Len returns the number of slots.
func (s *Snapshot) Len() int {
	return len(s.slots)
}

// Slot returns the state of one slot.
func (s *Snapshot) Slot(i int) SlotState {
	return s.slots[i]
}

// Values returns a copy of the decoded readings in sensor order.
func (s *Snapshot) Values() []uint8 {
	return append([]uint8(nil), s.values...)
}

// ActiveSegments counts active bits across all slots.
func (s *Snapshot) ActiveSegments() int {
	count := 0
	for _, slot := range s.slots {
		for _, on := range slot.Active {
			if on {
				count++
			}
		}
	}
	return count
}
