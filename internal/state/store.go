package state

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"levelview/internal/telemetry"
	"levelview/internal/topology"
)

// ApplyHook is called after a snapshot has been published.
type ApplyHook func(snapshot *Snapshot, frame string)

// Store holds the latest snapshot. Writers build a complete snapshot off
// to the side and publish it with a single pointer store, so Current never
// returns a mix of two frames.
type Store struct {
	topo    *topology.Topology
	logger  *logrus.Logger
	current atomic.Pointer[Snapshot]
	hooks   []ApplyHook
	now     func() time.Time
}

// NewStore creates a store holding an all-inactive version 0 snapshot.
func NewStore(topo *topology.Topology, logger *logrus.Logger) *Store {
	store := &Store{
		topo:   topo,
		logger: logger,
		now:    time.Now,
	}
	initial := store.build(make([]uint8, topo.SensorCount()), false)
	initial.version = 0
	store.current.Store(initial)
	return store
}

// OnApply registers a hook run after each publication. Hooks must be
// registered before frames are applied.
func (s *Store) OnApply(hook ApplyHook) {
	s.hooks = append(s.hooks, hook)
}

// Topology returns the table the store resolves slots with.
func (s *Store) Topology() *topology.Topology {
	return s.topo
}

// Current returns the latest published snapshot.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// ApplyFrame decodes a frame and publishes the resulting snapshot. An
// empty frame means no telemetry this cycle: nothing is published and the
// previous snapshot stays current. The return value reports whether a
// snapshot was published.
func (s *Store) ApplyFrame(frame string) bool {
	if frame == "" {
		s.logger.Debug("No telemetry value, keeping previous snapshot")
		return false
	}

	count := s.topo.SensorCount()
	valid := true
	if err := telemetry.Check(frame, count); err != nil {
		valid = false
		s.logger.WithError(err).WithField("length", len(frame)).Warn("Malformed telemetry frame, showing all sensors inactive")
	}

	next := s.build(telemetry.Decode(frame, count), valid)
	for {
		previous := s.current.Load()
		next.version = previous.version + 1
		if s.current.CompareAndSwap(previous, next) {
			break
		}
	}

	s.logger.WithFields(logrus.Fields{
		"version": next.version,
		"valid":   next.valid,
		"active":  next.ActiveSegments(),
	}).Debug("Published snapshot")

	for _, hook := range s.hooks {
		hook(next, frame)
	}
	return true
}

// build derives the per-slot state from decoded readings.
func (s *Store) build(values []uint8, valid bool) *Snapshot {
	snapshot := &Snapshot{
		appliedAt: s.now(),
		valid:     valid,
		slots:     make([]SlotState, s.topo.SensorCount()),
		values:    values,
	}
	for slot := range snapshot.slots {
		sensor := s.topo.SensorOf(slot)
		value := values[sensor-1]
		snapshot.slots[slot] = SlotState{
			Slot:   slot,
			Sensor: sensor,
			Value:  value,
			Active: telemetry.Bits(value),
		}
	}
	return snapshot
}
