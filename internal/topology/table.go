package topology

import (
	"errors"
	"fmt"
)

// Layout constants of the reference tank: 24 rods in eight rows, bottom
// row first.
const (
	DefaultSpacingX   = 2.5
	DefaultSpacingRow = 1.2
	DefaultRowOrigin  = -4.2
)

var (
	// ErrNotBijective is returned when the permutation does not map slots
	// onto every sensor number exactly once.
	ErrNotBijective = errors.New("permutation is not a bijection")
	// ErrRowLayout is returned when the row sizes do not describe the
	// permutation.
	ErrRowLayout = errors.New("invalid row layout")
)

// Table is the versioned layout data: row sizes and the slot-to-sensor
// permutation, plus the spacing used to place slots in the scene.
type Table struct {
	Rows        []int   `yaml:"rows"`
	Permutation []int   `yaml:"permutation"`
	SpacingX    float64 `yaml:"spacing_x"`
	SpacingRow  float64 `yaml:"spacing_row"`
	RowOrigin   float64 `yaml:"row_origin"`
}

// DefaultTable returns a fresh copy of the reference layout.
func DefaultTable() Table {
	return Table{
		Rows: []int{2, 3, 3, 4, 4, 3, 3, 2},
		Permutation: []int{
			4, 1,
			3, 5, 2,
			12, 6, 7,
			11, 9, 10, 8,
			18, 16, 15, 13,
			17, 19, 14,
			23, 20, 22,
			24, 21,
		},
		SpacingX:   DefaultSpacingX,
		SpacingRow: DefaultSpacingRow,
		RowOrigin:  DefaultRowOrigin,
	}
}

// SensorCount is the number of slots described by the row sizes.
func (t Table) SensorCount() int {
	total := 0
	for _, n := range t.Rows {
		total += n
	}
	return total
}

// Validate checks the table. It does not modify it.
func Validate(t Table) error {
	if len(t.Rows) == 0 {
		return fmt.Errorf("%w: no rows", ErrRowLayout)
	}
	for i, n := range t.Rows {
		if n <= 0 {
			return fmt.Errorf("%w: row %d has %d slots", ErrRowLayout, i, n)
		}
	}
	if t.SpacingX <= 0 || t.SpacingRow <= 0 {
		return fmt.Errorf("%w: spacing must be positive (x=%g, row=%g)", ErrRowLayout, t.SpacingX, t.SpacingRow)
	}

	count := t.SensorCount()
	if len(t.Permutation) != count {
		return fmt.Errorf("%w: rows hold %d slots but permutation has %d entries", ErrRowLayout, count, len(t.Permutation))
	}

	seenAt := make([]int, count+1)
	for slot, sensor := range t.Permutation {
		if sensor < 1 || sensor > count {
			return fmt.Errorf("%w: slot %d maps to sensor %d outside 1..%d", ErrNotBijective, slot, sensor, count)
		}
		if seenAt[sensor] != 0 {
			return fmt.Errorf("%w: sensor %d assigned to slots %d and %d", ErrNotBijective, sensor, seenAt[sensor]-1, slot)
		}
		seenAt[sensor] = slot + 1
	}
	return nil
}
