package camera

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Default orbit and projection parameters
const (
	DefaultAngularSensitivity  = 0.01 // radians per pointer unit
	DefaultVerticalSensitivity = 0.01 // scene units per pointer unit
	DefaultMinHeight           = 2.0
	DefaultMaxHeight           = 15.0
	DefaultFieldOfView         = 40.0 // degrees, vertical
	DefaultNear                = 0.1
	DefaultFar                 = 1000.0
)

// Config holds the fixed camera parameters.
type Config struct {
	Eye                 r3.Vec  `yaml:"-"`
	Pivot               r3.Vec  `yaml:"-"`
	AngularSensitivity  float64 `yaml:"angular_sensitivity"`
	VerticalSensitivity float64 `yaml:"vertical_sensitivity"`
	MinHeight           float64 `yaml:"min_height"`
	MaxHeight           float64 `yaml:"max_height"`
	FieldOfView         float64 `yaml:"field_of_view"`
	Near                float64 `yaml:"near"`
	Far                 float64 `yaml:"far"`
}

// DefaultConfig returns the reference view: looking at the origin from
// (0, 8, 15).
func DefaultConfig() Config {
	return Config{
		Eye:                 r3.Vec{X: 0, Y: 8, Z: 15},
		Pivot:               r3.Vec{},
		AngularSensitivity:  DefaultAngularSensitivity,
		VerticalSensitivity: DefaultVerticalSensitivity,
		MinHeight:           DefaultMinHeight,
		MaxHeight:           DefaultMaxHeight,
		FieldOfView:         DefaultFieldOfView,
		Near:                DefaultNear,
		Far:                 DefaultFar,
	}
}

// Validate checks the camera parameters.
func (c Config) Validate() error {
	if c.MinHeight > c.MaxHeight {
		return fmt.Errorf("camera: min height %g above max height %g", c.MinHeight, c.MaxHeight)
	}
	if c.FieldOfView <= 0 || c.FieldOfView >= 180 {
		return fmt.Errorf("camera: field of view %g outside (0, 180)", c.FieldOfView)
	}
	if c.Near <= 0 || c.Far <= c.Near {
		return fmt.Errorf("camera: invalid clip range [%g, %g]", c.Near, c.Far)
	}
	if math.Hypot(c.Eye.X-c.Pivot.X, c.Eye.Z-c.Pivot.Z) == 0 {
		return errors.New("camera: eye must not sit on the pivot axis")
	}
	return nil
}
