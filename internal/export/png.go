// Package export renders a snapshot as a top-down PNG of the sensor
// layout.
package export

import (
	"fmt"
	"image/color"
	"io"
	"math/bits"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"levelview/internal/render"
	"levelview/internal/state"
	"levelview/internal/telemetry"
	"levelview/internal/topology"
)

// Image size
const (
	Width  = 10 * vg.Inch
	Height = 6 * vg.Inch
)

const (
	minGlyph = 4
	maxGlyph = 14
)

// Plot builds the layout plot for snapshot: one glyph per slot, sized and
// shaded by how many level bits are set, labelled with the sensor number
// and its binary reading.
func Plot(topo *topology.Topology, snapshot *state.Snapshot) (*plot.Plot, error) {
	p := plot.New()
	quality := telemetry.Grade(snapshot.Values())
	p.Title.Text = fmt.Sprintf("Levels, frame %d (%s)", snapshot.Version(), quality)
	if !snapshot.Valid() && snapshot.Version() > 0 {
		p.Title.Text += ", malformed"
	}
	p.X.Label.Text = "x"
	p.Y.Label.Text = "row"

	points := make(plotter.XYs, topo.SensorCount())
	labels := make([]string, topo.SensorCount())
	lit := make([]int, topo.SensorCount())
	for i, slot := range topo.Slots() {
		// top-down: rows further from the camera sit higher in the image
		points[i] = plotter.XY{X: slot.Position.X, Y: -slot.Position.Z}
		if i < snapshot.Len() {
			value := snapshot.Slot(i).Value
			labels[i] = fmt.Sprintf("S%d %s", slot.Sensor, telemetry.FormatBits(value))
			lit[i] = bits.OnesCount8(value)
		} else {
			labels[i] = fmt.Sprintf("S%d", slot.Sensor)
		}
	}

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return nil, fmt.Errorf("failed to build scatter: %w", err)
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{
			Color:  levelColor(lit[i]),
			Radius: vg.Points(minGlyph + float64(maxGlyph-minGlyph)*float64(lit[i])/telemetry.BitsPerSensor),
			Shape:  draw.CircleGlyph{},
		}
	}

	names, err := plotter.NewLabels(plotter.XYLabels{XYs: points, Labels: labels})
	if err != nil {
		return nil, fmt.Errorf("failed to build labels: %w", err)
	}
	names.Offset = vg.Point{X: -vg.Points(18), Y: -vg.Points(maxGlyph + 8)}

	p.Add(plotter.NewGrid(), scatter, names)
	// room for labels below the bottom row and beside the outer columns
	p.X.Min -= 1
	p.X.Max += 1
	p.Y.Min -= 1
	p.Y.Max += 0.5
	return p, nil
}

// levelColor blends the inactive segment color toward the active one by
// the share of set bits.
func levelColor(lit int) color.Color {
	t := float64(lit) / telemetry.BitsPerSensor
	ar, ag, ab := render.ActiveColor.RGB()
	ir, ig, ib := render.InactiveColor.RGB()
	mix := func(from, to uint8) uint8 {
		return uint8(float64(from) + (float64(to)-float64(from))*t)
	}
	return color.RGBA{R: mix(ir, ar), G: mix(ig, ag), B: mix(ib, ab), A: 255}
}

// Write renders snapshot as PNG to w.
func Write(w io.Writer, topo *topology.Topology, snapshot *state.Snapshot) error {
	p, err := Plot(topo, snapshot)
	if err != nil {
		return err
	}
	writer, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return fmt.Errorf("failed to render png: %w", err)
	}
	if _, err := writer.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

// WritePNG renders snapshot to a PNG file at path.
func WritePNG(path string, topo *topology.Topology, snapshot *state.Snapshot) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(file, topo, snapshot); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Filename returns a name for exporting snapshot into dir.
func Filename(dir string, snapshot *state.Snapshot) string {
	stamp := snapshot.AppliedAt().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("levels-%06d-%s.png", snapshot.Version(), stamp))
}
