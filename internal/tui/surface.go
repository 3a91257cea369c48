package tui

import (
	"errors"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"levelview/internal/render"
)

// CellAspect is how many times taller a terminal cell is than it is wide.
const CellAspect = 2

// Glyphs for segments above and below half opacity.
const (
	solidGlyph = '█'
	faintGlyph = '░'
)

var errAlreadyAcquired = errors.New("terminal surface already has a draw context")

type cell struct {
	glyph rune
	color render.Color
}

// TermSurface is a grid of terminal cells the render loop draws onto.
// Its size is reported in square units, so the height is the row count
// times CellAspect.
type TermSurface struct {
	cols, rows int
	cells      []cell
	acquired   bool
	draws      int
}

// NewTermSurface creates a surface with no size. Acquire fails until
// SetSize is called with a non-empty size.
func NewTermSurface() *TermSurface {
	return &TermSurface{}
}

// SetSize resizes the cell grid and clears it.
func (s *TermSurface) SetSize(cols, rows int) {
	s.cols = max(cols, 0)
	s.rows = max(rows, 0)
	s.cells = make([]cell, s.cols*s.rows)
}

// Size implements render.Surface.
func (s *TermSurface) Size() (width, height int) {
	return s.cols, s.rows * CellAspect
}

// Acquire implements render.Surface.
func (s *TermSurface) Acquire() (render.DrawContext, error) {
	if s.cols == 0 || s.rows == 0 {
		return nil, render.ErrSurfaceUnavailable
	}
	if s.acquired {
		return nil, errAlreadyAcquired
	}
	s.acquired = true
	return &termContext{surface: s}, nil
}

// Draws returns how many frames were rasterized.
func (s *TermSurface) Draws() int {
	return s.draws
}

// Render returns the grid as styled terminal text.
func (s *TermSurface) Render() string {
	var sb strings.Builder
	for row := 0; row < s.rows; row++ {
		if row > 0 {
			sb.WriteByte('\n')
		}
		line := s.cells[row*s.cols : (row+1)*s.cols]
		for start := 0; start < len(line); {
			end := start + 1
			for end < len(line) && line[end].color == line[start].color && (line[end].glyph == 0) == (line[start].glyph == 0) {
				end++
			}
			sb.WriteString(renderRun(line[start:end]))
			start = end
		}
	}
	return sb.String()
}

// renderRun styles a run of cells that share a color.
func renderRun(run []cell) string {
	text := make([]rune, len(run))
	for i, c := range run {
		text[i] = c.glyph
		if c.glyph == 0 {
			text[i] = ' '
		}
	}
	if run[0].glyph == 0 {
		return string(text)
	}
	return lipgloss.NewStyle().Foreground(segmentColor(run[0].color)).Render(string(text))
}

// Glyph returns the glyph at a cell, or a space when nothing covers it.
func (s *TermSurface) Glyph(col, row int) rune {
	if col < 0 || col >= s.cols || row < 0 || row >= s.rows {
		return ' '
	}
	if g := s.cells[row*s.cols+col].glyph; g != 0 {
		return g
	}
	return ' '
}

type termContext struct {
	surface  *TermSurface
	released bool
}

// Draw rasterizes each segment as a box of cells. Segments arrive far to
// near, so nearer ones overwrite.
func (c *termContext) Draw(frame *render.Frame) error {
	if c.released {
		return render.ErrSurfaceUnavailable
	}
	s := c.surface
	clear(s.cells)

	aspect := frame.Projection.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	halfCols := float64(s.cols) / 2
	halfRows := float64(s.rows) / 2

	for _, seg := range frame.Segments {
		col := (seg.X + 1) * halfCols
		row := (1 - seg.Y) * halfRows
		w := math.Max(render.SegmentRadius*seg.Scale/aspect*halfCols, 0.5)
		h := math.Max(render.SegmentHeight/2*seg.Scale*halfRows, 0.5)

		glyph := faintGlyph
		if seg.Opacity >= 0.5 {
			glyph = solidGlyph
		}
		c.fill(int(math.Floor(col-w)), int(math.Ceil(col+w)), int(math.Floor(row-h)), int(math.Ceil(row+h)), cell{glyph: glyph, color: seg.Color})
	}
	s.draws++
	return nil
}

func (c *termContext) fill(col0, col1, row0, row1 int, value cell) {
	s := c.surface
	col0, col1 = max(col0, 0), min(col1, s.cols)
	row0, row1 = max(row0, 0), min(row1, s.rows)
	for row := row0; row < row1; row++ {
		for col := col0; col < col1; col++ {
			s.cells[row*s.cols+col] = value
		}
	}
}

// Release implements render.DrawContext. Releasing twice is a no-op.
func (c *termContext) Release() error {
	if c.released {
		return nil
	}
	c.released = true
	c.surface.acquired = false
	clear(c.surface.cells)
	return nil
}
