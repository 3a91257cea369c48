package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"levelview/internal/camera"
	"levelview/internal/render"
	"levelview/internal/state"
	"levelview/internal/telemetry"
)

// Terminal cells are scaled to approximate pixels so the camera's
// per-pixel drag sensitivity feels the same as with a real pointer.
const (
	cellWidthPx  = 8
	cellHeightPx = 16
)

const (
	defaultFPS = 30

	headerRows = 1
	statusRows = 1
	tableEntry = 18 // "S24 255 11111111" plus gutter
)

// ApplyFunc hands one telemetry frame to the state store.
type ApplyFunc func(frame string)

// ExportFunc writes a snapshot somewhere and returns where.
type ExportFunc func(snapshot *state.Snapshot) (string, error)

// Options configures the viewer model.
type Options struct {
	// FPS is the display refresh rate. Zero uses the default.
	FPS    int
	Keys   *KeyMap
	Theme  *Theme
	Export ExportFunc
	// Apply receives every FrameMsg. Nil applies straight to the store.
	Apply ApplyFunc
	// SourceDone delivers the telemetry source's exit error, if any.
	SourceDone <-chan error
	// Recorder receives render loop timings.
	Recorder render.Recorder
}

// FrameMsg carries one telemetry frame from a source goroutine into the
// program, so frames are applied on the same goroutine that ticks and
// handles input.
type FrameMsg string

// displayTickMsg is one display refresh.
type displayTickMsg time.Time

// sourceDoneMsg reports that the telemetry source stopped.
type sourceDoneMsg struct {
	err error
}

// Model is the bubbletea model hosting the render loop.
type Model struct {
	store   *state.Store
	camera  *camera.Controller
	host    *render.Host
	surface *TermSurface
	loop    *render.Loop
	logger  *logrus.Logger

	keys       KeyMap
	theme      Theme
	interval   time.Duration
	export     ExportFunc
	apply      ApplyFunc
	sourceDone <-chan error

	width     int
	height    int
	showTable bool
	status    string
	startErr  error
}

// NewModel creates the viewer around a store and camera. The render loop
// starts on the first window size message.
func NewModel(store *state.Store, controller *camera.Controller, logger *logrus.Logger, opts Options) Model {
	fps := opts.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	keys := DefaultKeyMap
	if opts.Keys != nil {
		keys = *opts.Keys
	}
	theme := DefaultTheme
	if opts.Theme != nil {
		theme = *opts.Theme
	}

	apply := opts.Apply
	if apply == nil {
		apply = func(frame string) { store.ApplyFrame(frame) }
	}

	host := render.NewHost()
	var loopOpts []render.Option
	if opts.Recorder != nil {
		loopOpts = append(loopOpts, render.WithRecorder(opts.Recorder))
	}

	return Model{
		store:      store,
		camera:     controller,
		host:       host,
		surface:    NewTermSurface(),
		loop:       render.NewLoop(store, controller, host, host, logger, loopOpts...),
		logger:     logger,
		keys:       keys,
		theme:      theme,
		interval:   time.Second / time.Duration(fps),
		export:     opts.Export,
		apply:      apply,
		sourceDone: opts.SourceDone,
		showTable:  true,
	}
}

// Loop returns the hosted render loop.
func (model Model) Loop() *render.Loop {
	return model.loop
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	cmds := []tea.Cmd{model.tick()}
	if model.sourceDone != nil {
		cmds = append(cmds, listenForSourceDone(model.sourceDone))
	}
	return tea.Batch(cmds...)
}

func (model Model) tick() tea.Cmd {
	return tea.Tick(model.interval, func(t time.Time) tea.Msg {
		return displayTickMsg(t)
	})
}

// listenForSourceDone blocks until the source goroutine exits.
func listenForSourceDone(channel <-chan error) tea.Cmd {
	return func() tea.Msg {
		err, ok := <-channel
		if !ok {
			return sourceDoneMsg{}
		}
		return sourceDoneMsg{err: err}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.layout()
		return model, nil

	case displayTickMsg:
		model.host.RunFrames(time.Time(message))
		return model, model.tick()

	case FrameMsg:
		model.apply(string(message))
		return model, nil

	case tea.MouseMsg:
		model.handleMouse(message)
		return model, nil

	case tea.KeyMsg:
		return model.handleKey(message)

	case sourceDoneMsg:
		if message.err != nil {
			model.status = "source stopped: " + message.err.Error()
		} else {
			model.status = "source finished"
		}
		return model, nil
	}
	return model, nil
}

// layout sizes the surface to the space left by the chrome. The loop is
// started by the first usable size and told about later ones.
func (model *Model) layout() {
	rows := model.height - headerRows - statusRows - model.tableRows()
	model.surface.SetSize(model.width, max(rows, 0))

	if !model.loop.Running() {
		if err := model.loop.Start(model.surface); err != nil {
			model.startErr = err
			model.logger.WithError(err).Debug("Render loop not started")
			return
		}
		model.startErr = nil
		return
	}
	width, height := model.surface.Size()
	model.host.Dispatch(render.Event{Kind: render.Resize, Width: width, Height: height})
}

func (model *Model) tableRows() int {
	if !model.showTable || model.width <= 0 {
		return 0
	}
	perRow := max(model.width/tableEntry, 1)
	n := model.store.Topology().SensorCount()
	return (n + perRow - 1) / perRow
}

func (model *Model) handleMouse(message tea.MouseMsg) {
	if !model.loop.Running() {
		return
	}
	event := render.Event{
		X: float64(message.X * cellWidthPx),
		Y: float64((message.Y - headerRows) * cellHeightPx),
	}

	switch message.Action {
	case tea.MouseActionPress:
		if message.Button != tea.MouseButtonLeft {
			return
		}
		if message.Y < headerRows || message.Y >= headerRows+model.surface.rows {
			return
		}
		event.Kind = render.PointerDown
	case tea.MouseActionMotion:
		if message.Button != tea.MouseButtonLeft {
			return
		}
		event.Kind = render.PointerMove
	case tea.MouseActionRelease:
		event.Kind = render.PointerUp
	default:
		return
	}
	model.host.Dispatch(event)
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		model.loop.Stop()
		return model, tea.Quit

	case key.Matches(message, model.keys.ResetCamera):
		model.camera.Reset()
		model.status = "view reset"

	case key.Matches(message, model.keys.ToggleTable):
		model.showTable = !model.showTable
		model.layout()

	case key.Matches(message, model.keys.Export):
		if model.export == nil {
			model.status = "export not configured"
			break
		}
		path, err := model.export(model.store.Current())
		if err != nil {
			model.logger.WithError(err).Warn("Export failed")
			model.status = "export failed: " + err.Error()
			break
		}
		model.status = "exported " + path
	}
	return model, nil
}

// View implements tea.Model.
func (model Model) View() string {
	if model.width == 0 {
		return ""
	}
	snapshot := model.store.Current()

	sections := []string{model.renderHeader(snapshot)}
	if model.startErr != nil {
		sections = append(sections, lipgloss.NewStyle().Foreground(model.theme.ErrorText).
			Render(fmt.Sprintf("render loop not running: %v", model.startErr)))
	} else {
		sections = append(sections, model.surface.Render())
	}
	if model.showTable {
		sections = append(sections, model.renderTable(snapshot))
	}
	sections = append(sections, model.renderStatus(snapshot))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model Model) renderHeader(snapshot *state.Snapshot) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground).Render("levelview")
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	frame := "no frame"
	if snapshot.Version() > 0 {
		frame = fmt.Sprintf("frame %d at %s", snapshot.Version(), snapshot.AppliedAt().Format("15:04:05"))
		if !snapshot.Valid() {
			frame += " (malformed)"
		}
	}
	return title + faint.Render("  "+frame)
}

func (model Model) renderTable(snapshot *state.Snapshot) string {
	perRow := max(model.width/tableEntry, 1)
	label := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	active := lipgloss.NewStyle().Foreground(model.theme.ActiveValue)
	normal := lipgloss.NewStyle().Foreground(model.theme.NormalText)

	var lines []string
	var line strings.Builder
	for i := 0; i < snapshot.Len(); i++ {
		slot := snapshot.Slot(i)
		valueStyle := normal
		if slot.Value > 0 {
			valueStyle = active
		}
		entry := label.Render(fmt.Sprintf("S%-2d ", slot.Sensor)) +
			valueStyle.Render(fmt.Sprintf("%3d %s", slot.Value, telemetry.FormatBits(slot.Value)))
		line.WriteString(entry)
		if (i+1)%perRow == 0 || i == snapshot.Len()-1 {
			lines = append(lines, line.String())
			line.Reset()
		} else {
			line.WriteString("  ")
		}
	}
	return strings.Join(lines, "\n")
}

func (model Model) renderStatus(snapshot *state.Snapshot) string {
	values := snapshot.Values()
	quality := telemetry.Grade(values)
	if snapshot.Version() == 0 {
		quality = telemetry.QualityNoData
	}
	summary := telemetry.Summarize(values)

	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	parts := []string{
		lipgloss.NewStyle().Foreground(model.theme.QualityColor(quality)).Render(string(quality)),
		faint.Render(fmt.Sprintf("mean %.1f  min %d  max %d  lit %d", summary.Mean, summary.Min, summary.Max, snapshot.ActiveSegments())),
	}
	if model.status != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(model.theme.NormalText).Render(model.status))
	}

	var help []string
	for _, binding := range []key.Binding{model.keys.ResetCamera, model.keys.ToggleTable, model.keys.Export, model.keys.Quit} {
		h := binding.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	parts = append(parts, faint.Render("drag to orbit · "+strings.Join(help, " · ")))
	return strings.Join(parts, "  ")
}
