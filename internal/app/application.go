package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"levelview/internal/camera"
	"levelview/internal/export"
	"levelview/internal/logging"
	"levelview/internal/metrics"
	"levelview/internal/recorder"
	"levelview/internal/source"
	"levelview/internal/state"
	"levelview/internal/telemetry"
	"levelview/internal/topology"
	"levelview/internal/tui"
)

// Application represents the main application
type Application struct {
	config   Config
	logger   *logrus.Logger
	topo     *topology.Topology
	store    *state.Store
	metrics  *metrics.Metrics
	recorder *recorder.Recorder
	rotator  *logging.Rotator
	wg       sync.WaitGroup
}

// NewApplication validates config and builds the store and metrics.
func NewApplication(config Config) (*Application, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	topo, err := config.Topology()
	if err != nil {
		return nil, err
	}

	app := &Application{
		config:  config,
		logger:  logger,
		topo:    topo,
		store:   state.NewStore(topo, logger),
		metrics: metrics.New(),
	}
	app.store.OnApply(app.metrics.ObserveSnapshot)
	return app, nil
}

// Logger returns the application logger.
func (app *Application) Logger() *logrus.Logger {
	return app.logger
}

// Store returns the state store.
func (app *Application) Store() *state.Store {
	return app.store
}

// apply hands one frame to the store.
func (app *Application) apply(frame string) {
	if !app.store.ApplyFrame(frame) {
		app.metrics.FrameHeld()
	}
}

// buildSource creates the configured frame source.
func (app *Application) buildSource() (source.Source, string, error) {
	cfg := app.config.Source
	count := app.topo.SensorCount()

	switch cfg.Kind {
	case SourceSerial:
		src := source.NewSerial(source.SerialConfig{
			Path:        cfg.Serial.Port,
			BaudRate:    cfg.Serial.BaudRate,
			SensorCount: count,
			HoldZero:    cfg.HoldZero,
		}, nil, app.logger)
		return src, "serial:" + cfg.Serial.Port, nil

	case SourceModbus:
		src := source.NewModbus(source.ModbusConfig{
			Endpoint:    cfg.Modbus.Endpoint,
			SlaveID:     cfg.Modbus.UnitID,
			Address:     cfg.Modbus.Address,
			SensorCount: count,
			Interval:    cfg.Modbus.Interval,
			Timeout:     cfg.Modbus.Timeout,
		}, app.logger)
		return src, "modbus:" + cfg.Modbus.Endpoint, nil

	case SourceFile:
		file, err := os.Open(cfg.File)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open capture: %w", err)
		}
		return source.NewReader(file, count, cfg.Interval, app.logger), "file:" + cfg.File, nil
	}
	return nil, "", fmt.Errorf("unknown source kind %q", cfg.Kind)
}

// View runs the interactive viewer on the configured source.
func (app *Application) View() error {
	src, name, err := app.buildSource()
	if err != nil {
		return err
	}
	return app.run(src, name, app.config.Record)
}

// Replay runs the viewer on a recorded session.
func (app *Application) Replay(session string) error {
	id, err := uuid.Parse(session)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", session, err)
	}
	rec, err := recorder.Open(app.config.RecordPath, app.logger)
	if err != nil {
		return err
	}
	recorded, err := rec.Frames(id)
	if closeErr := rec.Close(); closeErr != nil {
		app.logger.WithError(closeErr).Warn("Failed to close recorder")
	}
	if err != nil {
		return err
	}
	if len(recorded) == 0 {
		return fmt.Errorf("session %s has no frames", id)
	}

	frames := make([]string, len(recorded))
	for i, frame := range recorded {
		frames[i] = frame.Frame
	}
	return app.run(source.NewFrames(frames, app.config.Source.Interval), "replay:"+id.String(), false)
}

// run owns the terminal until the user quits or a signal arrives.
func (app *Application) run(src source.Source, name string, record bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := app.redirectLogs(); err != nil {
		return err
	}
	defer app.shutdown(src)

	app.logger.WithFields(logrus.Fields{
		"version": Version,
		"source":  name,
		"sensors": app.topo.SensorCount(),
		"fps":     app.config.FPS,
	}).Info("Starting level viewer")

	if record {
		if err := app.startRecording(name); err != nil {
			return err
		}
	}
	if app.config.MetricsAddr != "" {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := app.metrics.Serve(ctx, app.config.MetricsAddr, app.logger); err != nil {
				app.logger.WithError(err).Error("Metrics endpoint failed")
			}
		}()
	}

	sourceDone := make(chan error, 1)
	model := tui.NewModel(app.store, camera.NewController(app.config.Camera), app.logger, tui.Options{
		FPS:        app.config.FPS,
		Export:     app.exportSnapshot,
		Apply:      app.apply,
		SourceDone: sourceDone,
		Recorder:   app.metrics,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	// frames are applied by the program's update loop, never here
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		err := source.Run(ctx, src, func(frame string) {
			program.Send(tui.FrameMsg(frame))
		})
		if err != nil {
			app.logger.WithError(err).Error("Telemetry source stopped")
		}
		sourceDone <- err
		close(sourceDone)
	}()
	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	final, err := program.Run()
	if m, ok := final.(tui.Model); ok {
		m.Loop().Stop()
	}
	cancel()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("viewer failed: %w", err)
	}
	return nil
}

// redirectLogs sends the logger to the rotating file while the terminal
// is in use.
func (app *Application) redirectLogs() error {
	diagnostics := logrus.New()
	diagnostics.SetLevel(logrus.WarnLevel)

	rotator, err := logging.NewRotator(app.config.LogDir, "levelview", app.config.LogRotateUTC, diagnostics)
	if err != nil {
		return fmt.Errorf("failed to initialize log rotator: %w", err)
	}
	app.rotator = rotator
	app.logger.SetOutput(rotator)
	return nil
}

func (app *Application) startRecording(name string) error {
	rec, err := recorder.Open(app.config.RecordPath, app.logger)
	if err != nil {
		return err
	}
	if _, err := rec.Begin(name, app.topo.SensorCount()); err != nil {
		if closeErr := rec.Close(); closeErr != nil {
			app.logger.WithError(closeErr).Warn("Failed to close recorder")
		}
		return err
	}
	app.recorder = rec
	app.store.OnApply(rec.Hook())
	return nil
}

// shutdown closes the source and waits for background work.
func (app *Application) shutdown(src source.Source) {
	if err := src.Close(); err != nil {
		app.logger.WithError(err).Warn("Failed to close source")
	}
	app.wg.Wait()

	if app.recorder != nil {
		if err := app.recorder.Close(); err != nil {
			app.logger.WithError(err).Warn("Failed to close recorder")
		}
	}
	app.logger.Info("Level viewer stopped")
	if app.rotator != nil {
		app.logger.SetOutput(os.Stderr)
		if err := app.rotator.Close(); err != nil {
			app.logger.WithError(err).Warn("Failed to close log rotator")
		}
	}
}

// exportSnapshot writes snapshot to the export directory.
func (app *Application) exportSnapshot(snapshot *state.Snapshot) (string, error) {
	path := export.Filename(app.config.ExportDir, snapshot)
	if err := export.WritePNG(path, app.topo, snapshot); err != nil {
		return "", err
	}
	app.logger.WithFields(logrus.Fields{
		"path":    path,
		"version": snapshot.Version(),
	}).Info("Exported snapshot")
	return path, nil
}

// Decode applies frame and prints the per-slot readings.
func (app *Application) Decode(w io.Writer, frame string) error {
	if err := telemetry.Check(frame, app.topo.SensorCount()); err != nil {
		return err
	}
	app.store.ApplyFrame(frame)
	snapshot := app.store.Current()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tROW\tSENSOR\tVALUE\tBITS")
	for i := 0; i < snapshot.Len(); i++ {
		slot := snapshot.Slot(i)
		fmt.Fprintf(tw, "%d\t%d\tS%d\t%d\t%s\n", slot.Slot, app.topo.Slot(i).Row, slot.Sensor, slot.Value, telemetry.FormatBits(slot.Value))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	values := snapshot.Values()
	summary := telemetry.Summarize(values)
	_, err := fmt.Fprintf(w, "\nquality=%s active=%d/%d mean=%.1f min=%d max=%d segments=%d\n",
		telemetry.Grade(values), summary.Active, summary.Count, summary.Mean, summary.Min, summary.Max, snapshot.ActiveSegments())
	return err
}

// Export writes a PNG of a literal frame, or of frame seq of a recorded
// session (the last one when seq is 0).
func (app *Application) Export(out, frame, session string, seq int) error {
	if frame == "" {
		if session == "" {
			return errors.New("export needs a frame or a session")
		}
		var err error
		if frame, err = app.recordedFrame(session, seq); err != nil {
			return err
		}
	}
	if !app.store.ApplyFrame(frame) {
		return errors.New("nothing to export")
	}
	snapshot := app.store.Current()
	if !snapshot.Valid() {
		return fmt.Errorf("frame is malformed: %w", telemetry.Check(frame, app.topo.SensorCount()))
	}
	if out == "" {
		out = export.Filename(app.config.ExportDir, snapshot)
	}
	if err := export.WritePNG(out, app.topo, snapshot); err != nil {
		return err
	}
	app.logger.WithField("path", out).Info("Exported snapshot")
	return nil
}

func (app *Application) recordedFrame(session string, seq int) (string, error) {
	id, err := uuid.Parse(session)
	if err != nil {
		return "", fmt.Errorf("invalid session id %q: %w", session, err)
	}
	rec, err := recorder.Open(app.config.RecordPath, app.logger)
	if err != nil {
		return "", err
	}
	defer rec.Close()

	frames, err := rec.Frames(id)
	if err != nil {
		return "", err
	}
	if len(frames) == 0 {
		return "", fmt.Errorf("session %s has no frames", id)
	}
	if seq == 0 {
		return frames[len(frames)-1].Frame, nil
	}
	for _, frame := range frames {
		if frame.Seq == seq {
			return frame.Frame, nil
		}
	}
	return "", fmt.Errorf("session %s has no frame %d", id, seq)
}

// Sessions lists recorded sessions.
func (app *Application) Sessions(w io.Writer) error {
	rec, err := recorder.Open(app.config.RecordPath, app.logger)
	if err != nil {
		return err
	}
	defer rec.Close()

	sessions, err := rec.Sessions()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTARTED\tSOURCE\tSENSORS\tFRAMES")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), s.Source, s.SensorCount, s.Frames)
	}
	return tw.Flush()
}
