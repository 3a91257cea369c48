package render

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"levelview/internal/camera"
	"levelview/internal/state"
)

// ErrAlreadyRunning is returned by Start on a running loop.
var ErrAlreadyRunning = errors.New("render loop already running")

// Recorder receives per-tick measurements.
type Recorder interface {
	ObserveTick(duration time.Duration)
	ObserveDrawError()
}

// Stats summarizes the loop's activity.
type Stats struct {
	Running     bool
	Ticks       uint64
	Draws       uint64
	DrawErrors  uint64
	LastVersion uint64
}

// RenderContext is everything the loop owns between Start and Stop.
type RenderContext struct {
	surface Surface
	draw    DrawContext
	scene   *Scene
	frame   Frame
}

// Scene returns the scene being drawn.
func (rc *RenderContext) Scene() *Scene {
	return rc.scene
}

// Loop redraws the scene from the store once per display refresh,
// whether or not a new snapshot was published since the last tick.
type Loop struct {
	store     *state.Store
	camera    *camera.Controller
	scheduler Scheduler
	events    EventTarget
	logger    *logrus.Logger
	recorder  Recorder

	ctx       *RenderContext
	pending   FrameID
	listeners []ListenerID
	stats     Stats
}

// Option configures a Loop.
type Option func(*Loop)

// WithRecorder attaches a tick recorder.
func WithRecorder(recorder Recorder) Option {
	return func(l *Loop) {
		l.recorder = recorder
	}
}

// NewLoop creates a stopped loop.
func NewLoop(store *state.Store, controller *camera.Controller, scheduler Scheduler, events EventTarget, logger *logrus.Logger, opts ...Option) *Loop {
	loop := &Loop{
		store:     store,
		camera:    controller,
		scheduler: scheduler,
		events:    events,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(loop)
	}
	return loop
}

// Start acquires a draw context on surface, wires input listeners and
// schedules the first tick. Nothing is scheduled if acquisition fails.
func (l *Loop) Start(surface Surface) error {
	if l.stats.Running {
		return ErrAlreadyRunning
	}

	draw, err := surface.Acquire()
	if err != nil {
		return fmt.Errorf("failed to acquire draw context: %w", err)
	}

	l.ctx = &RenderContext{
		surface: surface,
		draw:    draw,
		scene:   NewScene(l.store.Topology()),
	}
	l.resize()
	l.listen()
	l.stats.Running = true
	l.pending = l.scheduler.RequestFrame(l.tick)

	width, height := surface.Size()
	l.logger.WithFields(logrus.Fields{
		"width":     width,
		"height":    height,
		"segments":  len(l.ctx.scene.Segments),
		"listeners": len(l.listeners),
	}).Info("Render loop started")
	return nil
}

// Stop cancels scheduling, removes every listener registered by Start and
// releases the draw context. Calling it again is a no-op.
func (l *Loop) Stop() {
	if !l.stats.Running {
		return
	}
	l.stats.Running = false

	if l.pending != 0 {
		l.scheduler.CancelFrame(l.pending)
		l.pending = 0
	}
	for _, id := range l.listeners {
		if err := l.events.RemoveListener(id); err != nil {
			l.logger.WithError(err).Warn("Failed to remove listener")
		}
	}
	l.listeners = nil
	l.camera.Cancel()

	if err := l.ctx.draw.Release(); err != nil {
		l.logger.WithError(err).Warn("Failed to release draw context")
	}
	l.ctx = nil

	l.logger.WithFields(logrus.Fields{
		"ticks": l.stats.Ticks,
		"draws": l.stats.Draws,
	}).Info("Render loop stopped")
}

// Running reports whether the loop is scheduled.
func (l *Loop) Running() bool {
	return l.stats.Running
}

// Stats returns a copy of the loop counters.
func (l *Loop) Stats() Stats {
	return l.stats
}

// Context returns the owned render context, nil while stopped.
func (l *Loop) Context() *RenderContext {
	return l.ctx
}

// tick is one draw cycle.
func (l *Loop) tick(now time.Time) {
	l.pending = 0
	if !l.stats.Running {
		return
	}
	started := time.Now()

	snapshot := l.store.Current()
	l.ctx.scene.Apply(snapshot)

	l.stats.Ticks++
	frame := l.compose(snapshot)
	if err := l.ctx.draw.Draw(frame); err != nil {
		l.stats.DrawErrors++
		l.logger.WithError(err).WithField("tick", l.stats.Ticks).Warn("Draw failed")
		if l.recorder != nil {
			l.recorder.ObserveDrawError()
		}
	} else {
		l.stats.Draws++
	}
	l.stats.LastVersion = snapshot.Version()

	if l.recorder != nil {
		l.recorder.ObserveTick(time.Since(started))
	}
	l.pending = l.scheduler.RequestFrame(l.tick)
}

// compose projects the scene through the current camera into the reused
// frame, sorted far to near.
func (l *Loop) compose(snapshot *state.Snapshot) *Frame {
	frame := &l.ctx.frame
	frame.Tick = l.stats.Ticks
	frame.Version = snapshot.Version()
	frame.Valid = snapshot.Valid()
	frame.View = l.camera.View()
	frame.Projection = l.camera.Projection()
	frame.Segments = frame.Segments[:0]

	projector := NewProjector(frame.View, frame.Projection)
	for _, segment := range l.ctx.scene.Segments {
		x, y, depth, scale, ok := projector.Project(segment.Center)
		if !ok {
			continue
		}
		frame.Segments = append(frame.Segments, ProjectedSegment{
			Segment: segment,
			X:       x,
			Y:       y,
			Depth:   depth,
			Scale:   scale,
		})
	}
	sort.SliceStable(frame.Segments, func(i, j int) bool {
		return frame.Segments[i].Depth > frame.Segments[j].Depth
	})
	return frame
}

// listen registers the pointer, touch and resize listeners.
func (l *Loop) listen() {
	press := func(event Event) {
		l.camera.Down(event.Kind.source(), event.X, event.Y)
	}
	move := func(event Event) {
		l.camera.Move(event.Kind.source(), event.X, event.Y)
	}
	release := func(event Event) {
		l.camera.Up(event.Kind.source())
	}

	l.listeners = append(l.listeners,
		l.events.AddListener(PointerDown, press),
		l.events.AddListener(PointerMove, move),
		l.events.AddListener(PointerUp, release),
		l.events.AddListener(TouchStart, press),
		l.events.AddListener(TouchMove, move),
		l.events.AddListener(TouchEnd, release),
		l.events.AddListener(Resize, func(Event) { l.resize() }),
	)
}

// resize copies the surface size into the projection.
func (l *Loop) resize() {
	width, height := l.ctx.surface.Size()
	l.camera.Resize(float64(width), float64(height))
}
