// Package metrics exposes viewer counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"levelview/internal/state"
	"levelview/internal/telemetry"
)

const namespace = "levelview"

// Metrics holds the viewer's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	FramesApplied   *prometheus.CounterVec
	FramesHeld      prometheus.Counter
	ActiveSegments  prometheus.Gauge
	SnapshotVersion prometheus.Gauge
	SensorLevel     *prometheus.GaugeVec
	Quality         *prometheus.GaugeVec
	RenderTicks     prometheus.Counter
	DrawErrors      prometheus.Counter
	TickDuration    prometheus.Histogram
}

var qualities = []telemetry.Quality{
	telemetry.QualityNoData,
	telemetry.QualityInvalid,
	telemetry.QualityPoor,
	telemetry.QualityFair,
	telemetry.QualityGood,
	telemetry.QualityExcellent,
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FramesApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "frames",
				Name:      "applied_total",
				Help:      "Frames published to the state store",
			},
			[]string{"valid"},
		),
		FramesHeld: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "frames",
				Name:      "held_total",
				Help:      "Cycles without a value where the previous snapshot was kept",
			},
		),
		ActiveSegments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "snapshot",
				Name:      "active_segments",
				Help:      "Lit segments in the current snapshot",
			},
		),
		SnapshotVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "snapshot",
				Name:      "version",
				Help:      "Version of the current snapshot",
			},
		),
		SensorLevel: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sensor",
				Name:      "level",
				Help:      "Raw 8-bit level reading per sensor",
			},
			[]string{"sensor"},
		),
		Quality: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "snapshot",
				Name:      "quality",
				Help:      "1 for the current quality grade, 0 for the others",
			},
			[]string{"grade"},
		),
		RenderTicks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "render",
				Name:      "ticks_total",
				Help:      "Render loop ticks",
			},
		),
		DrawErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "render",
				Name:      "draw_errors_total",
				Help:      "Draw calls that failed",
			},
		),
		TickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "render",
				Name:      "tick_duration_seconds",
				Help:      "Time spent composing and drawing one tick",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
			},
		),
	}

	m.registry.MustRegister(
		m.FramesApplied,
		m.FramesHeld,
		m.ActiveSegments,
		m.SnapshotVersion,
		m.SensorLevel,
		m.Quality,
		m.RenderTicks,
		m.DrawErrors,
		m.TickDuration,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSnapshot is a state store hook.
func (m *Metrics) ObserveSnapshot(snapshot *state.Snapshot, _ string) {
	valid := "true"
	if !snapshot.Valid() {
		valid = "false"
	}
	m.FramesApplied.WithLabelValues(valid).Inc()
	m.ActiveSegments.Set(float64(snapshot.ActiveSegments()))
	m.SnapshotVersion.Set(float64(snapshot.Version()))

	for i := 0; i < snapshot.Len(); i++ {
		slot := snapshot.Slot(i)
		m.SensorLevel.WithLabelValues(sensorLabel(slot.Sensor)).Set(float64(slot.Value))
	}

	grade := telemetry.Grade(snapshot.Values())
	for _, q := range qualities {
		value := 0.0
		if q == grade {
			value = 1
		}
		m.Quality.WithLabelValues(string(q)).Set(value)
	}
}

// FrameHeld counts a cycle that reported no value.
func (m *Metrics) FrameHeld() {
	m.FramesHeld.Inc()
}

// ObserveTick implements render.Recorder.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.RenderTicks.Inc()
	m.TickDuration.Observe(d.Seconds())
}

// ObserveDrawError implements render.Recorder.
func (m *Metrics) ObserveDrawError() {
	m.DrawErrors.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs a metrics endpoint on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *logrus.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdown)
	}()

	logger.WithField("addr", addr).Info("Serving metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func sensorLabel(sensor int) string {
	return "S" + strconv.Itoa(sensor)
}
