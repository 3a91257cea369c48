package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelview/internal/render"
	"levelview/internal/state"
	"levelview/internal/topology"
)

var _ render.Recorder = (*Metrics)(nil)

func TestObserveSnapshot(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := New()
	store := state.NewStore(topology.Default(), logger)
	store.OnApply(m.ObserveSnapshot)

	store.ApplyFrame(strings.Repeat("0", 184) + "11111111")
	store.ApplyFrame("bad")
	store.ApplyFrame(strings.Repeat("1", 192))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesApplied.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesApplied.WithLabelValues("false")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SnapshotVersion))
	assert.Equal(t, 192.0, testutil.ToFloat64(m.ActiveSegments))
	assert.Equal(t, 255.0, testutil.ToFloat64(m.SensorLevel.WithLabelValues("S24")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Quality.WithLabelValues("excellent")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Quality.WithLabelValues("invalid")))
}

func TestRecorder(t *testing.T) {
	m := New()
	m.ObserveTick(2 * time.Millisecond)
	m.ObserveTick(3 * time.Millisecond)
	m.ObserveDrawError()
	m.FrameHeld()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RenderTicks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DrawErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesHeld))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TickDuration))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveTick(time.Millisecond)

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "levelview_render_ticks_total 1")
}
