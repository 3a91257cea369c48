package recorder

import (
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelview/internal/state"
	"levelview/internal/topology"
)

func openTest(t *testing.T) (*Recorder, *state.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rec, err := Open(filepath.Join(t.TempDir(), "levels.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })
	return rec, state.NewStore(topology.Default(), logger)
}

func TestRecorder_NoSession(t *testing.T) {
	rec, store := openTest(t)
	assert.ErrorIs(t, rec.Record(store.Current(), ""), ErrNoSession)
}

func TestRecorder_RecordAndRead(t *testing.T) {
	rec, store := openTest(t)
	store.OnApply(rec.Hook())

	id, err := rec.Begin("serial:/dev/ttyUSB0", 24)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	ones := strings.Repeat("1", 192)
	store.ApplyFrame(ones)
	store.ApplyFrame("0101")
	store.ApplyFrame("")

	frames, err := rec.Frames(id)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	assert.Equal(t, 1, frames[0].Seq)
	assert.Equal(t, uint64(1), frames[0].Version)
	assert.True(t, frames[0].Valid)
	assert.Equal(t, ones, frames[0].Frame)
	assert.Equal(t, 192, frames[0].ActiveSegments)
	assert.False(t, frames[0].AppliedAt.IsZero())

	assert.Equal(t, 2, frames[1].Seq)
	assert.False(t, frames[1].Valid)
	assert.Equal(t, "0101", frames[1].Frame)
	assert.Equal(t, 0, frames[1].ActiveSegments)

	sessions, err := rec.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].ID)
	assert.Equal(t, "serial:/dev/ttyUSB0", sessions[0].Source)
	assert.Equal(t, 24, sessions[0].SensorCount)
	assert.Equal(t, 2, sessions[0].Frames)
}

func TestRecorder_Sessions(t *testing.T) {
	rec, store := openTest(t)

	first, err := rec.Begin("replay", 24)
	require.NoError(t, err)
	store.ApplyFrame(strings.Repeat("0", 192))
	require.NoError(t, rec.Record(store.Current(), strings.Repeat("0", 192)))

	second, err := rec.Begin("modbus:10.0.0.5:502", 24)
	require.NoError(t, err)

	sessions, err := rec.Sessions()
	require.NoError(t, err)
	counts := map[uuid.UUID]int{}
	for _, session := range sessions {
		counts[session.ID] = session.Frames
	}
	assert.Equal(t, map[uuid.UUID]int{first: 1, second: 0}, counts)

	frames, err := rec.Frames(second)
	require.NoError(t, err)
	assert.Empty(t, frames)

	frames, err = rec.Frames(uuid.New())
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestRecorder_Reopen(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	path := filepath.Join(t.TempDir(), "levels.db")

	rec, err := Open(path, logger)
	require.NoError(t, err)
	id, err := rec.Begin("replay", 24)
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	rec, err = Open(path, logger)
	require.NoError(t, err)
	defer rec.Close()

	sessions, err := rec.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].ID)
}
