package app

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelview/internal/recorder"
	"levelview/internal/source"
	"levelview/internal/telemetry"
	"levelview/internal/topology"
)

func newTestApplication(t *testing.T, mutate func(*Config)) *Application {
	t.Helper()
	config := Default()
	dir := t.TempDir()
	config.RecordPath = filepath.Join(dir, "levels.db")
	config.ExportDir = dir
	config.LogDir = filepath.Join(dir, "logs")
	if mutate != nil {
		mutate(&config)
	}

	app, err := NewApplication(config)
	require.NoError(t, err)
	app.logger.SetOutput(io.Discard)
	return app
}

// TestConstants tests the default configuration constants
func TestConstants(t *testing.T) {
	config := Default()
	assert.Equal(t, 30, config.FPS)
	assert.Equal(t, SourceSerial, config.Source.Kind)
	assert.Equal(t, "/dev/ttyUSB0", config.Source.Serial.Port)
	assert.Equal(t, 9600, config.Source.Serial.BaudRate)
	assert.True(t, config.LogRotateUTC)
	assert.False(t, config.Record)
	assert.True(t, config.Source.HoldZero)
	assert.NoError(t, config.Validate())
}

// TestLoadFile tests YAML loading over the defaults
func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levelview.yaml")
	content := `
fps: 20
source:
  kind: modbus
  modbus:
    endpoint: 10.0.0.5:502
    unit_id: 3
    address: 100
    interval: 250ms
camera:
  min_height: 3
record: true
metrics_addr: ":9108"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	assert.Equal(t, 20, config.FPS)
	assert.Equal(t, SourceModbus, config.Source.Kind)
	assert.Equal(t, ModbusConfig{
		Endpoint: "10.0.0.5:502",
		UnitID:   3,
		Address:  100,
		Interval: 250 * time.Millisecond,
		Timeout:  source.DefaultModbusTimeout,
	}, config.Source.Modbus)
	assert.Equal(t, 3.0, config.Camera.MinHeight)
	assert.Equal(t, 15.0, config.Camera.MaxHeight)
	assert.True(t, config.Record)
	assert.Equal(t, ":9108", config.MetricsAddr)
	if diff := cmp.Diff(topology.DefaultTable(), config.Layout); diff != "" {
		t.Errorf("layout changed (-want +got):\n%s", diff)
	}

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("fps: [1"), 0644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

// TestConfig_Validate tests configuration validation
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero fps", func(c *Config) { c.FPS = 0 }, "fps 0"},
		{"fps too high", func(c *Config) { c.FPS = 500 }, "fps 500"},
		{"camera bounds", func(c *Config) { c.Camera.MinHeight = 20 }, "min height"},
		{"layout", func(c *Config) { c.Layout.Permutation[0] = 1 }, "layout"},
		{"serial port", func(c *Config) { c.Source.Serial.Port = "" }, "serial source needs a port"},
		{"modbus endpoint", func(c *Config) { c.Source.Kind = SourceModbus }, "modbus source needs an endpoint"},
		{"file", func(c *Config) { c.Source.Kind = SourceFile }, "file source needs a file"},
		{"kind", func(c *Config) { c.Source.Kind = "carrier-pigeon" }, "unknown source kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

// TestNewApplication tests the application constructor
func TestNewApplication(t *testing.T) {
	app := newTestApplication(t, nil)
	assert.NotNil(t, app.Logger())
	assert.Equal(t, 24, app.topo.SensorCount())
	assert.Equal(t, uint64(0), app.Store().Current().Version())

	config := Default()
	config.FPS = -1
	_, err := NewApplication(config)
	assert.ErrorContains(t, err, "invalid configuration")
}

// TestApplication_LoggerConfiguration tests logger setup
func TestApplication_LoggerConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		level   logrus.Level
	}{
		{"Verbose logging", true, logrus.DebugLevel},
		{"Normal logging", false, logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApplication(t, func(c *Config) { c.Verbose = tt.verbose })
			assert.Equal(t, tt.level, app.Logger().GetLevel())
		})
	}
}

// TestApplication_BuildSource tests source selection
func TestApplication_BuildSource(t *testing.T) {
	capture := filepath.Join(t.TempDir(), "capture.txt")
	require.NoError(t, os.WriteFile(capture, []byte("ALL="+strings.Repeat("1", 192)+"\n"), 0644))

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantName string
		wantType any
	}{
		{"serial", nil, "serial:/dev/ttyUSB0", &source.Serial{}},
		{"modbus", func(c *Config) {
			c.Source.Kind = SourceModbus
			c.Source.Modbus.Endpoint = "10.0.0.5:502"
		}, "modbus:10.0.0.5:502", &source.Modbus{}},
		{"file", func(c *Config) {
			c.Source.Kind = SourceFile
			c.Source.File = capture
		}, "file:" + capture, &source.Reader{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApplication(t, tt.mutate)
			src, name, err := app.buildSource()
			require.NoError(t, err)
			defer src.Close()
			assert.Equal(t, tt.wantName, name)
			assert.IsType(t, tt.wantType, src)
		})
	}

	app := newTestApplication(t, func(c *Config) {
		c.Source.Kind = SourceFile
		c.Source.File = filepath.Join(t.TempDir(), "missing.txt")
	})
	_, _, err := app.buildSource()
	assert.Error(t, err)
}

// TestApplication_FileSourceIntoStore tests the source to store path
func TestApplication_FileSourceIntoStore(t *testing.T) {
	capture := filepath.Join(t.TempDir(), "capture.txt")
	lines := []string{
		"ALL=" + strings.Repeat("1", 192),
		"NA",
		"ALL=" + strings.Repeat("0", 184) + "00000011",
	}
	require.NoError(t, os.WriteFile(capture, []byte(strings.Join(lines, "\n")), 0644))

	app := newTestApplication(t, func(c *Config) {
		c.Source.Kind = SourceFile
		c.Source.File = capture
		c.Source.Interval = 0
	})
	src, _, err := app.buildSource()
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, source.Run(t.Context(), src, app.apply))

	snapshot := app.Store().Current()
	assert.Equal(t, uint64(2), snapshot.Version())
	assert.Equal(t, uint8(3), snapshot.Slot(topology.Default().SlotOf(24)).Value)
	assert.Equal(t, 2, snapshot.ActiveSegments())
}

// TestApplication_Decode tests the decode report
func TestApplication_Decode(t *testing.T) {
	app := newTestApplication(t, nil)
	frame := strings.Repeat("0", 184) + "11111111"

	var out bytes.Buffer
	require.NoError(t, app.Decode(&out, frame))

	report := out.String()
	assert.Contains(t, report, "SLOT")
	assert.Regexp(t, `22\s+7\s+S24\s+255\s+11111111`, report)
	assert.Contains(t, report, "quality=poor active=1/24")

	err := app.Decode(&out, "10")
	assert.True(t, errors.Is(err, telemetry.ErrFrameLength))
}

// TestApplication_Export tests PNG export from a literal frame and a session
func TestApplication_Export(t *testing.T) {
	app := newTestApplication(t, nil)
	out := filepath.Join(t.TempDir(), "levels.png")

	require.NoError(t, app.Export(out, strings.Repeat("1", 192), "", 0))
	assert.FileExists(t, out)

	assert.Error(t, app.Export(out, "", "", 0))
	assert.Error(t, app.Export(out, "0101", "", 0))
	assert.Error(t, app.Export(out, "", "not-a-uuid", 0))

	// record a session, then export its frames
	rec, err := recorder.Open(app.config.RecordPath, app.logger)
	require.NoError(t, err)
	id, err := rec.Begin("test", 24)
	require.NoError(t, err)
	fresh := newTestApplication(t, nil)
	fresh.Store().OnApply(rec.Hook())
	fresh.Store().ApplyFrame(strings.Repeat("1", 192))
	fresh.Store().ApplyFrame(strings.Repeat("0", 192))
	require.NoError(t, rec.Close())

	require.NoError(t, app.Export("", "", id.String(), 0))
	assert.Equal(t, 0, app.Store().Current().ActiveSegments())

	require.NoError(t, app.Export(out, "", id.String(), 1))
	assert.Equal(t, 192, app.Store().Current().ActiveSegments())

	assert.ErrorContains(t, app.Export(out, "", id.String(), 9), "no frame 9")

	matches, err := filepath.Glob(filepath.Join(app.config.ExportDir, "levels-*.png"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

// TestApplication_ExportSnapshot tests the viewer export key handler
func TestApplication_ExportSnapshot(t *testing.T) {
	app := newTestApplication(t, nil)
	app.Store().ApplyFrame(strings.Repeat("1", 192))

	path, err := app.exportSnapshot(app.Store().Current())
	require.NoError(t, err)
	assert.Equal(t, app.config.ExportDir, filepath.Dir(path))
	assert.FileExists(t, path)
}

// TestApplication_Sessions tests the session listing
func TestApplication_Sessions(t *testing.T) {
	app := newTestApplication(t, nil)
	require.NoError(t, app.startRecording("serial:/dev/ttyUSB0"))
	app.Store().ApplyFrame(strings.Repeat("1", 192))
	require.NoError(t, app.recorder.Close())

	var out bytes.Buffer
	require.NoError(t, app.Sessions(&out))
	assert.Contains(t, out.String(), "SESSION")
	assert.Regexp(t, `serial:/dev/ttyUSB0\s+24\s+1`, out.String())
}

// TestApplication_Replay tests argument checks before the viewer starts
func TestApplication_Replay(t *testing.T) {
	app := newTestApplication(t, nil)
	assert.ErrorContains(t, app.Replay("nope"), "invalid session id")
	assert.ErrorContains(t, app.Replay("6f1c1c0e-3b7a-4d55-9b0e-0d1f3c9a1e42"), "has no frames")
}

// TestShowVersion tests the version display functionality
func TestShowVersion(t *testing.T) {
	var out bytes.Buffer
	ShowVersion(&out)
	assert.Contains(t, out.String(), "Version: "+Version)
	assert.Contains(t, out.String(), "Git Commit: ")
}
