package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"levelview/internal/app"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Flags are bound to one Config;
// a --config file is loaded under them, so flags given on the command
// line win over the file.
func newRootCmd(stdout io.Writer) *cobra.Command {
	config := app.Default()
	var configPath string

	newApp := func() (*app.Application, error) {
		return app.NewApplication(config)
	}

	rootCmd := &cobra.Command{
		Use:   "levelview",
		Short: "Live 3D view of tank level sensors",
		Long: `Live 3D view of a tank's level sensor rods.

Reads packed 8-bit level frames from a serial board, a Modbus TCP gateway
or a capture file, and draws each sensor as a stack of eight segments in
its physical rod position. Drag with the mouse to orbit the camera.

Example usage:
  levelview --port /dev/ttyUSB0
  levelview --source modbus --modbus 10.0.0.5:502 --record
  levelview decode 0000000100000010...`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return nil
			}
			return loadUnderFlags(cmd.Flags(), configPath, &config)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ShowVersion {
				app.ShowVersion(stdout)
				return nil
			}
			application, err := newApp()
			if err != nil {
				return err
			}
			return application.View()
		},
	}

	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	persistent.StringVarP(&config.LogDir, "log-dir", "l", config.LogDir, "Log directory")
	persistent.BoolVarP(&config.LogRotateUTC, "utc", "u", config.LogRotateUTC, "Use UTC for log rotation")
	persistent.BoolVarP(&config.Verbose, "verbose", "v", config.Verbose, "Verbose logging")
	persistent.StringVar(&config.RecordPath, "db", config.RecordPath, "Recording database")
	persistent.StringVar(&config.ExportDir, "export-dir", config.ExportDir, "Directory for exported PNGs")

	viewFlags := func(flags *pflag.FlagSet) {
		flags.StringVarP(&config.Source.Kind, "source", "s", config.Source.Kind, "Frame source: serial, modbus or file")
		flags.StringVarP(&config.Source.Serial.Port, "port", "p", config.Source.Serial.Port, "Serial port")
		flags.IntVarP(&config.Source.Serial.BaudRate, "baud", "b", config.Source.Serial.BaudRate, "Serial baud rate")
		flags.StringVar(&config.Source.Modbus.Endpoint, "modbus", config.Source.Modbus.Endpoint, "Modbus TCP endpoint (host:port)")
		flags.Uint8Var(&config.Source.Modbus.UnitID, "unit-id", config.Source.Modbus.UnitID, "Modbus unit id")
		flags.Uint16Var(&config.Source.Modbus.Address, "address", config.Source.Modbus.Address, "First holding register")
		flags.DurationVar(&config.Source.Modbus.Interval, "poll", config.Source.Modbus.Interval, "Modbus poll interval")
		flags.StringVarP(&config.Source.File, "file", "f", config.Source.File, "Capture file to replay")
		flags.DurationVar(&config.Source.Interval, "interval", config.Source.Interval, "Delay between replayed frames")
		flags.BoolVar(&config.Source.HoldZero, "hold-zero", config.Source.HoldZero, "Keep the last reading when the board sends all zeros (--hold-zero=false to show them)")
		flags.IntVar(&config.FPS, "fps", config.FPS, "Display refresh rate")
		flags.BoolVar(&config.Record, "record", config.Record, "Record frames to the database")
		flags.StringVar(&config.MetricsAddr, "metrics-addr", config.MetricsAddr, "Serve Prometheus metrics on this address")
	}
	viewFlags(rootCmd.Flags())
	rootCmd.Flags().BoolVar(&config.ShowVersion, "version", false, "Show version information")

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Open the live viewer (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			return application.View()
		},
	}
	viewFlags(viewCmd.Flags())

	decodeCmd := &cobra.Command{
		Use:   "decode <frame>",
		Short: "Print the per-sensor readings of one frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			return application.Decode(stdout, args[0])
		},
	}

	var exportOut, exportFrame, exportSession string
	var exportSeq int
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write a PNG of a frame or a recorded session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			return application.Export(exportOut, exportFrame, exportSession, exportSeq)
		},
	}
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (default: generated name in --export-dir)")
	exportCmd.Flags().StringVar(&exportFrame, "frame", "", "Frame to export")
	exportCmd.Flags().StringVar(&exportSession, "session", "", "Recorded session to export from")
	exportCmd.Flags().IntVar(&exportSeq, "seq", 0, "Frame number within the session (default: last)")
	exportCmd.MarkFlagsMutuallyExclusive("frame", "session")

	replayCmd := &cobra.Command{
		Use:   "replay <session>",
		Short: "Replay a recorded session in the viewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			return application.Replay(args[0])
		},
	}
	replayCmd.Flags().DurationVar(&config.Source.Interval, "interval", config.Source.Interval, "Delay between replayed frames")
	replayCmd.Flags().IntVar(&config.FPS, "fps", config.FPS, "Display refresh rate")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			return application.Sessions(stdout)
		},
	}

	rootCmd.AddCommand(viewCmd, decodeCmd, exportCmd, replayCmd, sessionsCmd)
	return rootCmd
}

// loadUnderFlags replaces config with the file's contents, then re-applies
// every flag set on the command line.
func loadUnderFlags(flags *pflag.FlagSet, path string, config *app.Config) error {
	changed := map[string]string{}
	flags.Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	loaded, err := app.LoadFile(path)
	if err != nil {
		return err
	}
	*config = loaded

	var setErr error
	flags.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || setErr != nil {
			return
		}
		if err := f.Value.Set(changed[f.Name]); err != nil {
			setErr = fmt.Errorf("flag --%s: %w", f.Name, err)
		}
	})
	return setErr
}
