// SPDX-License-Identifier: MIT
package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"fdaudio/internal/build"
	"fdaudio/internal/config"
)

// Options is the fully resolved result of parsing command-line
// arguments: the merged Config plus the one-off Command name (empty for
// the default "run the pipeline" behavior).
type Options struct {
	Cfg       *config.Config
	Command   string
	Dashboard bool
}

// ParseArgs builds the CLI (adapted from the teacher's cobra wiring:
// root command runs the pipeline, "list" enumerates devices) and returns
// the resolved Options. Flag defaults come from config.Defaults(); an
// explicit --config file, if given, is loaded first and CLI flags the
// user actually passed override it. ENV_* overrides are applied last,
// before validation.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	def := config.Defaults()
	opts := &Options{Cfg: &def}

	var configPath string

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return finalizeOptions(cmd, opts, configPath)
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = "list"
			return finalizeOptions(cmd, opts, configPath)
		},
	}
	rootCmd.AddCommand(listCmd)

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "Interactively pick a device using the terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = "devices"
			return finalizeOptions(cmd, opts, configPath)
		},
	}
	rootCmd.AddCommand(devicesCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&opts.Dashboard, "dashboard", false,
		"Show a live terminal dashboard of pipeline diagnostics while running")

	rootCmd.PersistentFlags().IntVarP(&opts.Cfg.Audio.InputDevice, "input-device", "i", def.Audio.InputDevice,
		"Capture device ID (use 'list' to see available devices)")
	rootCmd.PersistentFlags().IntVarP(&opts.Cfg.Audio.OutputDevice, "output-device", "o", def.Audio.OutputDevice,
		"Playback device ID (use 'list' to see available devices)")
	rootCmd.PersistentFlags().IntVarP(&opts.Cfg.Audio.FramesPerBuffer, "frames-per-buffer", "b", def.Audio.FramesPerBuffer,
		"Frames per buffer at 48kHz (must be a multiple of 3)")
	rootCmd.PersistentFlags().BoolVarP(&opts.Cfg.Audio.LowLatency, "low-latency", "l", def.Audio.LowLatency,
		"Request low-latency device parameters")

	rootCmd.PersistentFlags().BoolVarP(&opts.Cfg.Recording.Enabled, "record", "r", def.Recording.Enabled,
		"Record the captured 48kHz stream to a debug WAV file")
	rootCmd.PersistentFlags().StringVar(&opts.Cfg.Recording.OutputFile, "output", def.Recording.OutputFile,
		"Debug recording output file. Default is capture-DD-MM-YYYY-HHMMSS.wav")

	rootCmd.PersistentFlags().BoolVarP(&opts.Cfg.Debug, "verbose", "v", def.Debug,
		"Enable verbose (debug level) logging")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return opts, nil
}

func finalizeOptions(cmd *cobra.Command, opts *Options, configPath string) error {
	if configPath != "" {
		fileCfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		overlayChangedFlags(cmd, opts.Cfg, fileCfg)
		opts.Cfg = fileCfg
	}

	if opts.Cfg.Recording.Enabled && opts.Cfg.Recording.OutputFile == "" {
		opts.Cfg.Recording.OutputFile = "capture-" + time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}

	opts.Cfg.ApplyEnvOverrides()
	return opts.Cfg.Validate()
}

// overlayChangedFlags applies flags the user explicitly passed on top of
// a config freshly loaded from file, so "--config base.yaml --record"
// behaves as "base.yaml, but recording forced on" rather than discarding
// the flag.
func overlayChangedFlags(cmd *cobra.Command, flagCfg, fileCfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("input-device") {
		fileCfg.Audio.InputDevice = flagCfg.Audio.InputDevice
	}
	if flags.Changed("output-device") {
		fileCfg.Audio.OutputDevice = flagCfg.Audio.OutputDevice
	}
	if flags.Changed("frames-per-buffer") {
		fileCfg.Audio.FramesPerBuffer = flagCfg.Audio.FramesPerBuffer
	}
	if flags.Changed("low-latency") {
		fileCfg.Audio.LowLatency = flagCfg.Audio.LowLatency
	}
	if flags.Changed("record") {
		fileCfg.Recording.Enabled = flagCfg.Recording.Enabled
	}
	if flags.Changed("output") {
		fileCfg.Recording.OutputFile = flagCfg.Recording.OutputFile
	}
	if flags.Changed("verbose") {
		fileCfg.Debug = flagCfg.Debug
	}
}
