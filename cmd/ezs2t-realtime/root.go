package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/EzS2T-Realtime/internal/config"
	"github.com/yok-tottii/EzS2T-Realtime/internal/logger"
	"github.com/yok-tottii/EzS2T-Realtime/internal/session"
	"github.com/yok-tottii/EzS2T-Realtime/internal/transcriber"
)

type rootFlags struct {
	configPath string
	logLevel   string
	noDenoise  bool
}

// env is the resolved configuration shared by every command. Flag
// overrides live here, not in cfg, so they are never written back to disk.
type env struct {
	cfg        *config.Config
	configPath string
	level      logger.Level
	noDenoise  bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "ezs2t-realtime",
		Short: "Realtime speech-to-text from the menu bar",
		Long: `ezs2t-realtime streams microphone audio to the ElevenLabs realtime
speech-to-text service and types partial and committed transcripts into the
focused application. Without a subcommand it starts the menu-bar app.`,
		Example: `  ezs2t-realtime
  ezs2t-realtime listen --no-denoise
  ezs2t-realtime devices`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTray(cmd.Context(), &flags)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to the config file (default: ~/Library/Application Support/EzS2T-Realtime/config.json)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides log_level)")
	pf.BoolVar(&flags.noDenoise, "no-denoise", false, "Disable noise suppression for this run")

	cmd.AddCommand(newTrayCmd(&flags))
	cmd.AddCommand(newListenCmd(&flags))
	cmd.AddCommand(newDevicesCmd(&flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newTrayCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tray",
		Short: "Run the menu-bar app (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTray(cmd.Context(), flags)
		},
	}
}

// load reads the config file and applies the flags
func (f *rootFlags) load() (*env, error) {
	path := f.configPath
	if path == "" {
		path = config.GetConfigPath()
	} else {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return nil, err
		}
		path = expanded
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	levelName := cfg.LogLevel
	if f.logLevel != "" {
		levelName = f.logLevel
	}
	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:        cfg,
		configPath: path,
		level:      level,
		noDenoise:  f.noDenoise,
	}, nil
}

// sessionOptions maps the current settings onto session options. Logger
// and metrics are left for the caller.
func (e *env) sessionOptions() session.Options {
	cfg := e.cfg.Clone()

	opts := session.DefaultOptions()
	opts.Audio.DeviceID = cfg.AudioDeviceID
	opts.Audio.TargetSampleRate = cfg.SampleRate
	opts.Audio.NoiseSuppression = cfg.NoiseSuppression && !e.noDenoise
	opts.Transcriber = transcriber.Config{
		APIKey:       cfg.APIKey,
		LanguageCode: cfg.LanguageCode,
		VADEnabled:   cfg.VADEnabled,
		VADThreshold: cfg.VADSilenceThreshold,
	}
	opts.FrameQueueSize = cfg.FrameQueueSize
	return opts
}
