package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/petems/audio-recorder/internal/app"
	"github.com/petems/audio-recorder/internal/audio"
	"github.com/petems/audio-recorder/internal/config"
	"github.com/petems/audio-recorder/internal/logging"
	"github.com/petems/audio-recorder/internal/metrics"
	"github.com/petems/audio-recorder/internal/permissions"
	"github.com/petems/audio-recorder/internal/recorder"
	"github.com/petems/audio-recorder/internal/tray"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

const shutdownTimeout = 5 * time.Second

var (
	flagConfig      = flag.String("config", config.DefaultPath(), "Path to the config file")
	flagBackend     = flag.String("backend", "", "Capture backend, overrides the config file")
	flagDevice      = flag.String("device", "", "Capture device, overrides the config file")
	flagLogLevel    = flag.String("loglevel", "", "Log level, overrides the config file")
	flagNoTray      = flag.Bool("notray", false, "Run without the tray icon")
	flagListDevices = flag.Bool("listdevices", false, "List capture devices of the selected backend and exit")
	flagVersion     = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *flagVersion {
		fmt.Printf("audio-recorder %s (%s)\n", Version, Commit)
		return
	}

	// Load config from XDG/Library/AppData
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		// Use console logger if config fails to load
		log := logging.Console()
		log.Fatal().Err(err).Str("path", *flagConfig).Msg("Failed to load config")
	}
	applyFlags(cfg)

	log, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		console := logging.Console()
		console.Fatal().Err(err).Msg("Failed to initialize logging")
	}
	defer logCloser.Close()

	if *flagListDevices {
		listDevices(cfg.Audio.Backend)
		return
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Recorder stopped")
	}
	log.Info().Msg("Stopped")
}

func applyFlags(cfg *config.Config) {
	if *flagBackend != "" {
		cfg.Audio.Backend = *flagBackend
	}
	if *flagDevice != "" {
		cfg.Audio.Device = *flagDevice
	}
	if *flagLogLevel != "" {
		cfg.Log.Level = *flagLogLevel
	}
	if *flagNoTray {
		cfg.Tray = false
	}
}

func listDevices(backend string) {
	devices, err := audio.ListDevices(backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to list %s devices: %v\n", backend, err)
		os.Exit(1)
	}
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Printf("%s %-30s %s\n", marker, d.Name, d.Description)
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsurePermissions(); err != nil {
		return fmt.Errorf("required permissions not granted: %w", err)
	}

	overflow, err := cfg.OverflowPolicy()
	if err != nil {
		return err
	}
	shortRead, err := cfg.ShortReadPolicy()
	if err != nil {
		return err
	}

	mixer, err := audio.NewMixer(cfg.Mixer.Backend, cfg.Mixer.Card, cfg.Mixer.Element)
	if err != nil {
		return fmt.Errorf("failed to initialize mixer: %w", err)
	}

	m := metrics.New()
	rec := recorder.New(recorder.Config{
		Open:          recorder.OpenBackend(cfg.Audio.Backend, cfg.Audio.Device, log),
		Mixer:         mixer,
		DefaultVolume: cfg.Mixer.Volume,
		QueueCapacity: cfg.Queue.Capacity,
		Overflow:      overflow,
		ShortRead:     shortRead,
		Observer:      m,
		Logger:        log,
	})
	m.Watch(rec)

	application := app.New(app.Config{
		Recorder:   rec,
		Config:     cfg,
		ConfigPath: *flagConfig,
		Logger:     log,
		Levels:     m,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return application.Run(gctx)
	})
	g.Go(func() error {
		err := config.Watch(gctx, *flagConfig, log, application.ApplyConfig)
		if err != nil {
			log.Warn().Err(err).Msg("Config changes will not be picked up")
		}
		return nil
	})
	if cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return m.Serve(gctx, cfg.Metrics.Listen, log)
		})
	}

	log.Info().
		Str("backend", cfg.Audio.Backend).
		Str("device", cfg.Audio.Device).
		Str("version", Version).
		Msg("audio-recorder starting...")

	if cfg.Tray {
		trayUI := tray.New(application, Version, Commit, log, stop)
		application.SetStatusUpdater(trayUI)

		// Start tray UI - MUST run on main thread
		if err := trayUI.Run(gctx); err != nil {
			log.Error().Err(err).Msg("Tray error")
		}
		stop()
	}

	err = g.Wait()

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := application.Shutdown(shutdownCtx); serr != nil {
		log.Error().Err(serr).Msg("Shutdown error")
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
