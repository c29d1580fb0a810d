package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/audio-recorder/internal/audio"
	"github.com/petems/audio-recorder/internal/config"
)

// Recorder is the capture pipeline driven by the app.
type Recorder interface {
	Start(ctx context.Context) error
	SetVolume(percent int) error
	Volume() int
	FrameSize() int
	NextReading(ctx context.Context) ([]int16, error)
	Done() <-chan struct{}
	Err() error
	Close() error
}

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetCapturing()
	SetStopped()
	SetError()
}

// LevelObserver receives the loudness of every consumed buffer.
type LevelObserver interface {
	ObserveLevel(audio.Level)
}

type Config struct {
	Recorder      Recorder
	Config        *config.Config
	ConfigPath    string
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil
	Levels        LevelObserver // Optional - can be nil
}

// levelLogInterval throttles level reports in the log.
const levelLogInterval = 5 * time.Second

type App struct {
	rec     Recorder
	cfgPath string
	log     zerolog.Logger
	status  StatusUpdater
	levels  LevelObserver

	mu        sync.Mutex
	cfg       *config.Config
	capturing bool
	lastLevel audio.Level
}

func New(cfg Config) *App {
	return &App{
		rec:     cfg.Recorder,
		cfg:     cfg.Config,
		cfgPath: cfg.ConfigPath,
		log:     cfg.Logger,
		status:  cfg.StatusUpdater,
		levels:  cfg.Levels,
	}
}

// SetStatusUpdater replaces the status updater (for circular dependency
// resolution with the tray).
func (a *App) SetStatusUpdater(s StatusUpdater) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s
}

func (a *App) statusUpdater() StatusUpdater {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Run starts capture and consumes buffers until ctx is done or capture
// stops. A capture failure is returned so the caller can treat it as
// fatal.
func (a *App) Run(ctx context.Context) error {
	if err := a.rec.Start(ctx); err != nil {
		if s := a.statusUpdater(); s != nil {
			s.SetError()
		}
		return err
	}

	a.mu.Lock()
	a.capturing = true
	a.mu.Unlock()
	if s := a.statusUpdater(); s != nil {
		s.SetCapturing()
	}

	a.log.Info().
		Int("frame_size", a.rec.FrameSize()).
		Int("volume", a.rec.Volume()).
		Msg("Capturing audio")

	err := a.consume(ctx)

	a.mu.Lock()
	a.capturing = false
	a.mu.Unlock()

	if err != nil {
		if s := a.statusUpdater(); s != nil {
			s.SetError()
		}
		return err
	}
	if s := a.statusUpdater(); s != nil {
		s.SetStopped()
	}
	return nil
}

func (a *App) consume(ctx context.Context) error {
	var (
		lastLog time.Time
		count   int
	)
	for {
		buf, err := a.rec.NextReading(ctx)
		switch {
		case errors.Is(err, audio.ErrQueueClosed):
			return a.rec.Err()
		case ctx.Err() != nil:
			return nil
		case err != nil:
			return fmt.Errorf("failed to read next buffer: %w", err)
		}

		count++
		level := audio.MeasureLevel(buf)

		a.mu.Lock()
		a.lastLevel = level
		a.mu.Unlock()

		if a.levels != nil {
			a.levels.ObserveLevel(level)
		}

		if now := time.Now(); now.Sub(lastLog) >= levelLogInterval {
			lastLog = now
			a.log.Debug().
				Int("buffers", count).
				Int("frames", len(buf)).
				Float64("dbfs", level.DBFS()).
				Float64("peak", level.Peak).
				Msg("Input level")
		}
	}
}

// ApplyConfig reacts to a reloaded config file. Only the volume can change
// while capturing; everything else needs a restart.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.mu.Lock()
	old := a.cfg
	a.cfg = cfg
	a.mu.Unlock()

	// Only an edit of the volume itself overrides what the tray applied.
	if old == nil || old.Mixer.Volume != cfg.Mixer.Volume {
		if err := a.rec.SetVolume(cfg.Mixer.Volume); err != nil {
			a.log.Error().Err(err).Msg("Failed to apply volume from config")
		} else {
			a.log.Info().Int("volume", cfg.Mixer.Volume).Msg("Volume changed")
		}
	}

	if old != nil && (old.Audio != cfg.Audio || old.Queue != cfg.Queue || old.Capture != cfg.Capture) {
		a.log.Warn().Msg("Audio, queue and capture settings take effect after a restart")
	}
}

// Tray actions

// SetVolume applies and persists a new volume.
func (a *App) SetVolume(percent int) error {
	if err := a.rec.SetVolume(percent); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cfg == nil || a.cfgPath == "" {
		return nil
	}
	a.cfg.Mixer.Volume = percent
	return a.cfg.Save(a.cfgPath)
}

func (a *App) Volume() int {
	return a.rec.Volume()
}

func (a *App) IsCapturing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capturing
}

// Level returns the loudness of the last consumed buffer.
func (a *App) Level() audio.Level {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastLevel
}

func (a *App) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- a.rec.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
