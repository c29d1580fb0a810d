package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/petems/audio-recorder/internal/audio"
)

type Config struct {
	Audio   AudioConfig   `yaml:"audio"`
	Queue   QueueConfig   `yaml:"queue"`
	Capture CaptureConfig `yaml:"capture"`
	Mixer   MixerConfig   `yaml:"mixer"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tray    bool          `yaml:"tray"`
}

type AudioConfig struct {
	Backend string `yaml:"backend"` // "alsa", "portaudio" or "malgo"
	Device  string `yaml:"device"`  // backend device name, "default" if empty
}

type QueueConfig struct {
	Capacity int    `yaml:"capacity"` // buffers; 0 = unbounded
	Overflow string `yaml:"overflow"` // "drop-oldest", "drop-newest", "block"
}

type CaptureConfig struct {
	ShortRead string `yaml:"short_read"` // "pass", "pad", "drop"
}

type MixerConfig struct {
	Backend string `yaml:"backend"` // "alsa" or "none"
	Card    string `yaml:"card"`
	Element string `yaml:"element"`
	Volume  int    `yaml:"volume"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`   // empty = platform default, "-" = console only
	MaxKB int64  `yaml:"max_kb"` // rotation threshold
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // e.g. "127.0.0.1:9464"; empty disables
}

// Default returns the built-in configuration.
func Default() *Config {
	backend := "alsa"
	mixer := "alsa"
	if runtime.GOOS != "linux" {
		backend = "portaudio"
		mixer = "none"
	}

	return &Config{
		Audio: AudioConfig{
			Backend: backend,
			Device:  "default",
		},
		Queue: QueueConfig{
			Capacity: 200, // ~10s of 50ms buffers
			Overflow: audio.DropOldest.String(),
		},
		Capture: CaptureConfig{
			ShortRead: audio.ShortReadPass.String(),
		},
		Mixer: MixerConfig{
			Backend: mixer,
			Card:    "default",
			Element: "PCM",
			Volume:  audio.DefaultVolume,
		},
		Log: LogConfig{
			Level: "info",
			MaxKB: 1024,
		},
		Tray: false,
	}
}

// Load reads the config at path on top of the defaults. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the values that can't be enforced by the YAML schema.
func (c *Config) Validate() error {
	if c.Audio.Backend == "" {
		return errors.New("audio.backend must be set")
	}
	if c.Queue.Capacity < 0 {
		return fmt.Errorf("queue.capacity must not be negative, got %d", c.Queue.Capacity)
	}
	if _, err := c.OverflowPolicy(); err != nil {
		return err
	}
	if _, err := c.ShortReadPolicy(); err != nil {
		return err
	}
	if c.Mixer.Volume < 0 || c.Mixer.Volume > audio.MaxVolume {
		return fmt.Errorf("mixer.volume: %w", audio.ErrVolumeOutOfRange)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func (c *Config) OverflowPolicy() (audio.OverflowPolicy, error) {
	return audio.ParseOverflowPolicy(c.Queue.Overflow)
}

func (c *Config) ShortReadPolicy() (audio.ShortReadPolicy, error) {
	return audio.ParseShortReadPolicy(c.Capture.ShortRead)
}

// DefaultPath returns the platform-specific config file path
func DefaultPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "audio-recorder", "config.yaml")
}
