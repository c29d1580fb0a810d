package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/audio-recorder/internal/config"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "recorder.log")

	log, closer, err := New(config.LogConfig{Level: "debug", File: path, MaxKB: 64})
	require.NoError(t, err)

	log.Info().Str("device", "default").Msg("Capture device negotiated")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Capture device negotiated")
	assert.Contains(t, string(data), `"device":"default"`)
}

func TestNewAppliesLevel(t *testing.T) {
	log, closer, err := New(config.LogConfig{Level: "warn", File: "-"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "chatty", File: "-"})
	assert.Error(t, err)
}
