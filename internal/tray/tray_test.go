package tray

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/petems/audio-recorder/internal/app"
	"github.com/petems/audio-recorder/internal/audio"
)

// TestEmojiForStatus verifies the title indicator for each capture state.
// This tests the mapping only, not the systray rendering.
func TestEmojiForStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		expected string
	}{
		{name: "capturing", status: "capturing", expected: "🔴"},
		{name: "stopped", status: "stopped", expected: "🟢"},
		{name: "error", status: "error", expected: "⚪️"},
		{name: "unknown falls back to idle", status: "bogus", expected: "🟢"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := emojiForStatus(tt.status); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestStatusLabel(t *testing.T) {
	if got := statusLabel("capturing"); got != "Capturing" {
		t.Errorf("expected Capturing, got %s", got)
	}
	if got := statusLabel("error"); got != "Capture failed" {
		t.Errorf("expected Capture failed, got %s", got)
	}
	if got := statusLabel("stopped"); got != "Stopped" {
		t.Errorf("expected Stopped, got %s", got)
	}
}

// TestVolumePresetsInRange makes sure every menu entry is a volume the
// recorder accepts, including the default.
func TestVolumePresetsInRange(t *testing.T) {
	hasDefault := false
	for _, v := range volumePresets {
		if v < 0 || v > audio.MaxVolume {
			t.Errorf("preset %d outside [0,%d]", v, audio.MaxVolume)
		}
		if v == audio.DefaultVolume {
			hasDefault = true
		}
	}
	if !hasDefault {
		t.Errorf("presets %v do not include the default volume %d", volumePresets, audio.DefaultVolume)
	}

	if got := volumeTitle(80); got != "Volume: 80%" {
		t.Errorf("unexpected title %q", got)
	}
}

func TestAboutText(t *testing.T) {
	got := aboutText("v1.2.0", "abc123")
	if !strings.HasPrefix(got, "audio-recorder v1.2.0 (abc123)") {
		t.Errorf("unexpected about text %q", got)
	}
}

func TestNewWiresApp(t *testing.T) {
	application := app.New(app.Config{Logger: zerolog.Nop()})
	quit := false
	u := New(application, "dev", "unknown", zerolog.Nop(), func() { quit = true })

	if u.app != application {
		t.Fatal("tray does not drive the app it was created with")
	}
	u.onQuit()
	if !quit {
		t.Error("quit callback not wired")
	}
}
