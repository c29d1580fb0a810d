package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const (
	DefaultVolume = 80
	MaxVolume     = 100
)

// VolumeController validates and applies volume changes and caches the last
// value that was applied successfully.
type VolumeController struct {
	mixer Mixer
	log   zerolog.Logger

	setMu   sync.Mutex // serializes hardware applies
	current atomic.Int32
}

func NewVolumeController(m Mixer, log zerolog.Logger) *VolumeController {
	if m == nil {
		m = nullMixer{}
	}
	return &VolumeController{
		mixer: m,
		log:   log,
	}
}

// Set applies percent to the mixer. Out of range values are reported and
// leave the cached volume untouched, as does a failed apply.
func (v *VolumeController) Set(percent int) error {
	if percent < 0 || percent > MaxVolume {
		v.log.Error().Int("volume", percent).Msg("Volume must be between 0 and 100")
		return fmt.Errorf("%w: got %d", ErrVolumeOutOfRange, percent)
	}

	v.setMu.Lock()
	defer v.setMu.Unlock()

	if err := v.mixer.SetVolume(percent); err != nil {
		return fmt.Errorf("failed to apply volume: %w", err)
	}
	v.current.Store(int32(percent))
	v.log.Debug().Int("volume", percent).Msg("Volume applied")
	return nil
}

// Get returns the cached volume without touching the device.
func (v *VolumeController) Get() int {
	return int(v.current.Load())
}

// scaleVolume maps a percentage onto a mixer element's raw range.
func scaleVolume(percent int, min, max int64) int64 {
	raw := int64(percent) * max / MaxVolume
	if raw < min {
		return min
	}
	if raw > max {
		return max
	}
	return raw
}
