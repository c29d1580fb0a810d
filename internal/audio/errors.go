package audio

import (
	"errors"
	"fmt"
)

var (
	ErrBackendUnavailable   = errors.New("audio backend not available in this build")
	ErrMixerUnavailable     = errors.New("mixer not available in this build")
	ErrMixerElementNotFound = errors.New("mixer element not found")
	ErrVolumeOutOfRange     = errors.New("volume must be between 0 and 100")
	ErrQueueClosed          = errors.New("frame queue closed")
	ErrCaptureFailed        = errors.New("capture failed")
	ErrOverrun              = errors.New("capture overrun")
	ErrReadTimeout          = errors.New("capture read timed out")
)

// DeviceError is a fault reported by a capture or mixer backend. Code holds
// the backend's native status (a negative errno for ALSA).
type DeviceError struct {
	Op   string
	Code int
	Err  error
}

func (e *DeviceError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %v (%d)", e.Op, e.Err, e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
