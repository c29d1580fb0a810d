package audio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Device is an open capture stream whose parameters have already been
// negotiated with the driver.
type Device interface {
	// BufferFrames returns the hardware period size in frames. It is queried
	// once at open time and never changes for the lifetime of the device.
	BufferFrames() int
	// Channels returns the number of interleaved samples per frame.
	Channels() int
	// ReadFrames blocks until up to len(buf)/Channels() frames were captured
	// and returns the number of frames read.
	ReadFrames(buf []int16) (int, error)
	// Recover resets the device after a fault returned by ReadFrames.
	Recover(err error) error
	Close() error
}

// Mixer applies a playback volume. Implementations must not hold any
// connection to the audio subsystem between calls.
type Mixer interface {
	SetVolume(percent int) error
}

// DeviceInfo describes a capture device a backend can open
type DeviceInfo struct {
	Name        string
	Description string
	Default     bool
}

// Params are the stream parameters negotiated at open time. The sample
// format is always signed 16-bit little-endian.
type Params struct {
	SampleRate   int
	Channels     int
	Period       time.Duration
	SoftResample bool
}

// DefaultParams returns the fixed capture parameters: mono 44.1kHz with a
// 50ms buffer period.
func DefaultParams() Params {
	return Params{
		SampleRate:   44100,
		Channels:     1,
		Period:       50 * time.Millisecond,
		SoftResample: true,
	}
}

// PeriodFrames returns the number of frames covered by one buffer period.
func (p Params) PeriodFrames() int {
	return int(int64(p.SampleRate) * int64(p.Period) / int64(time.Second))
}

// Backend opens devices of one audio API.
type Backend struct {
	Open func(name string, p Params, log zerolog.Logger) (Device, error)
	List func() ([]DeviceInfo, error)
}

var (
	registryMu sync.RWMutex
	backends   = map[string]Backend{}
	mixers     = map[string]func(card, element string) (Mixer, error){
		"none": func(string, string) (Mixer, error) { return nullMixer{}, nil },
	}
)

// RegisterBackend makes a capture backend available under name.
func RegisterBackend(name string, b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = b
}

// RegisterMixer makes a mixer implementation available under name.
func RegisterMixer(name string, fn func(card, element string) (Mixer, error)) {
	registryMu.Lock()
	defer registryMu.Unlock()
	mixers[name] = fn
}

// Backends returns the names of the capture backends compiled into this
// build.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupBackend(name string) (Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	b, ok := backends[name]
	if !ok {
		return Backend{}, fmt.Errorf("%w: %q", ErrBackendUnavailable, name)
	}
	return b, nil
}

// Open opens the named capture device through the given backend.
func Open(backend, name string, p Params, log zerolog.Logger) (Device, error) {
	b, err := lookupBackend(backend)
	if err != nil {
		return nil, err
	}
	return b.Open(name, p, log)
}

// ListDevices returns the capture devices the given backend can see.
func ListDevices(backend string) ([]DeviceInfo, error) {
	b, err := lookupBackend(backend)
	if err != nil {
		return nil, err
	}
	if b.List == nil {
		return nil, fmt.Errorf("backend %q cannot enumerate devices", backend)
	}
	return b.List()
}

// NewMixer returns the mixer registered under backend, bound to the given
// card and playback element.
func NewMixer(backend, card, element string) (Mixer, error) {
	registryMu.RLock()
	fn, ok := mixers[backend]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMixerUnavailable, backend)
	}
	return fn(card, element)
}

// nullMixer accepts every volume without touching any hardware.
type nullMixer struct{}

func (nullMixer) SetVolume(int) error { return nil }
