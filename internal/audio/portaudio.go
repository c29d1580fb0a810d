//go:build cgo && !noaudio

package audio

import (
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

func init() {
	RegisterBackend("portaudio", Backend{Open: openPortAudio, List: listPortAudio})
}

type portAudioDevice struct {
	stream *portaudio.Stream
	buf      []int16
	frames   int
	channels int
	log      zerolog.Logger
}

func openPortAudio(name string, p Params, log zerolog.Logger) (Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	device, err := findPortAudioDevice(name)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	// Blocking stream: one Read fills exactly one period.
	frames := p.PeriodFrames()
	buf := make([]int16, frames*p.Channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: p.Channels,
			Latency:  p.Period,
		},
		SampleRate:      float64(p.SampleRate),
		FramesPerBuffer: frames,
	}, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}

	log.Info().
		Str("device", device.Name).
		Int("rate", p.SampleRate).
		Int("period_frames", frames).
		Msg("Capture device negotiated")

	return &portAudioDevice{
		stream:   stream,
		buf:      buf,
		frames:   frames,
		channels: p.Channels,
		log:      log,
	}, nil
}

func findPortAudioDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" || name == "default" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

func (d *portAudioDevice) BufferFrames() int {
	return d.frames
}

func (d *portAudioDevice) Channels() int {
	return d.channels
}

func (d *portAudioDevice) ReadFrames(buf []int16) (int, error) {
	if err := d.stream.Read(); err != nil {
		return 0, &DeviceError{Op: "read", Err: err}
	}
	n := copy(buf, d.buf)
	return n / d.channels, nil
}

// Recover restarts the stream unless the fault was a plain input overflow,
// which PortAudio already got past on its own.
func (d *portAudioDevice) Recover(err error) error {
	if errors.Is(err, portaudio.InputOverflowed) {
		return nil
	}
	if serr := d.stream.Stop(); serr != nil {
		d.log.Debug().Err(serr).Msg("Stream stop during recovery")
	}
	if serr := d.stream.Start(); serr != nil {
		return &DeviceError{Op: "restart", Err: serr}
	}
	return nil
}

func (d *portAudioDevice) Close() error {
	if d.stream == nil {
		return nil
	}
	d.stream.Stop()
	err := d.stream.Close()
	d.stream = nil
	portaudio.Terminate()
	return err
}

func listPortAudio() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultDevice, _ := portaudio.DefaultInputDevice()
	result := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, DeviceInfo{
				Name:        d.Name,
				Description: d.HostApi.Name,
				Default:     d == defaultDevice,
			})
		}
	}
	return result, nil
}
