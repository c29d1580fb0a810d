//go:build cgo && !noaudio

package audio

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

func init() {
	RegisterBackend("malgo", Backend{Open: openMalgo, List: listMalgo})
}

// malgoPendingChunks bounds how many device callbacks may be waiting for
// ReadFrames before the device is considered overrun.
const malgoPendingChunks = 16

// malgoDevice adapts miniaudio's callback model to blocking reads.
type malgoDevice struct {
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	frames   int
	channels int
	timeout  time.Duration
	log      zerolog.Logger

	chunks  chan []int16
	pending []int16
	overrun atomic.Bool
}

func openMalgo(name string, p Params, log zerolog.Logger) (Device, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	free := func() {
		_ = mctx.Uninit()
		mctx.Free()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(p.Channels)
	deviceConfig.SampleRate = uint32(p.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(p.Period / time.Millisecond)
	deviceConfig.Alsa.NoMMap = 1

	if name != "" && name != "default" {
		infos, err := mctx.Devices(malgo.Capture)
		if err != nil {
			free()
			return nil, fmt.Errorf("failed to enumerate devices: %w", err)
		}
		found := false
		for _, info := range infos {
			if info.Name() == name {
				deviceConfig.Capture.DeviceID = info.ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			free()
			return nil, fmt.Errorf("device not found: %s", name)
		}
	}

	d := &malgoDevice{
		ctx:      mctx,
		frames:   p.PeriodFrames(),
		channels: p.Channels,
		timeout:  10 * p.Period,
		log:      log,
		chunks:   make(chan []int16, malgoPendingChunks),
	}

	callbacks := malgo.DeviceCallbacks{
		Data: d.onData,
	}
	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		free()
		return nil, fmt.Errorf("failed to initialize device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		free()
		return nil, fmt.Errorf("failed to start device: %w", err)
	}
	d.device = device

	log.Info().
		Str("device", name).
		Int("rate", p.SampleRate).
		Int("period_frames", d.frames).
		Msg("Capture device negotiated")

	return d, nil
}

func (d *malgoDevice) onData(_, input []byte, _ uint32) {
	samples := decodeS16LE(input)
	select {
	case d.chunks <- samples:
	default:
		d.overrun.Store(true)
	}
}

func (d *malgoDevice) BufferFrames() int {
	return d.frames
}

func (d *malgoDevice) Channels() int {
	return d.channels
}

func (d *malgoDevice) ReadFrames(buf []int16) (int, error) {
	n := copy(buf, d.pending)
	d.pending = d.pending[n:]

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	for n < len(buf) {
		if d.overrun.Swap(false) {
			return 0, &DeviceError{Op: "read", Err: ErrOverrun}
		}
		select {
		case chunk := <-d.chunks:
			c := copy(buf[n:], chunk)
			n += c
			d.pending = chunk[c:]
		case <-timer.C:
			return 0, &DeviceError{Op: "read", Err: ErrReadTimeout}
		}
	}
	return n / d.channels, nil
}

// Recover discards audio that piled up during the fault. A stalled device
// is restarted.
func (d *malgoDevice) Recover(err error) error {
	d.pending = nil
	for drained := false; !drained; {
		select {
		case <-d.chunks:
		default:
			drained = true
		}
	}

	if errors.Is(err, ErrReadTimeout) {
		if serr := d.device.Stop(); serr != nil {
			d.log.Debug().Err(serr).Msg("Device stop during recovery")
		}
		if serr := d.device.Start(); serr != nil {
			return &DeviceError{Op: "restart", Err: serr}
		}
	}
	return nil
}

func (d *malgoDevice) Close() error {
	if d.device == nil {
		return nil
	}
	err := d.device.Stop()
	d.device.Uninit()
	d.device = nil
	_ = d.ctx.Uninit()
	d.ctx.Free()
	return err
}

func listMalgo() ([]DeviceInfo, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, DeviceInfo{
			Name:    info.Name(),
			Default: info.IsDefault > 0,
		})
	}
	return devices, nil
}
