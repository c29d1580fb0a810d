//go:build linux && cgo && !noaudio

package audio

/*
#cgo pkg-config: alsa
#include <alsa/asoundlib.h>
#include <stdlib.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/rs/zerolog"
)

func init() {
	RegisterBackend("alsa", Backend{Open: openALSA, List: listALSA})
	RegisterMixer("alsa", newALSAMixer)
}

type alsaDevice struct {
	pcm      *C.snd_pcm_t
	name     string
	frames   int
	channels int
}

func alsaError(op string, rc C.int) *DeviceError {
	return &DeviceError{
		Op:   op,
		Code: int(rc),
		Err:  errors.New(C.GoString(C.snd_strerror(rc))),
	}
}

// openALSA opens name for blocking interleaved capture and lets
// snd_pcm_set_params pick the hardware configuration closest to p.
func openALSA(name string, p Params, log zerolog.Logger) (Device, error) {
	if name == "" {
		name = "default"
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var pcm *C.snd_pcm_t
	if rc := C.snd_pcm_open(&pcm, cname, C.SND_PCM_STREAM_CAPTURE, 0); rc < 0 {
		return nil, alsaError("open "+name, rc)
	}

	resample := C.int(0)
	if p.SoftResample {
		resample = 1
	}
	rc := C.snd_pcm_set_params(pcm,
		C.SND_PCM_FORMAT_S16_LE,
		C.SND_PCM_ACCESS_RW_INTERLEAVED,
		C.uint(p.Channels),
		C.uint(p.SampleRate),
		resample,
		C.uint(p.Period/time.Microsecond))
	if rc < 0 {
		C.snd_pcm_close(pcm)
		return nil, alsaError("set params", rc)
	}

	var bufferSize, periodSize C.snd_pcm_uframes_t
	if rc := C.snd_pcm_get_params(pcm, &bufferSize, &periodSize); rc < 0 {
		C.snd_pcm_close(pcm)
		return nil, alsaError("get params", rc)
	}
	if periodSize == 0 {
		C.snd_pcm_close(pcm)
		return nil, fmt.Errorf("device %s reported a zero period size", name)
	}

	log.Info().
		Str("device", name).
		Int("rate", p.SampleRate).
		Int("channels", p.Channels).
		Uint64("buffer_frames", uint64(bufferSize)).
		Uint64("period_frames", uint64(periodSize)).
		Msg("Capture device negotiated")

	return &alsaDevice{
		pcm:      pcm,
		name:     name,
		frames:   int(periodSize),
		channels: p.Channels,
	}, nil
}

func (d *alsaDevice) BufferFrames() int {
	return d.frames
}

func (d *alsaDevice) Channels() int {
	return d.channels
}

func (d *alsaDevice) ReadFrames(buf []int16) (int, error) {
	frames := len(buf) / d.channels
	if frames == 0 {
		return 0, nil
	}
	n := C.snd_pcm_readi(d.pcm, unsafe.Pointer(&buf[0]), C.snd_pcm_uframes_t(frames))
	if n < 0 {
		return 0, alsaError("readi", C.int(n))
	}
	return int(n), nil
}

// Recover hands the error code back to snd_pcm_recover, which handles
// overruns and suspends by re-preparing the stream.
func (d *alsaDevice) Recover(err error) error {
	var derr *DeviceError
	if !errors.As(err, &derr) || derr.Code >= 0 {
		return fmt.Errorf("cannot recover from %w", err)
	}
	if rc := C.snd_pcm_recover(d.pcm, C.int(derr.Code), 1); rc < 0 {
		return alsaError("recover", rc)
	}
	return nil
}

func (d *alsaDevice) Close() error {
	if d.pcm == nil {
		return nil
	}
	rc := C.snd_pcm_close(d.pcm)
	d.pcm = nil
	if rc < 0 {
		return alsaError("close "+d.name, rc)
	}
	return nil
}

// listALSA walks the PCM name hints and keeps the ones usable for input.
func listALSA() ([]DeviceInfo, error) {
	iface := C.CString("pcm")
	defer C.free(unsafe.Pointer(iface))

	var hints *unsafe.Pointer
	if rc := C.snd_device_name_hint(-1, iface, &hints); rc < 0 {
		return nil, alsaError("device name hint", rc)
	}
	defer C.snd_device_name_free_hint(hints)

	var devices []DeviceInfo
	for p := hints; *p != nil; p = (*unsafe.Pointer)(unsafe.Add(unsafe.Pointer(p), unsafe.Sizeof(*p))) {
		ioid := hintValue(*p, "IOID")
		// A missing IOID means the device works in both directions.
		if ioid != "" && ioid != "Input" {
			continue
		}
		name := hintValue(*p, "NAME")
		if name == "" {
			continue
		}
		devices = append(devices, DeviceInfo{
			Name:        name,
			Description: hintValue(*p, "DESC"),
			Default:     name == "default",
		})
	}
	return devices, nil
}

func hintValue(hint unsafe.Pointer, key string) string {
	ckey := C.CString(key)
	defer C.free(unsafe.Pointer(ckey))

	v := C.snd_device_name_get_hint(hint, ckey)
	if v == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(v))
	return C.GoString(v)
}
