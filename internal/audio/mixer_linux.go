//go:build linux && cgo && !noaudio

package audio

/*
#cgo pkg-config: alsa
#include <alsa/asoundlib.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// alsaMixer drives a simple playback element. Every SetVolume call opens
// and closes its own mixer handle.
type alsaMixer struct {
	card    string
	element string
}

func newALSAMixer(card, element string) (Mixer, error) {
	if card == "" {
		card = "default"
	}
	if element == "" {
		element = "PCM"
	}
	return &alsaMixer{card: card, element: element}, nil
}

func (m *alsaMixer) SetVolume(percent int) error {
	var handle *C.snd_mixer_t
	if rc := C.snd_mixer_open(&handle, 0); rc < 0 {
		return alsaError("mixer open", rc)
	}
	defer C.snd_mixer_close(handle)

	card := C.CString(m.card)
	defer C.free(unsafe.Pointer(card))

	if rc := C.snd_mixer_attach(handle, card); rc < 0 {
		return alsaError("mixer attach "+m.card, rc)
	}
	if rc := C.snd_mixer_selem_register(handle, nil, nil); rc < 0 {
		return alsaError("mixer register", rc)
	}
	if rc := C.snd_mixer_load(handle); rc < 0 {
		return alsaError("mixer load", rc)
	}

	var sid *C.snd_mixer_selem_id_t
	if rc := C.snd_mixer_selem_id_malloc(&sid); rc < 0 {
		return alsaError("mixer selem id", rc)
	}
	defer C.snd_mixer_selem_id_free(sid)

	name := C.CString(m.element)
	defer C.free(unsafe.Pointer(name))

	C.snd_mixer_selem_id_set_index(sid, 0)
	C.snd_mixer_selem_id_set_name(sid, name)

	elem := C.snd_mixer_find_selem(handle, sid)
	if elem == nil {
		return fmt.Errorf("%w: %s on card %s", ErrMixerElementNotFound, m.element, m.card)
	}

	var min, max C.long
	if rc := C.snd_mixer_selem_get_playback_volume_range(elem, &min, &max); rc < 0 {
		return alsaError("get volume range", rc)
	}

	raw := scaleVolume(percent, int64(min), int64(max))
	if rc := C.snd_mixer_selem_set_playback_volume_all(elem, C.long(raw)); rc < 0 {
		return alsaError("set volume", rc)
	}
	return nil
}
