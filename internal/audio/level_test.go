package audio

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeS16LE(t *testing.T) {
	input := []byte{
		0x01, 0x00,
		0xff, 0xff,
		0x00, 0x80,
		0xff, 0x7f,
		0x42, // trailing odd byte
	}

	got := decodeS16LE(input)
	assert.Equal(t, []int16{1, -1, math.MinInt16, math.MaxInt16}, got)
}

func TestMeasureLevelSilence(t *testing.T) {
	l := MeasureLevel(make([]int16, 128))
	assert.Zero(t, l.RMS)
	assert.Zero(t, l.Peak)
	assert.Equal(t, silenceDBFS, l.DBFS())

	assert.Equal(t, Level{}, MeasureLevel(nil))
}

func TestMeasureLevelFullScale(t *testing.T) {
	samples := make([]int16, 100)
	for i := range samples {
		samples[i] = math.MinInt16
	}

	l := MeasureLevel(samples)
	assert.InDelta(t, 1.0, l.RMS, 1e-9)
	assert.InDelta(t, 1.0, l.Peak, 1e-9)
	assert.InDelta(t, 0.0, l.DBFS(), 1e-6)
}

func TestMeasureLevelHalfScale(t *testing.T) {
	samples := []int16{16384, -16384, 16384, -16384}
	l := MeasureLevel(samples)
	assert.InDelta(t, 0.5, l.RMS, 1e-9)
	assert.InDelta(t, -6.0206, l.DBFS(), 1e-3)
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 44100, p.SampleRate)
	assert.Equal(t, 1, p.Channels)
	assert.Equal(t, 50*time.Millisecond, p.Period)
	assert.True(t, p.SoftResample)
	assert.Equal(t, 2205, p.PeriodFrames())
}

func TestOpenRegisteredBackend(t *testing.T) {
	dev := newFakeDevice(8)
	RegisterBackend("fake", Backend{
		Open: func(name string, p Params, log zerolog.Logger) (Device, error) {
			return dev, nil
		},
		List: func() ([]DeviceInfo, error) {
			return []DeviceInfo{{Name: "fake0", Default: true}}, nil
		},
	})

	assert.Contains(t, Backends(), "fake")

	got, err := Open("fake", "", DefaultParams(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 8, got.BufferFrames())

	devices, err := ListDevices("fake")
	require.NoError(t, err)
	assert.Equal(t, "fake0", devices[0].Name)

	_, err = Open("does-not-exist", "", DefaultParams(), zerolog.Nop())
	require.ErrorIs(t, err, ErrBackendUnavailable)
}
