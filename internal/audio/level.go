package audio

import (
	"encoding/binary"
	"math"
)

// Level summarizes the loudness of one buffer.
type Level struct {
	RMS  float64 // normalized to [0, 1]
	Peak float64 // normalized to [0, 1]
}

// silenceDBFS is reported for buffers with no energy at all.
const silenceDBFS = -96.0

// MeasureLevel computes the RMS and peak of 16-bit samples.
func MeasureLevel(samples []int16) Level {
	if len(samples) == 0 {
		return Level{}
	}

	var sum, peak float64
	for _, s := range samples {
		normalized := float64(s) / 32768.0
		sum += normalized * normalized
		if a := math.Abs(normalized); a > peak {
			peak = a
		}
	}

	return Level{
		RMS:  math.Sqrt(sum / float64(len(samples))),
		Peak: peak,
	}
}

// DBFS returns the RMS level in decibels relative to full scale.
func (l Level) DBFS() float64 {
	if l.RMS <= 0 {
		return silenceDBFS
	}
	db := 20 * math.Log10(l.RMS)
	if db < silenceDBFS {
		return silenceDBFS
	}
	return db
}

// decodeS16LE converts interleaved little-endian PCM bytes into samples.
// A trailing odd byte is ignored.
func decodeS16LE(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}
