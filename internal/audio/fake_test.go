package audio

import (
	"errors"
	"sync"
	"time"
)

// readStep scripts one ReadFrames call. n < 0 means a full read.
type readStep struct {
	n   int
	err error
}

// fakeDevice stamps every sample of the i-th successful read with i, so
// tests can check ordering.
type fakeDevice struct {
	frames   int
	channels int
	delay    time.Duration

	mu         sync.Mutex
	script     []readStep
	seq        int16
	reads      int
	recovered  int
	recoverErr error
	closed     bool
}

func newFakeDevice(frames int, script ...readStep) *fakeDevice {
	return &fakeDevice{
		frames: frames,
		delay:  time.Millisecond,
		script: script,
	}
}

func (d *fakeDevice) BufferFrames() int { return d.frames }

func (d *fakeDevice) Channels() int { return max(d.channels, 1) }

func (d *fakeDevice) ReadFrames(buf []int16) (int, error) {
	time.Sleep(d.delay)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.reads++
	step := readStep{n: -1}
	if len(d.script) > 0 {
		step = d.script[0]
		d.script = d.script[1:]
	}
	if step.err != nil {
		return 0, step.err
	}

	ch := d.Channels()
	n := step.n
	if n < 0 || n > len(buf)/ch {
		n = len(buf) / ch
	}
	d.seq++
	for i := 0; i < n*ch; i++ {
		buf[i] = d.seq
	}
	return n, nil
}

func (d *fakeDevice) Recover(err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recovered++
	return d.recoverErr
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) recoveries() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recovered
}

var errFakeXrun = &DeviceError{Op: "readi", Code: -32, Err: errors.New("Broken pipe")}

type fakeMixer struct {
	mu      sync.Mutex
	applied []int
	err     error
}

func (m *fakeMixer) SetVolume(percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.applied = append(m.applied, percent)
	return nil
}

type countingObserver struct {
	mu         sync.Mutex
	buffers    int
	frames     int
	shortReads int
	recoveries int
}

func (o *countingObserver) BufferCaptured(frames int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buffers++
	o.frames += frames
}

func (o *countingObserver) ShortRead() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.shortReads++
}

func (o *countingObserver) Recovered() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recoveries++
}
