// Package recorder exposes captured audio to consumers at the device's
// native buffer granularity and controls the output volume.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/audio-recorder/internal/audio"
)

var (
	ErrAlreadyStarted = errors.New("recorder already started")
	ErrNotStarted     = errors.New("recorder not started")
)

// Config wires a Recorder to its device and mixer.
type Config struct {
	// Open opens and negotiates the capture device. Start calls it once.
	Open          func() (audio.Device, error)
	Mixer         audio.Mixer
	DefaultVolume int
	QueueCapacity int
	Overflow      audio.OverflowPolicy
	ShortRead     audio.ShortReadPolicy
	Observer      audio.Observer // Optional - can be nil
	Logger        zerolog.Logger
}

// OpenBackend returns a Config.Open func for a registered backend using the
// fixed capture parameters.
func OpenBackend(backend, device string, log zerolog.Logger) func() (audio.Device, error) {
	return func() (audio.Device, error) {
		return audio.Open(backend, device, audio.DefaultParams(), log)
	}
}

type Recorder struct {
	cfg    Config
	log    zerolog.Logger
	volume *audio.VolumeController

	mu      sync.Mutex
	started bool
	closed  bool
	dev     audio.Device
	queue   *audio.FrameQueue
	frames  int
	cancel  context.CancelFunc
	err     error
	done    chan struct{}
}

func New(cfg Config) *Recorder {
	return &Recorder{
		cfg:    cfg,
		log:    cfg.Logger,
		volume: audio.NewVolumeController(cfg.Mixer, cfg.Logger),
		done:   make(chan struct{}),
	}
}

// Start applies the default volume, opens the capture device and starts the
// capture loop. Capture runs until ctx is done or Close is called.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrAlreadyStarted
	}

	if err := r.volume.Set(r.cfg.DefaultVolume); err != nil {
		r.log.Warn().Err(err).Int("volume", r.cfg.DefaultVolume).Msg("Failed to apply default volume")
	}

	dev, err := r.cfg.Open()
	if err != nil {
		return fmt.Errorf("failed to open capture device: %w", err)
	}

	r.dev = dev
	r.frames = dev.BufferFrames()
	r.queue = audio.NewFrameQueue(r.cfg.QueueCapacity, r.cfg.Overflow)

	captureCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.started = true

	capturer := audio.NewCapturer(audio.CapturerConfig{
		Device:    dev,
		Queue:     r.queue,
		ShortRead: r.cfg.ShortRead,
		Observer:  r.cfg.Observer,
		Logger:    r.log,
	})

	go func() {
		err := capturer.Run(captureCtx)
		if err != nil {
			r.log.Error().Err(err).Msg("Capture stopped")
		}

		r.mu.Lock()
		r.err = err
		r.mu.Unlock()

		r.queue.Close()
		close(r.done)
	}()

	r.log.Info().
		Int("frames", r.frames).
		Int("queue_capacity", r.cfg.QueueCapacity).
		Str("overflow", r.cfg.Overflow.String()).
		Msg("Recording started")
	return nil
}

// SetVolume validates and applies a volume percentage.
func (r *Recorder) SetVolume(percent int) error {
	return r.volume.Set(percent)
}

// Volume returns the last volume applied successfully.
func (r *Recorder) Volume() int {
	return r.volume.Get()
}

// FrameSize returns the number of frames per buffer, or 0 before Start.
func (r *Recorder) FrameSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// NextReading returns the oldest captured buffer, waiting for one if none
// is queued. After capture stops and the queue drains it returns
// audio.ErrQueueClosed.
func (r *Recorder) NextReading(ctx context.Context) ([]int16, error) {
	r.mu.Lock()
	q := r.queue
	r.mu.Unlock()

	if q == nil {
		return nil, ErrNotStarted
	}
	return q.Pop(ctx)
}

// QueueLen returns the number of buffers waiting for a consumer.
func (r *Recorder) QueueLen() int {
	r.mu.Lock()
	q := r.queue
	r.mu.Unlock()

	if q == nil {
		return 0
	}
	return q.Len()
}

// Dropped returns the number of buffers discarded by the overflow policy.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	q := r.queue
	r.mu.Unlock()

	if q == nil {
		return 0
	}
	return q.Dropped()
}

// Done is closed once the capture loop has exited.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Err returns why the capture loop exited, nil for a requested stop.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close stops the capture loop and releases the device.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.started || r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	<-r.done

	if err := r.dev.Close(); err != nil {
		return fmt.Errorf("failed to close capture device: %w", err)
	}
	r.log.Info().Msg("Recording stopped")
	return nil
}
