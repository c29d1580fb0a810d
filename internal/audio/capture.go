package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ShortReadPolicy decides what happens to a buffer the device filled only
// partially without reporting an error.
type ShortReadPolicy int

const (
	// ShortReadPass delivers the buffer truncated to the frames read.
	ShortReadPass ShortReadPolicy = iota
	// ShortReadPad delivers a full-length buffer with a silent tail.
	ShortReadPad
	// ShortReadDrop discards the buffer.
	ShortReadDrop
)

func (p ShortReadPolicy) String() string {
	switch p {
	case ShortReadPass:
		return "pass"
	case ShortReadPad:
		return "pad"
	case ShortReadDrop:
		return "drop"
	default:
		return fmt.Sprintf("ShortReadPolicy(%d)", int(p))
	}
}

// ParseShortReadPolicy parses the config spelling of a policy.
func ParseShortReadPolicy(s string) (ShortReadPolicy, error) {
	switch s {
	case "", "pass":
		return ShortReadPass, nil
	case "pad":
		return ShortReadPad, nil
	case "drop":
		return ShortReadDrop, nil
	}
	return 0, fmt.Errorf("unknown short read policy %q", s)
}

// Observer receives capture loop events. Implementations must be safe for
// use from the capture goroutine.
type Observer interface {
	// BufferCaptured is called for every buffer read from the device that
	// the short read policy keeps, before it is offered to the queue.
	// Buffers the queue discards are counted by FrameQueue.Dropped.
	BufferCaptured(frames int)
	ShortRead()
	Recovered()
}

type nopObserver struct{}

func (nopObserver) BufferCaptured(int) {}
func (nopObserver) ShortRead()         {}
func (nopObserver) Recovered()         {}

// CapturerConfig wires a Capturer to its device and queue.
type CapturerConfig struct {
	Device    Device
	Queue     *FrameQueue
	ShortRead ShortReadPolicy
	Observer  Observer // Optional - can be nil
	Logger    zerolog.Logger
}

// Capturer moves buffers from a Device into a FrameQueue.
type Capturer struct {
	dev       Device
	queue     *FrameQueue
	shortRead ShortReadPolicy
	obs       Observer
	log       zerolog.Logger
}

func NewCapturer(cfg CapturerConfig) *Capturer {
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Capturer{
		dev:       cfg.Device,
		queue:     cfg.Queue,
		shortRead: cfg.ShortRead,
		obs:       obs,
		log:       cfg.Logger,
	}
}

// Run reads one hardware buffer per iteration until ctx is cancelled. A
// failed read gets exactly one Recover attempt; if that fails too Run
// returns an error wrapping ErrCaptureFailed.
func (c *Capturer) Run(ctx context.Context) error {
	frames := c.dev.BufferFrames()
	channels := max(c.dev.Channels(), 1)
	c.log.Debug().Int("frames", frames).Int("channels", channels).Msg("Capture loop started")
	defer c.log.Debug().Msg("Capture loop stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		buf := make([]int16, frames*channels)
		n, err := c.dev.ReadFrames(buf)
		if err != nil {
			c.log.Warn().Err(err).Msg("Capture read failed, recovering device")
			if rerr := c.dev.Recover(err); rerr != nil {
				c.log.Error().Err(rerr).Msg("Device recovery failed")
				return fmt.Errorf("%w: %v (recover: %v)", ErrCaptureFailed, err, rerr)
			}
			c.obs.Recovered()
			// Nothing was captured into buf.
			continue
		}

		buf, ok := c.shape(buf, frames, n, channels)
		if !ok {
			continue
		}

		c.obs.BufferCaptured(min(n, frames))
		if err := c.queue.Push(ctx, buf); err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}
	}
}

// shape applies the short read policy to a buffer of frames frames of
// which n were filled.
func (c *Capturer) shape(buf []int16, frames, n, channels int) ([]int16, bool) {
	if n >= frames {
		return buf, true
	}
	if n <= 0 {
		c.log.Debug().Msg("Device returned no frames")
		return nil, false
	}

	c.obs.ShortRead()
	c.log.Warn().
		Int("expected", frames).
		Int("read", n).
		Str("policy", c.shortRead.String()).
		Msg("Short read")

	switch c.shortRead {
	case ShortReadPad:
		clear(buf[n*channels:])
		return buf, true
	case ShortReadDrop:
		return nil, false
	default:
		return buf[:n*channels], true
	}
}
