package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/petems/audio-recorder/internal/audio"
)

// Source is the recorder state sampled at scrape time.
type Source interface {
	QueueLen() int
	Dropped() uint64
	Volume() int
	FrameSize() int
}

// Metrics implements audio.Observer on top of a private prometheus
// registry.
type Metrics struct {
	reg *prometheus.Registry
	f   promauto.Factory

	buffers    prometheus.Counter
	frames     prometheus.Counter
	shortReads prometheus.Counter
	recoveries prometheus.Counter
	levelDBFS  prometheus.Gauge
	peak       prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	return &Metrics{
		reg: reg,
		f:   f,

		buffers: f.NewCounter(prometheus.CounterOpts{
			Name: "recorder_buffers_captured_total",
			Help: "Buffers read from the capture device",
		}),
		frames: f.NewCounter(prometheus.CounterOpts{
			Name: "recorder_frames_captured_total",
			Help: "Frames read from the capture device",
		}),
		shortReads: f.NewCounter(prometheus.CounterOpts{
			Name: "recorder_short_reads_total",
			Help: "Reads that returned fewer frames than requested",
		}),
		recoveries: f.NewCounter(prometheus.CounterOpts{
			Name: "recorder_device_recoveries_total",
			Help: "Device faults recovered by a reset",
		}),
		levelDBFS: f.NewGauge(prometheus.GaugeOpts{
			Name: "recorder_level_dbfs",
			Help: "RMS level of the last consumed buffer in dBFS",
		}),
		peak: f.NewGauge(prometheus.GaugeOpts{
			Name: "recorder_peak_ratio",
			Help: "Peak sample of the last consumed buffer relative to full scale",
		}),
	}
}

func (m *Metrics) BufferCaptured(frames int) {
	m.buffers.Inc()
	m.frames.Add(float64(frames))
}

func (m *Metrics) ShortRead() { m.shortReads.Inc() }

func (m *Metrics) Recovered() { m.recoveries.Inc() }

// ObserveLevel records the loudness of a consumed buffer.
func (m *Metrics) ObserveLevel(l audio.Level) {
	m.levelDBFS.Set(l.DBFS())
	m.peak.Set(l.Peak)
}

// Watch exports the recorder's queue and volume state. It must be called
// at most once.
func (m *Metrics) Watch(src Source) {
	m.f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "recorder_queue_depth",
		Help: "Buffers waiting for a consumer",
	}, func() float64 { return float64(src.QueueLen()) })
	m.f.NewCounterFunc(prometheus.CounterOpts{
		Name: "recorder_queue_dropped_total",
		Help: "Buffers discarded by the queue overflow policy",
	}, func() float64 { return float64(src.Dropped()) })
	m.f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "recorder_volume_percent",
		Help: "Last playback volume applied",
	}, func() float64 { return float64(src.Volume()) })
	m.f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "recorder_frame_size",
		Help: "Negotiated frames per buffer",
	}, func() float64 { return float64(src.FrameSize()) })
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		m.reg, promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}),
	)
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
