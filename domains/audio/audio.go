// Package audio provides the audio I/O domain.
// The domain owns a worker goroutine fed by an audio backend; each hardware
// buffer triggers one tick pass, so synchronous sub-domains (and the process
// callback) run on the audio thread at buffer rate.
package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/luminave/pulsekit/domain"
	"github.com/luminave/pulsekit/internal/metrics"
	"github.com/luminave/pulsekit/param"
	"github.com/luminave/pulsekit/pkg/logger"
)

// StreamConfig describes the stream a backend should open.
type StreamConfig struct {
	SampleRate   float64
	BufferFrames int
	Channels     int
}

// BufferDuration returns the wall-clock duration of one buffer.
func (c StreamConfig) BufferDuration() time.Duration {
	if c.SampleRate <= 0 || c.BufferFrames <= 0 {
		return 0
	}
	return time.Duration(float64(c.BufferFrames) / c.SampleRate * float64(time.Second))
}

// Backend abstracts the underlying audio device. Start delivers interleaved
// output buffers to cb from the backend's own pacing until Stop is called.
type Backend interface {
	Open(cfg StreamConfig) error
	Start(cb func(out []float32)) error
	Stop() error
	Close() error
}

// =============================================================================
// Null backend
// =============================================================================

// NullBackend is a device-free backend that paces callbacks by the buffer
// duration. It backs headless nodes and tests.
type NullBackend struct {
	mu     sync.Mutex
	cfg    StreamConfig
	opened bool
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewNullBackend creates a null backend.
func NewNullBackend() *NullBackend { return &NullBackend{} }

func (b *NullBackend) Open(cfg StreamConfig) error {
	if cfg.SampleRate <= 0 || cfg.BufferFrames <= 0 || cfg.Channels <= 0 {
		return fmt.Errorf("invalid stream config: rate=%v frames=%d channels=%d",
			cfg.SampleRate, cfg.BufferFrames, cfg.Channels)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
	b.opened = true
	return nil
}

func (b *NullBackend) Start(cb func(out []float32)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.opened {
		return fmt.Errorf("null backend: stream not open")
	}
	if b.stopCh != nil {
		return fmt.Errorf("null backend: already started")
	}
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})

	buf := make([]float32, b.cfg.BufferFrames*b.cfg.Channels)
	period := b.cfg.BufferDuration()
	stop, done := b.stopCh, b.doneCh

	go func() {
		defer close(done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				for i := range buf {
					buf[i] = 0
				}
				cb(buf)
			}
		}
	}()
	return nil
}

func (b *NullBackend) Stop() error {
	b.mu.Lock()
	stop, done := b.stopCh, b.doneCh
	b.stopCh, b.doneCh = nil, nil
	b.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

func (b *NullBackend) Close() error {
	if err := b.Stop(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened = false
	return nil
}

// =============================================================================
// Audio domain
// =============================================================================

// AudioDomain runs the audio backend on its own worker goroutine. The process
// callback receives each output buffer after the pre sub-domain pass; the
// domain applies the gain parameter afterwards.
type AudioDomain struct {
	domain.ThreadBase

	mu        sync.Mutex
	name      string
	cfg       StreamConfig
	backend   Backend
	process   func(out []float32)
	gain      *param.Float
	collector *metrics.Collector
	log       *logger.Logger
}

// New creates an audio domain over backend. A nil backend gets a NullBackend.
func New(cfg StreamConfig, backend Backend) *AudioDomain {
	if backend == nil {
		backend = NewNullBackend()
	}
	d := &AudioDomain{name: "audio", cfg: cfg, backend: backend}
	d.SetOwner(d)
	return d
}

// Name returns the domain's name.
func (d *AudioDomain) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Config returns the stream configuration.
func (d *AudioDomain) Config() StreamConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// OnProcess registers the audio process callback, invoked with each output
// buffer on the audio worker goroutine.
func (d *AudioDomain) OnProcess(fn func(out []float32)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.process = fn
}

// Gain returns the output gain parameter. Available after Init.
func (d *AudioDomain) Gain() *param.Float {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gain
}

// SetCollector attaches a metrics collector.
func (d *AudioDomain) SetCollector(c *metrics.Collector) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.collector = c
}

// SetLogger attaches a logger.
func (d *AudioDomain) SetLogger(l *logger.Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = l
}

// Init opens the backend stream and registers the gain parameter.
func (d *AudioDomain) Init(ctx context.Context, parent domain.Domain) error {
	return d.InitWith(ctx, parent, func(ctx context.Context) error {
		d.SetCapabilities(domain.CapAudioIO)
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.cfg.SampleRate <= 0 {
			d.cfg.SampleRate = 44100
		}
		if d.cfg.BufferFrames <= 0 {
			d.cfg.BufferFrames = 512
		}
		if d.cfg.Channels <= 0 {
			d.cfg.Channels = 2
		}
		if d.gain == nil {
			d.gain = param.NewFloat("gain", "audio", 1, 0, 2)
			d.AddParameter(d.gain)
		}
		// The buffer period is the domain's natural time step.
		d.SetTimeDelta(d.cfg.BufferDuration().Seconds())
		if err := d.backend.Open(d.cfg); err != nil {
			return fmt.Errorf("open audio stream: %w", err)
		}
		return nil
	})
}

// Cleanup closes the backend.
func (d *AudioDomain) Cleanup(ctx context.Context, parent domain.Domain) error {
	return d.CleanupWith(ctx, parent, func(ctx context.Context) error {
		return d.backend.Close()
	})
}

// Start spawns the audio worker without blocking the caller.
func (d *AudioDomain) Start(ctx context.Context) error {
	return d.StartWorker(ctx, d.startBackend, d.run)
}

func (d *AudioDomain) startBackend(ctx context.Context) error {
	d.mu.Lock()
	backend := d.backend
	collector := d.collector
	log := d.log
	name := d.name
	d.mu.Unlock()

	err := backend.Start(func(out []float32) {
		begin := time.Now()
		tickErr := d.TickPass(func() error {
			d.mu.Lock()
			process := d.process
			gain := d.gain
			d.mu.Unlock()
			if process != nil {
				process(out)
			}
			if gain != nil {
				g := float32(gain.Get())
				for i := range out {
					out[i] *= g
				}
			}
			return nil
		})
		if collector != nil {
			collector.ObserveTick(name, time.Since(begin), tickErr)
		}
		if tickErr != nil && log != nil {
			log.WithError(tickErr).Warnf("audio domain %s: tick pass failed", name)
		}
	})
	if err != nil {
		return fmt.Errorf("start audio backend: %w", err)
	}
	if collector != nil {
		collector.SetStatus(name, metrics.StatusRunning)
	}
	return nil
}

func (d *AudioDomain) run(ctx context.Context, stop <-chan struct{}) error {
	defer func() {
		d.mu.Lock()
		backend := d.backend
		collector := d.collector
		name := d.name
		d.mu.Unlock()
		_ = backend.Stop()
		if collector != nil {
			collector.SetStatus(name, metrics.StatusStopped)
		}
	}()

	select {
	case <-stop:
	case <-ctx.Done():
	}
	return nil
}
