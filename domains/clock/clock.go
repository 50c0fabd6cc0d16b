// Package clock provides the main-loop driver domain.
// A ClockDomain owns a worker goroutine that runs tick passes over its
// synchronous sub-domains at a fixed target rate, measuring the achieved
// frame delta each pass. Rendering or windowing layers plug in either as
// sub-domains or through the per-frame hook.
package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/luminave/pulsekit/domain"
	"github.com/luminave/pulsekit/internal/metrics"
	"github.com/luminave/pulsekit/pkg/logger"
)

// ClockDomain drives its sub-domains at a fixed frame rate on its own
// worker goroutine.
type ClockDomain struct {
	domain.ThreadBase

	mu        sync.Mutex
	name      string
	frameRate float64
	onFrame   func(dt float64) error
	limiter   *rate.Limiter
	collector *metrics.Collector
	log       *logger.Logger
}

// New creates a clock domain targeting frameRate passes per second.
func New(frameRate float64) *ClockDomain {
	d := &ClockDomain{name: "clock", frameRate: frameRate}
	d.SetOwner(d)
	return d
}

// SetName sets the name used in logs and metrics.
func (d *ClockDomain) SetName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if name != "" {
		d.name = name
	}
}

// Name returns the domain's name.
func (d *ClockDomain) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// SetFrameRate changes the target rate. Takes effect on the next Init.
func (d *ClockDomain) SetFrameRate(fps float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frameRate = fps
}

// FrameRate returns the target rate.
func (d *ClockDomain) FrameRate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frameRate
}

// OnFrame registers the per-frame hook, called once per pass between the
// pre- and post- sub-domain lists with the measured frame delta.
func (d *ClockDomain) OnFrame(fn func(dt float64) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFrame = fn
}

// SetCollector attaches a metrics collector.
func (d *ClockDomain) SetCollector(c *metrics.Collector) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.collector = c
}

// SetLogger attaches a logger.
func (d *ClockDomain) SetLogger(l *logger.Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = l
}

// Init prepares the pacing limiter and cascades to sub-domains.
func (d *ClockDomain) Init(ctx context.Context, parent domain.Domain) error {
	return d.InitWith(ctx, parent, func(ctx context.Context) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.name == "" {
			d.name = "clock"
		}
		if d.frameRate <= 0 {
			d.frameRate = 60
		}
		d.limiter = rate.NewLimiter(rate.Limit(d.frameRate), 1)
		return nil
	})
}

// Start spawns the run loop without blocking the caller.
func (d *ClockDomain) Start(ctx context.Context) error {
	return d.StartWorker(ctx, nil, d.run)
}

func (d *ClockDomain) run(ctx context.Context, stop <-chan struct{}) error {
	d.mu.Lock()
	limiter := d.limiter
	collector := d.collector
	log := d.log
	name := d.name
	d.mu.Unlock()

	if limiter == nil {
		return fmt.Errorf("clock domain %s: not initialized", name)
	}

	// The limiter waits on a context, so fold the stop signal into one.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-runCtx.Done():
		}
	}()

	if collector != nil {
		collector.SetStatus(name, metrics.StatusRunning)
		defer collector.SetStatus(name, metrics.StatusStopped)
	}

	last := time.Now()
	for {
		if err := limiter.Wait(runCtx); err != nil {
			// Stop requested or context cancelled.
			return nil
		}

		now := time.Now()
		dt := now.Sub(last).Seconds()
		last = now
		d.SetTimeDelta(dt)
		if collector != nil {
			collector.SetTimeDelta(name, dt)
		}

		begin := time.Now()
		err := d.TickPass(func() error {
			d.mu.Lock()
			onFrame := d.onFrame
			d.mu.Unlock()
			if onFrame != nil {
				return onFrame(dt)
			}
			return nil
		})
		if collector != nil {
			collector.ObserveTick(name, time.Since(begin), err)
		}
		if err != nil && log != nil {
			// Tick failures are reported, not fatal.
			log.WithError(err).Warnf("clock domain %s: tick pass failed", name)
		}
	}
}
