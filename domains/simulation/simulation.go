// Package simulation provides the fixed-timestep simulation domain.
// The domain is synchronous: it is composed as a sub-domain of a loop driver
// (typically the clock domain) and advances the user's simulation step once
// per tick.
package simulation

import (
	"context"
	"sync"

	"github.com/luminave/pulsekit/domain"
	"github.com/luminave/pulsekit/param"
)

// Domain advances a user simulation step once per tick.
type Domain struct {
	domain.SyncBase

	mu         sync.Mutex
	timestep   float64
	stepSource func() float64
	timeScale  *param.Float
	stepFn     func(dt float64) error
	elapsed    float64
}

// New creates a simulation domain. timestep is the fixed step in seconds; a
// non-positive timestep uses the parent's measured time delta instead.
func New(timestep float64) *Domain {
	d := &Domain{timestep: timestep}
	d.SetOwner(d)
	return d
}

// OnStep registers the simulation step function.
func (d *Domain) OnStep(fn func(dt float64) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stepFn = fn
}

// TimeScale returns the runtime time-scale parameter. Available after Init.
func (d *Domain) TimeScale() *param.Float {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timeScale
}

// Elapsed returns the accumulated simulation time in seconds.
func (d *Domain) Elapsed() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.elapsed
}

// Init registers the simulation capability and the time-scale parameter.
func (d *Domain) Init(ctx context.Context, parent domain.Domain) error {
	return d.InitWith(ctx, parent, func(ctx context.Context) error {
		d.SetCapabilities(domain.CapSimulator)
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.timeScale == nil {
			d.timeScale = param.NewFloat("time_scale", "simulation", 1, 0, 10)
			d.AddParameter(d.timeScale)
		}
		// Inherit the parent's measured delta when no fixed step is set.
		if d.timestep <= 0 && parent != nil {
			d.stepSource = parent.TimeDelta
		}
		return nil
	})
}

// Tick advances the simulation by one step.
func (d *Domain) Tick() error {
	return d.TickPass(func() error {
		d.mu.Lock()
		dt := d.timestep
		if dt <= 0 {
			if d.stepSource != nil {
				dt = d.stepSource()
			} else {
				dt = d.TimeDelta()
			}
		}
		if d.timeScale != nil {
			dt *= d.timeScale.Get()
		}
		d.elapsed += dt
		fn := d.stepFn
		d.mu.Unlock()

		if fn != nil {
			return fn(dt)
		}
		return nil
	})
}
