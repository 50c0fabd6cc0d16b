// Package param provides runtime parameter objects.
// Parameters are continuous, externally-owned values adjusting a domain's
// operation while it runs (audio gain, time scale, eye separation). They are
// distinct from configuration that must stay immutable after initialization.
//
// Each parameter guards its own value; domains only hold non-owning
// references for introspection.
package param

import (
	"fmt"
	"sync"
)

// Meta is the common interface of all parameter types.
type Meta interface {
	// Name returns the parameter name, unique within its group.
	Name() string

	// Group returns the parameter's grouping prefix; may be empty.
	Group() string

	// Value returns the current value.
	Value() any

	// SetValue assigns a value of the parameter's native type.
	SetValue(v any) error
}

// FullName returns the canonical "group/name" address of a parameter.
func FullName(m Meta) string {
	if m.Group() == "" {
		return m.Name()
	}
	return m.Group() + "/" + m.Name()
}

type meta struct {
	name  string
	group string
}

func (m meta) Name() string  { return m.name }
func (m meta) Group() string { return m.group }

// =============================================================================
// Float
// =============================================================================

// Float is a clamped floating-point parameter.
type Float struct {
	meta
	mu        sync.RWMutex
	min, max  float64
	value     float64
	callbacks []func(float64)
}

// NewFloat creates a float parameter clamped to [min, max].
func NewFloat(name, group string, value, min, max float64) *Float {
	p := &Float{meta: meta{name: name, group: group}, min: min, max: max}
	p.value = p.clamp(value)
	return p
}

func (p *Float) clamp(v float64) float64 {
	if p.min < p.max {
		if v < p.min {
			v = p.min
		}
		if v > p.max {
			v = p.max
		}
	}
	return v
}

// Get returns the current value.
func (p *Float) Get() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set assigns the value, clamping to the parameter's range, and notifies
// change callbacks with the effective value.
func (p *Float) Set(v float64) {
	p.mu.Lock()
	v = p.clamp(v)
	p.value = v
	cbs := append([]func(float64){}, p.callbacks...)
	p.mu.Unlock()
	for _, cb := range cbs {
		cb(v)
	}
}

// OnChange registers a callback invoked after each Set.
func (p *Float) OnChange(fn func(float64)) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, fn)
}

// Min returns the lower bound of the range.
func (p *Float) Min() float64 { return p.min }

// Max returns the upper bound of the range.
func (p *Float) Max() float64 { return p.max }

func (p *Float) Value() any { return p.Get() }

func (p *Float) SetValue(v any) error {
	switch t := v.(type) {
	case float64:
		p.Set(t)
	case float32:
		p.Set(float64(t))
	case int:
		p.Set(float64(t))
	default:
		return fmt.Errorf("parameter %s: cannot assign %T", FullName(p), v)
	}
	return nil
}

// =============================================================================
// Int
// =============================================================================

// Int is a clamped integer parameter.
type Int struct {
	meta
	mu        sync.RWMutex
	min, max  int
	value     int
	callbacks []func(int)
}

// NewInt creates an integer parameter clamped to [min, max].
func NewInt(name, group string, value, min, max int) *Int {
	p := &Int{meta: meta{name: name, group: group}, min: min, max: max}
	p.value = p.clamp(value)
	return p
}

func (p *Int) clamp(v int) int {
	if p.min < p.max {
		if v < p.min {
			v = p.min
		}
		if v > p.max {
			v = p.max
		}
	}
	return v
}

// Get returns the current value.
func (p *Int) Get() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set assigns the value, clamping to the parameter's range.
func (p *Int) Set(v int) {
	p.mu.Lock()
	v = p.clamp(v)
	p.value = v
	cbs := append([]func(int){}, p.callbacks...)
	p.mu.Unlock()
	for _, cb := range cbs {
		cb(v)
	}
}

// OnChange registers a callback invoked after each Set.
func (p *Int) OnChange(fn func(int)) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, fn)
}

func (p *Int) Value() any { return p.Get() }

func (p *Int) SetValue(v any) error {
	switch t := v.(type) {
	case int:
		p.Set(t)
	case int64:
		p.Set(int(t))
	case float64:
		p.Set(int(t))
	default:
		return fmt.Errorf("parameter %s: cannot assign %T", FullName(p), v)
	}
	return nil
}

// =============================================================================
// Bool
// =============================================================================

// Bool is a boolean parameter.
type Bool struct {
	meta
	mu        sync.RWMutex
	value     bool
	callbacks []func(bool)
}

// NewBool creates a boolean parameter.
func NewBool(name, group string, value bool) *Bool {
	return &Bool{meta: meta{name: name, group: group}, value: value}
}

// Get returns the current value.
func (p *Bool) Get() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set assigns the value.
func (p *Bool) Set(v bool) {
	p.mu.Lock()
	p.value = v
	cbs := append([]func(bool){}, p.callbacks...)
	p.mu.Unlock()
	for _, cb := range cbs {
		cb(v)
	}
}

// OnChange registers a callback invoked after each Set.
func (p *Bool) OnChange(fn func(bool)) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, fn)
}

func (p *Bool) Value() any { return p.Get() }

func (p *Bool) SetValue(v any) error {
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("parameter %s: cannot assign %T", FullName(p), v)
	}
	p.Set(b)
	return nil
}

// =============================================================================
// String
// =============================================================================

// String is a string parameter.
type String struct {
	meta
	mu        sync.RWMutex
	value     string
	callbacks []func(string)
}

// NewString creates a string parameter.
func NewString(name, group, value string) *String {
	return &String{meta: meta{name: name, group: group}, value: value}
}

// Get returns the current value.
func (p *String) Get() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set assigns the value.
func (p *String) Set(v string) {
	p.mu.Lock()
	p.value = v
	cbs := append([]func(string){}, p.callbacks...)
	p.mu.Unlock()
	for _, cb := range cbs {
		cb(v)
	}
}

// OnChange registers a callback invoked after each Set.
func (p *String) OnChange(fn func(string)) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, fn)
}

func (p *String) Value() any { return p.Get() }

func (p *String) SetValue(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("parameter %s: cannot assign %T", FullName(p), v)
	}
	p.Set(s)
	return nil
}
