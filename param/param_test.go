package param

import (
	"testing"
)

func TestFloatClampAndCallbacks(t *testing.T) {
	p := NewFloat("gain", "audio", 0.5, 0, 1)

	var seen []float64
	p.OnChange(func(v float64) { seen = append(seen, v) })

	p.Set(0.7)
	p.Set(2.0) // clamped
	p.Set(-1)  // clamped

	if got := p.Get(); got != 0 {
		t.Fatalf("expected 0 after clamp, got %v", got)
	}
	if len(seen) != 3 || seen[0] != 0.7 || seen[1] != 1 || seen[2] != 0 {
		t.Fatalf("callbacks received %v", seen)
	}
}

func TestFloatUnboundedRange(t *testing.T) {
	p := NewFloat("x", "", 0, 0, 0)
	p.Set(1e9)
	if got := p.Get(); got != 1e9 {
		t.Fatalf("zero-width range must not clamp, got %v", got)
	}
}

func TestIntClamp(t *testing.T) {
	p := NewInt("voices", "synth", 64, 1, 32)
	if got := p.Get(); got != 32 {
		t.Fatalf("initial value not clamped, got %d", got)
	}
	p.Set(0)
	if got := p.Get(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestBoolAndString(t *testing.T) {
	b := NewBool("mute", "audio", false)
	var flips int
	b.OnChange(func(bool) { flips++ })
	b.Set(true)
	if !b.Get() || flips != 1 {
		t.Fatalf("bool set failed: value=%v flips=%d", b.Get(), flips)
	}

	s := NewString("scene", "", "intro")
	s.Set("finale")
	if s.Get() != "finale" {
		t.Fatalf("string set failed: %q", s.Get())
	}
}

func TestFullName(t *testing.T) {
	if got := FullName(NewFloat("gain", "audio", 0, 0, 1)); got != "audio/gain" {
		t.Fatalf("got %q", got)
	}
	if got := FullName(NewFloat("gain", "", 0, 0, 1)); got != "gain" {
		t.Fatalf("got %q", got)
	}
}

func TestSetValueTypeMismatch(t *testing.T) {
	p := NewFloat("gain", "audio", 0, 0, 1)
	if err := p.SetValue("loud"); err == nil {
		t.Fatal("expected type mismatch error")
	}
	if err := p.SetValue(0.25); err != nil {
		t.Fatalf("float assignment: %v", err)
	}
	if p.Get() != 0.25 {
		t.Fatalf("expected 0.25, got %v", p.Get())
	}
}

func TestPresetRoundTrip(t *testing.T) {
	store, err := NewPresetStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	gain := NewFloat("gain", "audio", 0.8, 0, 1)
	voices := NewInt("voices", "synth", 8, 1, 32)
	mute := NewBool("mute", "audio", true)
	scene := NewString("scene", "", "intro")
	params := []Meta{gain, voices, mute, scene}

	if err := store.Save("show", params); err != nil {
		t.Fatalf("save: %v", err)
	}

	gain.Set(0.1)
	voices.Set(1)
	mute.Set(false)
	scene.Set("other")

	if err := store.Load("show", params); err != nil {
		t.Fatalf("load: %v", err)
	}
	if gain.Get() != 0.8 || voices.Get() != 8 || !mute.Get() || scene.Get() != "intro" {
		t.Fatalf("preset not restored: gain=%v voices=%d mute=%v scene=%q",
			gain.Get(), voices.Get(), mute.Get(), scene.Get())
	}
}

func TestPresetListAndDelete(t *testing.T) {
	store, err := NewPresetStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	params := []Meta{NewFloat("gain", "audio", 0.5, 0, 1)}

	for _, name := range []string{"b", "a"} {
		if err := store.Save(name, params); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("unexpected presets: %v", names)
	}

	if err := store.Delete("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	names, _ = store.List()
	if len(names) != 1 || names[0] != "b" {
		t.Fatalf("delete not effective: %v", names)
	}
}

func TestPresetLoadMissing(t *testing.T) {
	store, err := NewPresetStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := store.Load("nope", nil); err == nil {
		t.Fatal("expected error for missing preset")
	}
}
