package domain

import "testing"

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	a := newTracer("a", nil)
	b := newTracer("b", nil)
	c := newTracer("c", nil)

	r.Add("graphics", a)
	r.Add("audio", b)
	r.Add("graphics", c)

	if got := r.Lookup("graphics", 0); got != Domain(a) {
		t.Fatalf("graphics[0] = %v", got)
	}
	if got := r.Lookup("graphics", 1); got != Domain(c) {
		t.Fatalf("graphics[1] = %v", got)
	}
	if got := r.Lookup("audio", 0); got != Domain(b) {
		t.Fatalf("audio[0] = %v", got)
	}
	if got := r.Lookup("graphics", 2); got != nil {
		t.Fatalf("graphics[2] should be nil, got %v", got)
	}
	if got := r.Lookup("midi", 0); got != nil {
		t.Fatalf("unknown tag should be nil, got %v", got)
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	a := newTracer("a", nil)
	r.Add("graphics", a)
	r.Add("gui", a)

	if !r.Remove(a) {
		t.Fatal("remove should report found")
	}
	if r.Remove(a) {
		t.Fatal("second remove should report not found")
	}
	if len(r.Entries()) != 0 {
		t.Fatalf("expected empty registry, got %d entries", len(r.Entries()))
	}
}

func TestRegistryEntryMetadata(t *testing.T) {
	r := NewRegistry()
	a := newTracer("a", nil)
	entry := r.Add("graphics", a)

	if entry.ID == "" {
		t.Fatal("entry should carry an id")
	}
	if entry.Tag != "graphics" {
		t.Fatalf("unexpected tag %q", entry.Tag)
	}
	if entry.RegisteredAt.IsZero() {
		t.Fatal("entry should carry a registration time")
	}
}

func TestDefaultRegistry(t *testing.T) {
	a := newTracer("a", nil)
	AddPublicDomain("test-default", a)
	defer DefaultRegistry().Remove(a)

	if got := GetDomain("test-default", 0); got != Domain(a) {
		t.Fatalf("default registry lookup failed: %v", got)
	}
	if got := GetDomain("test-default", 1); got != nil {
		t.Fatalf("expected nil for out-of-range index, got %v", got)
	}
}
