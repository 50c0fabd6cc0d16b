package domain

import "strings"

// Capability is a bitmask describing the roles a domain can fulfill.
// Composed applications read capabilities to decide which behavior to run on
// a given process in a multi-process deployment.
type Capability uint32

const (
	CapNone Capability = 0

	CapSimulator     Capability = 1 << iota // runs the simulation step
	CapRendering                            // renders graphics
	CapOmniRendering                        // renders omni/panoramic projections
	CapAudioIO                              // produces or consumes audio
	CapOSC                                  // sends/receives control messages
	CapConsoleIO                            // interacts with the console
	Cap2DGUI                                // hosts a 2D GUI layer
	CapStateSend                            // broadcasts shared state
	CapStateReceive                         // receives shared state
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapSimulator, "simulator"},
	{CapRendering, "rendering"},
	{CapOmniRendering, "omnirendering"},
	{CapAudioIO, "audio_io"},
	{CapOSC, "osc"},
	{CapConsoleIO, "console_io"},
	{Cap2DGUI, "2dgui"},
	{CapStateSend, "state_send"},
	{CapStateReceive, "state_receive"},
}

// Has reports whether all bits in other are set.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

// With returns c with the bits in other added.
func (c Capability) With(other Capability) Capability {
	return c | other
}

// Without returns c with the bits in other cleared.
func (c Capability) Without(other Capability) Capability {
	return c &^ other
}

func (c Capability) String() string {
	if c == CapNone {
		return "none"
	}
	var parts []string
	for _, n := range capabilityNames {
		if c.Has(n.cap) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
