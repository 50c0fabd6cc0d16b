// Package cluster provides multi-node composition support.
// A node's role decides which capabilities its application assembles; state
// distribution domains replicate simulation state from sending nodes to
// receiving ones over WebSocket.
package cluster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/luminave/pulsekit/domain"
)

// Role names a node's function in the cluster.
type Role string

const (
	// RoleDesktop is a self-contained node: simulation, rendering and
	// audio in one process. The default when no role is configured.
	RoleDesktop Role = "desktop"

	// RolePrimary is a desktop node that additionally broadcasts state.
	RolePrimary Role = "primary"

	// RoleRenderer renders from received state.
	RoleRenderer Role = "renderer"

	// RoleAudio produces audio from received state.
	RoleAudio Role = "audio"

	// RoleSimulator simulates and broadcasts state without local output.
	RoleSimulator Role = "simulator"
)

// ParseRole validates a role name. The empty string maps to RoleDesktop.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "":
		return RoleDesktop, nil
	case RoleDesktop, RolePrimary, RoleRenderer, RoleAudio, RoleSimulator:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown cluster role %q", s)
	}
}

// Capabilities returns the capability set an application with this role
// assembles.
func (r Role) Capabilities() domain.Capability {
	switch r {
	case RolePrimary:
		return domain.CapSimulator | domain.CapRendering | domain.CapAudioIO | domain.CapStateSend
	case RoleRenderer:
		return domain.CapRendering | domain.CapStateReceive
	case RoleAudio:
		return domain.CapAudioIO | domain.CapStateReceive
	case RoleSimulator:
		return domain.CapSimulator | domain.CapStateSend
	default:
		return domain.CapSimulator | domain.CapRendering | domain.CapAudioIO
	}
}

// Sends reports whether the role broadcasts state.
func (r Role) Sends() bool { return r.Capabilities().Has(domain.CapStateSend) }

// Receives reports whether the role consumes broadcast state.
func (r Role) Receives() bool { return r.Capabilities().Has(domain.CapStateReceive) }

// RoleMap assigns roles to hostnames.
type RoleMap struct {
	Roles map[string]string `yaml:"roles"`
}

// LoadRoleMap reads a role map from a YAML file.
func LoadRoleMap(path string) (*RoleMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role map: %w", err)
	}
	var m RoleMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode role map %s: %w", path, err)
	}
	for host, role := range m.Roles {
		if _, err := ParseRole(role); err != nil {
			return nil, fmt.Errorf("role map %s: host %s: %w", path, host, err)
		}
	}
	return &m, nil
}

// Resolve returns the role assigned to hostname, defaulting to RoleDesktop
// for unknown hosts.
func (m *RoleMap) Resolve(hostname string) Role {
	if m == nil || m.Roles == nil {
		return RoleDesktop
	}
	if s, ok := m.Roles[hostname]; ok {
		r, err := ParseRole(s)
		if err == nil {
			return r
		}
	}
	return RoleDesktop
}
