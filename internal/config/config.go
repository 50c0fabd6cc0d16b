// Package config loads the application configuration.
// Configuration comes from a YAML file with environment variable overrides;
// a .env file in the working directory is honored when present.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/luminave/pulsekit/pkg/logger"
)

// Config is the top-level application configuration.
type Config struct {
	App     AppConfig            `yaml:"app"`
	Node    NodeConfig           `yaml:"node"`
	Cluster ClusterConfig        `yaml:"cluster"`
	Audio   AudioConfig          `yaml:"audio"`
	Monitor MonitorConfig        `yaml:"monitor"`
	Logging logger.LoggingConfig `yaml:"logging"`
}

// AppConfig configures the main loop.
type AppConfig struct {
	// Name identifies the application in logs and the domain registry.
	Name string `yaml:"name"`

	// FrameRate is the target rate of the main loop in passes per second.
	FrameRate float64 `yaml:"frame_rate"`

	// SimulationTimestep is the fixed simulation step in seconds. 0 uses
	// the measured frame delta.
	SimulationTimestep float64 `yaml:"simulation_timestep"`
}

// NodeConfig identifies this process within a deployment.
type NodeConfig struct {
	// Hostname overrides the OS hostname for role resolution.
	Hostname string `yaml:"hostname"`

	// Role forces this node's role, bypassing cluster role resolution.
	// One of: desktop, primary, renderer, audio, simulator.
	Role string `yaml:"role"`
}

// ClusterConfig configures multi-process state replication.
type ClusterConfig struct {
	// RolesFile is a YAML file mapping hostnames to roles.
	RolesFile string `yaml:"roles_file"`

	// StateListenAddr is where a receiving node accepts state connections.
	StateListenAddr string `yaml:"state_listen_addr"`

	// StateSendTo lists receiver addresses a sending node replicates to.
	StateSendTo []string `yaml:"state_send_to"`

	// StateInterval is the replication interval in seconds.
	StateInterval float64 `yaml:"state_interval"`
}

// AudioConfig configures the audio domain.
type AudioConfig struct {
	SampleRate   int `yaml:"sample_rate"`
	BufferFrames int `yaml:"buffer_frames"`
	Channels     int `yaml:"channels"`
}

// MonitorConfig configures the HTTP introspection server.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:      "pulsekit",
			FrameRate: 60,
		},
		Node: NodeConfig{},
		Cluster: ClusterConfig{
			StateListenAddr: ":9120",
			StateInterval:   1.0 / 30.0,
		},
		Audio: AudioConfig{
			SampleRate:   44100,
			BufferFrames: 512,
			Channels:     2,
		},
		Monitor: MonitorConfig{
			Enabled: true,
			Addr:    ":9121",
		},
		Logging: logger.LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the configuration from the path named by PULSEKIT_CONFIG, or
// config/pulsekit.yaml, falling back to defaults when no file exists.
func Load() (*Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load()

	path := os.Getenv("PULSEKIT_CONFIG")
	if path == "" {
		path = "config/pulsekit.yaml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		applyEnv(cfg)
		return cfg, cfg.Validate()
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.App.FrameRate <= 0 {
		return fmt.Errorf("app.frame_rate must be positive, got %v", c.App.FrameRate)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.BufferFrames <= 0 {
		return fmt.Errorf("audio.buffer_frames must be positive, got %d", c.Audio.BufferFrames)
	}
	if c.Audio.Channels <= 0 {
		return fmt.Errorf("audio.channels must be positive, got %d", c.Audio.Channels)
	}
	if c.Monitor.Enabled && c.Monitor.Addr == "" {
		return fmt.Errorf("monitor.addr is required when the monitor is enabled")
	}
	switch c.Node.Role {
	case "", "desktop", "primary", "renderer", "audio", "simulator":
	default:
		return fmt.Errorf("node.role %q is not recognized", c.Node.Role)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PULSEKIT_ROLE"); v != "" {
		cfg.Node.Role = v
	}
	if v := os.Getenv("PULSEKIT_HOSTNAME"); v != "" {
		cfg.Node.Hostname = v
	}
	if v := os.Getenv("PULSEKIT_MONITOR_ADDR"); v != "" {
		cfg.Monitor.Addr = v
	}
	if v := os.Getenv("PULSEKIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
