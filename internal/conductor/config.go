package conductor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file. A relative
// HOLOPOS_DB is taken from the working directory, unlike persistence_dir in
// the file, which is relative to the config file.
const (
	EnvDB        = "HOLOPOS_DB"
	EnvListen    = "HOLOPOS_LISTEN"
	EnvRateLimit = "HOLOPOS_RATE_LIMIT"
)

// Config is the conductor configuration.
type Config struct {
	Agents     []AgentConfig     `yaml:"agents"`
	DNAs       []DNAConfig       `yaml:"dnas"`
	Instances  []InstanceConfig  `yaml:"instances"`
	Interfaces []InterfaceConfig `yaml:"interfaces,omitempty"`

	// PersistenceDir holds one sqlite file per instance. Empty keeps every
	// instance in memory.
	PersistenceDir string `yaml:"persistence_dir,omitempty"`

	Logger LoggerConfig `yaml:"logger,omitempty"`

	// BaseDir resolves relative DNA files and PersistenceDir. LoadConfig
	// sets it to the config file's directory.
	BaseDir string `yaml:"-"`
}

// AgentConfig names an agent identity.
type AgentConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DNAConfig points at a bundle file. Hash, when set, must match the loaded
// bundle's DNA hash.
type DNAConfig struct {
	ID   string `yaml:"id"`
	File string `yaml:"file"`
	Hash string `yaml:"hash,omitempty"`
}

// InstanceConfig pairs an agent with a DNA.
type InstanceConfig struct {
	ID    string `yaml:"id"`
	Agent string `yaml:"agent"`
	DNA   string `yaml:"dna"`
}

// InterfaceConfig is one JSON-RPC listener. Instances lists the instance ids
// it exposes; empty exposes all of them.
type InterfaceConfig struct {
	ID        string   `yaml:"id"`
	Listen    string   `yaml:"listen"`
	Instances []string `yaml:"instances,omitempty"`

	// RateLimit is requests per second per remote address; 0 disables it.
	RateLimit float64 `yaml:"rate_limit,omitempty"`
	Burst     int     `yaml:"burst,omitempty"`
}

// LoggerConfig selects the log level ("debug", "info", "warn", "error")
// and format ("text" or "json").
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// LoadConfig reads a YAML config. Unknown fields are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.BaseDir = filepath.Dir(path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadEnvFile loads KEY=value pairs from a .env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error when optional is true.
func LoadEnvFile(path string, optional bool) error {
	if err := godotenv.Load(path); err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv applies HOLOPOS_* overrides from the environment.
//
//   - HOLOPOS_DB sets PersistenceDir (":memory:" clears it), made absolute
//     against the working directory
//   - HOLOPOS_LISTEN sets the first interface's address, adding one if needed
//   - HOLOPOS_RATE_LIMIT sets every interface's rate limit
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvDB); ok {
		switch {
		case v == ":memory:":
			v = ""
		case v != "" && !filepath.IsAbs(v):
			abs, err := filepath.Abs(v)
			if err != nil {
				return fmt.Errorf("%s: %w", EnvDB, err)
			}
			v = abs
		}
		c.PersistenceDir = v
	}

	if v, ok := os.LookupEnv(EnvListen); ok && v != "" {
		if len(c.Interfaces) == 0 {
			c.Interfaces = append(c.Interfaces, InterfaceConfig{ID: "default"})
		}
		c.Interfaces[0].Listen = v
	}

	if v, ok := os.LookupEnv(EnvRateLimit); ok && v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate < 0 {
			return fmt.Errorf("%s: invalid rate %q", EnvRateLimit, v)
		}
		for i := range c.Interfaces {
			c.Interfaces[i].RateLimit = rate
		}
	}
	return nil
}

// Validate checks ids are unique and every reference resolves.
func (c *Config) Validate() error {
	if len(c.Instances) == 0 {
		return errors.New("at least one instance is required")
	}

	agents := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID == "" {
			return errors.New("agent id is required")
		}
		if agents[a.ID] {
			return fmt.Errorf("duplicate agent %q", a.ID)
		}
		agents[a.ID] = true
	}

	dnas := make(map[string]bool, len(c.DNAs))
	for _, d := range c.DNAs {
		if d.ID == "" || d.File == "" {
			return fmt.Errorf("dna %q: id and file are required", d.ID)
		}
		if dnas[d.ID] {
			return fmt.Errorf("duplicate dna %q", d.ID)
		}
		dnas[d.ID] = true
	}

	instances := make(map[string]bool, len(c.Instances))
	for _, inst := range c.Instances {
		if inst.ID == "" {
			return errors.New("instance id is required")
		}
		if instances[inst.ID] {
			return fmt.Errorf("duplicate instance %q", inst.ID)
		}
		instances[inst.ID] = true
		if !agents[inst.Agent] {
			return fmt.Errorf("instance %q: unknown agent %q", inst.ID, inst.Agent)
		}
		if !dnas[inst.DNA] {
			return fmt.Errorf("instance %q: unknown dna %q", inst.ID, inst.DNA)
		}
	}

	ifaces := make(map[string]bool, len(c.Interfaces))
	for _, iface := range c.Interfaces {
		if iface.ID == "" || iface.Listen == "" {
			return fmt.Errorf("interface %q: id and listen are required", iface.ID)
		}
		if ifaces[iface.ID] {
			return fmt.Errorf("duplicate interface %q", iface.ID)
		}
		ifaces[iface.ID] = true
		for _, id := range iface.Instances {
			if !instances[id] {
				return fmt.Errorf("interface %q: unknown instance %q", iface.ID, id)
			}
		}
		if iface.RateLimit < 0 || iface.Burst < 0 {
			return fmt.Errorf("interface %q: rate limit and burst must not be negative", iface.ID)
		}
	}
	return nil
}

// Agent returns an agent whose id is its name.
func Agent(name string) AgentConfig {
	return AgentConfig{ID: name, Name: name}
}

// DNA returns a DNA config identified by its file path.
func DNA(path string) DNAConfig {
	return DNAConfig{ID: path, File: path}
}

// InstanceSpec is an agent and DNA pairing produced by Instance.
type InstanceSpec struct {
	ID    string
	Agent AgentConfig
	DNA   DNAConfig
}

// Instance pairs agent with dna. The instance id is the agent's name.
func Instance(agent AgentConfig, dna DNAConfig) InstanceSpec {
	return InstanceSpec{ID: agent.Name, Agent: agent, DNA: dna}
}

// NewConfig assembles an in-memory config, collecting the agents and DNAs
// the instances refer to.
func NewConfig(instances ...InstanceSpec) Config {
	var cfg Config
	seenAgents := make(map[string]bool)
	seenDNAs := make(map[string]bool)
	for _, inst := range instances {
		if !seenAgents[inst.Agent.ID] {
			seenAgents[inst.Agent.ID] = true
			cfg.Agents = append(cfg.Agents, inst.Agent)
		}
		if !seenDNAs[inst.DNA.ID] {
			seenDNAs[inst.DNA.ID] = true
			cfg.DNAs = append(cfg.DNAs, inst.DNA)
		}
		cfg.Instances = append(cfg.Instances, InstanceConfig{
			ID:    inst.ID,
			Agent: inst.Agent.ID,
			DNA:   inst.DNA.ID,
		})
	}
	return cfg
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.BaseDir == "" {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}
