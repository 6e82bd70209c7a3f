// Package config loads warpsched settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/warpsched/device"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a configuration fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

// Backend names accepted by Config.Backend
const (
	BackendInventory = "inventory" // Devices exactly as listed
	BackendOCCA      = "occa"      // Live CUDA ordinals via OCCA, described by the inventory
	BackendHost      = "host"      // The CPU through OCCA OpenMP/Serial
)

// Config is the root configuration structure
type Config struct {
	Backend      string             `yaml:"backend"`
	Requirements RequirementsConfig `yaml:"requirements"`
	Host         HostConfig         `yaml:"host"`
	Devices      []DeviceConfig     `yaml:"devices"`
	LogLevel     string             `yaml:"log_level"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// RequirementsConfig gates which devices are used
type RequirementsConfig struct {
	Architectures     []string `yaml:"architectures"`      // e.g. ["kepler", "maxwell"] or ["gpu"]
	MinMemory         ByteSize `yaml:"min_memory"`         // e.g. "1GiB"
	RecommendedMemory ByteSize `yaml:"recommended_memory"` // e.g. "4GiB"
}

// HostConfig gives the nominal clocks of the host backend
type HostConfig struct {
	CoreClockGHz   float64 `yaml:"core_clock_ghz"`
	MemoryClockGHz float64 `yaml:"memory_clock_ghz"`
	MemoryBusWidth int     `yaml:"memory_bus_width"`
}

// DeviceConfig describes one inventory device
type DeviceConfig struct {
	Name              string   `yaml:"name"`
	ComputeCapability string   `yaml:"compute_capability"` // "major.minor"
	MultiProcessors   int      `yaml:"multiprocessors"`
	CoreClockGHz      float64  `yaml:"core_clock_ghz"`
	MemoryClockGHz    float64  `yaml:"memory_clock_ghz"`
	MemoryBusWidth    int      `yaml:"memory_bus_width"`
	FreeMemory        ByteSize `yaml:"free_memory"`
	TotalMemory       ByteSize `yaml:"total_memory"`
}

// MetricsConfig configures the Prometheus collectors
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns a configuration that uses the host backend
func Default() *Config {
	return &Config{
		Backend: BackendHost,
		Requirements: RequirementsConfig{
			Architectures:     []string{"all"},
			MinMemory:         256 << 20,
			RecommendedMemory: 1 << 30,
		},
		Host: HostConfig{
			CoreClockGHz:   2.0,
			MemoryClockGHz: 1.6,
			MemoryBusWidth: 64,
		},
		LogLevel: "info",
		Metrics: MetricsConfig{
			Namespace: "warpsched",
		},
	}
}

// Load reads and validates a YAML file on top of Default
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendInventory, BackendOCCA:
		if len(c.Devices) == 0 {
			return fmt.Errorf("%w: backend %q needs a device inventory", ErrInvalidConfig, c.Backend)
		}
	case BackendHost:
		if c.Host.CoreClockGHz < 0 || c.Host.MemoryClockGHz < 0 || c.Host.MemoryBusWidth < 0 {
			return fmt.Errorf("%w: negative host clock or bus width", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}

	if _, err := device.ParseArchitectures(c.Requirements.Architectures); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Requirements.RecommendedMemory < c.Requirements.MinMemory {
		return fmt.Errorf("%w: recommended_memory below min_memory", ErrInvalidConfig)
	}

	for i, d := range c.Devices {
		if _, _, err := parseCapability(d.ComputeCapability); err != nil {
			return fmt.Errorf("%w: device %d: %w", ErrInvalidConfig, i, err)
		}
		if d.MultiProcessors <= 0 {
			return fmt.Errorf("%w: device %d: multiprocessors must be positive", ErrInvalidConfig, i)
		}
	}
	return nil
}

// DeviceRequirements converts the requirements section
func (c *Config) DeviceRequirements() (device.Requirements, error) {
	selected, err := device.ParseArchitectures(c.Requirements.Architectures)
	if err != nil {
		return device.Requirements{}, err
	}
	return device.Requirements{
		Selected:          selected,
		MinMemory:         uint64(c.Requirements.MinMemory),
		RecommendedMemory: uint64(c.Requirements.RecommendedMemory),
	}, nil
}

// Inventory converts the device list into prober properties
func (c *Config) Inventory() ([]device.Properties, error) {
	props := make([]device.Properties, len(c.Devices))
	for i, d := range c.Devices {
		major, minor, err := parseCapability(d.ComputeCapability)
		if err != nil {
			return nil, fmt.Errorf("device %d: %w", i, err)
		}
		props[i] = device.Properties{
			ID:              i,
			Name:            d.Name,
			ComputeMajor:    major,
			ComputeMinor:    minor,
			MultiProcessors: d.MultiProcessors,
			CoreClockGHz:    d.CoreClockGHz,
			MemoryClockGHz:  d.MemoryClockGHz,
			MemoryBusWidth:  d.MemoryBusWidth,
			FreeMemory:      uint64(d.FreeMemory),
			TotalMemory:     uint64(d.TotalMemory),
		}
	}
	return props, nil
}

// Prober builds the device prober selected by Backend
func (c *Config) Prober() (device.Prober, error) {
	switch c.Backend {
	case BackendHost:
		return device.NewHostProber(c.Host.CoreClockGHz, c.Host.MemoryClockGHz, c.Host.MemoryBusWidth), nil
	case BackendInventory, BackendOCCA:
		inv, err := c.Inventory()
		if err != nil {
			return nil, err
		}
		if c.Backend == BackendOCCA {
			return device.NewOCCAProber(inv), nil
		}
		return device.NewStaticProber(inv), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
}

func parseCapability(s string) (major, minor int, err error) {
	majorStr, minorStr, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return 0, 0, fmt.Errorf("compute capability %q is not major.minor", s)
	}
	if major, err = strconv.Atoi(majorStr); err != nil {
		return 0, 0, fmt.Errorf("compute capability %q: %w", s, err)
	}
	if minor, err = strconv.Atoi(minorStr); err != nil {
		return 0, 0, fmt.Errorf("compute capability %q: %w", s, err)
	}
	return major, minor, nil
}
