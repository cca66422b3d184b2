// Package config holds the kernel's boot configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Image sources.
const (
	SourceEmbedded = "embedded"
	SourceDir      = "dir"
	SourceSQLite   = "sqlite"
	SourceS3       = "s3"
)

// KernelConfig holds configuration for one boot of the kernel.
type KernelConfig struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Clock     ClockConfig     `yaml:"clock"`
	Boot      BootConfig      `yaml:"boot"`
	Images    ImagesConfig    `yaml:"images"`
	Log       LogConfig       `yaml:"log"`
	Kstat     KstatConfig     `yaml:"kstat"`
}

// SchedulerConfig selects the scheduling policy and pool size.
type SchedulerConfig struct {
	Policy       string `yaml:"policy"`        // "round-robin" or "fifo"
	Quantum      int    `yaml:"quantum"`       // ticks per turn (round-robin)
	PoolCapacity int    `yaml:"pool_capacity"` // thread slots
}

// ClockConfig sets the timer interrupt period.
type ClockConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

// BootConfig lists the programs executed by Init, in order.
type BootConfig struct {
	Programs []string `yaml:"programs"`
}

// ImagesConfig selects where program images are loaded from. The embedded
// images are always searched last.
type ImagesConfig struct {
	Source string   `yaml:"source"`
	Dir    string   `yaml:"dir"`
	DB     string   `yaml:"db"`
	S3     S3Config `yaml:"s3"`
}

// S3Config locates an image bucket.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// LogConfig controls the kernel log.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// KstatConfig controls the introspection server. An empty Addr disables it.
type KstatConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultKernelConfig returns sensible defaults.
func DefaultKernelConfig() KernelConfig {
	return KernelConfig{
		Scheduler: SchedulerConfig{
			Policy:       "round-robin",
			Quantum:      1,
			PoolCapacity: 100,
		},
		Clock:  ClockConfig{TickInterval: 10 * time.Millisecond},
		Boot:   BootConfig{Programs: []string{"bin/init"}},
		Images: ImagesConfig{Source: SourceEmbedded},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (KernelConfig, error) {
	cfg := DefaultKernelConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration. knownPolicy reports whether a
// scheduling policy name is registered.
func (c KernelConfig) Validate(knownPolicy func(string) bool) error {
	var errs []error
	if c.Scheduler.Quantum < 1 {
		errs = append(errs, fmt.Errorf("scheduler.quantum must be at least 1, got %d", c.Scheduler.Quantum))
	}
	if c.Scheduler.PoolCapacity < 1 {
		errs = append(errs, fmt.Errorf("scheduler.pool_capacity must be at least 1, got %d", c.Scheduler.PoolCapacity))
	}
	if knownPolicy != nil && !knownPolicy(c.Scheduler.Policy) {
		errs = append(errs, fmt.Errorf("scheduler.policy %q is not registered", c.Scheduler.Policy))
	}
	if c.Clock.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("clock.tick_interval must be positive, got %s", c.Clock.TickInterval))
	}
	switch strings.ToLower(c.Images.Source) {
	case SourceEmbedded:
	case SourceDir:
		if c.Images.Dir == "" {
			errs = append(errs, errors.New("images.dir is required for source dir"))
		}
	case SourceSQLite:
		if c.Images.DB == "" {
			errs = append(errs, errors.New("images.db is required for source sqlite"))
		}
	case SourceS3:
		if c.Images.S3.Bucket == "" {
			errs = append(errs, errors.New("images.s3.bucket is required for source s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("images.source %q is not one of embedded, dir, sqlite, s3", c.Images.Source))
	}
	return errors.Join(errs...)
}
