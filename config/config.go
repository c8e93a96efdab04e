// Package config holds the simulator configuration.
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "Y86SIM"

// Trace levels, from quietest to noisiest.
var traceLevels = []string{"off", "info", "debug", "trace"}

// Trace output formats. Auto picks json unless writing to a terminal.
var traceFormats = []string{"auto", "text", "json"}

// Config holds simulator settings.
type Config struct {
	// MemorySize is the memory capacity in bytes. Default: 1 MiB.
	MemorySize uint64 `mapstructure:"memory_size" yaml:"memory_size"`

	// MaxCycles stops the simulation after this many cycles. 0 means no
	// limit.
	MaxCycles uint64 `mapstructure:"max_cycles" yaml:"max_cycles"`

	// FrequencyMHz is the core clock used by the simulation engine.
	// Default: 1000.
	FrequencyMHz uint64 `mapstructure:"frequency_mhz" yaml:"frequency_mhz"`

	// Trace controls event logging.
	Trace TraceConfig `mapstructure:"trace" yaml:"trace"`
}

// TraceConfig controls event logging.
type TraceConfig struct {
	// Level is one of off, info, debug, trace. Default: off.
	Level string `mapstructure:"level" yaml:"level"`

	// Format is one of auto, text, json. Default: auto.
	Format string `mapstructure:"format" yaml:"format"`

	// File receives the trace instead of stderr when set.
	File string `mapstructure:"file" yaml:"file"`

	// MaxSizeMB is the size at which the trace file is rotated.
	// Default: 100.
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept. Default: 3.
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		MemorySize:   0x100000,
		MaxCycles:    0,
		FrequencyMHz: 1000,
		Trace: TraceConfig{
			Level:      "off",
			Format:     "auto",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.MemorySize < 8 {
		return fmt.Errorf("memory_size must be >= 8, got %d", c.MemorySize)
	}
	if c.FrequencyMHz == 0 {
		return fmt.Errorf("frequency_mhz must be > 0")
	}
	if !slices.Contains(traceLevels, c.Trace.Level) {
		return fmt.Errorf("trace.level must be one of %s, got %q",
			strings.Join(traceLevels, ", "), c.Trace.Level)
	}
	if !slices.Contains(traceFormats, c.Trace.Format) {
		return fmt.Errorf("trace.format must be one of %s, got %q",
			strings.Join(traceFormats, ", "), c.Trace.Format)
	}
	if c.Trace.MaxSizeMB <= 0 {
		return fmt.Errorf("trace.max_size_mb must be > 0")
	}
	if c.Trace.MaxBackups < 0 {
		return fmt.Errorf("trace.max_backups must be >= 0")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"memory-size":  "memory_size",
	"max-cycles":   "max_cycles",
	"frequency":    "frequency_mhz",
	"trace":        "trace.level",
	"trace-format": "trace.format",
	"trace-file":   "trace.file",
}

// AddFlags registers the configuration flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Uint64("memory-size", d.MemorySize, "memory capacity in bytes")
	fs.Uint64("max-cycles", d.MaxCycles, "stop after this many cycles (0 = no limit)")
	fs.Uint64("frequency", d.FrequencyMHz, "core clock in MHz")
	fs.String("trace", d.Trace.Level, "trace level: "+strings.Join(traceLevels, ", "))
	fs.String("trace-format", d.Trace.Format, "trace format: "+strings.Join(traceFormats, ", "))
	fs.String("trace-file", d.Trace.File, "write the trace to a rotated file")
}

// BindFlags binds the flags registered by AddFlags to v. Flags only
// override other sources when they are set explicitly.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load builds a Config from, in increasing priority: defaults, the config
// file at path (if not empty), Y86SIM_* environment variables, and flags
// bound with BindFlags.
func Load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("memory_size", d.MemorySize)
	v.SetDefault("max_cycles", d.MaxCycles)
	v.SetDefault("frequency_mhz", d.FrequencyMHz)
	v.SetDefault("trace.level", d.Trace.Level)
	v.SetDefault("trace.format", d.Trace.Format)
	v.SetDefault("trace.file", d.Trace.File)
	v.SetDefault("trace.max_size_mb", d.Trace.MaxSizeMB)
	v.SetDefault("trace.max_backups", d.Trace.MaxBackups)
}
