// Package config loads simulator settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tinyrange/rv32/internal/rv32"
	"gopkg.in/yaml.v3"
)

// Config is the top-level simulator configuration.
type Config struct {
	// Image is the program to load. A relative path is resolved against the
	// directory of the config file.
	Image string `yaml:"image,omitempty"`

	Memory  MemoryConfig `yaml:"memory"`
	Devices DeviceConfig `yaml:"devices"`
	Run     RunConfig    `yaml:"run"`
}

// MemoryConfig places RAM and ROM.
type MemoryConfig struct {
	ROMBase Word `yaml:"rom_base"`
	ROMSize Word `yaml:"rom_size"`
	RAMBase Word `yaml:"ram_base"`
	RAMSize Word `yaml:"ram_size"`
}

// DeviceConfig places the MMIO registers.
type DeviceConfig struct {
	UART     Word `yaml:"uart"`
	Syscon   Word `yaml:"syscon"`
	PowerOff Word `yaml:"poweroff_value"`

	// Sentinel is loaded from any address outside RAM and ROM.
	Sentinel Word `yaml:"mmio_sentinel"`

	StrictMMIO bool `yaml:"strict_mmio"`
}

// RunConfig bounds a run.
type RunConfig struct {
	MaxInstructions uint64   `yaml:"max_instructions"` // 0 = unlimited
	Timeout         Duration `yaml:"timeout"`          // 0 = none
}

// Word is a 32-bit value written in YAML as decimal, hex (0x...), octal or
// binary, with optional underscores.
type Word uint32

// UnmarshalYAML implements yaml.Unmarshaler for Word.
func (w *Word) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", value.Line)
	}
	v, err := strconv.ParseUint(value.Value, 0, 32)
	if err != nil {
		return fmt.Errorf("line %d: invalid 32-bit value %q", value.Line, value.Value)
	}
	*w = Word(v)
	return nil
}

// MarshalYAML writes the value in hex.
func (w Word) MarshalYAML() (any, error) {
	return fmt.Sprintf("0x%08x", uint32(w)), nil
}

// Duration wraps time.Duration for YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the reference configuration.
func Default() Config {
	return FromMemoryMap(rv32.DefaultMemoryMap())
}

// FromMemoryMap builds a configuration describing mm.
func FromMemoryMap(mm rv32.MemoryMap) Config {
	return Config{
		Memory: MemoryConfig{
			ROMBase: Word(mm.ROMBase),
			ROMSize: Word(mm.ROMSize),
			RAMBase: Word(mm.RAMBase),
			RAMSize: Word(mm.RAMSize),
		},
		Devices: DeviceConfig{
			UART:       Word(mm.UARTAddr),
			Syscon:     Word(mm.SysconAddr),
			PowerOff:   Word(mm.PowerOff),
			Sentinel:   Word(mm.MMIOSentinel),
			StrictMMIO: mm.StrictMMIO,
		},
	}
}

// MemoryMap converts the configuration into the layout used by the hart.
func (c Config) MemoryMap() rv32.MemoryMap {
	return rv32.MemoryMap{
		ROMBase:      uint32(c.Memory.ROMBase),
		ROMSize:      uint32(c.Memory.ROMSize),
		RAMBase:      uint32(c.Memory.RAMBase),
		RAMSize:      uint32(c.Memory.RAMSize),
		UARTAddr:     uint32(c.Devices.UART),
		SysconAddr:   uint32(c.Devices.Syscon),
		PowerOff:     uint32(c.Devices.PowerOff),
		MMIOSentinel: uint32(c.Devices.Sentinel),
		StrictMMIO:   c.Devices.StrictMMIO,
	}
}

// Validate checks the memory layout and run limits.
func (c Config) Validate() error {
	var errs []error
	if err := c.MemoryMap().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Run.Timeout < 0 {
		errs = append(errs, fmt.Errorf("run.timeout must not be negative, got %s", c.Run.Timeout.Duration()))
	}
	return errors.Join(errs...)
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads and parses the config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Image != "" && !filepath.IsAbs(cfg.Image) {
		cfg.Image = filepath.Join(filepath.Dir(path), cfg.Image)
	}
	return cfg, nil
}

// Write stores cfg as YAML at path.
func Write(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	return nil
}
