// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development tolerates weak hardening so tests and laptops work.
	Development Environment = "development"
	// Production rejects policies that would knowingly skip hardening.
	Production Environment = "production"
)

// Platform selects the memory primitives.
type Platform string

const (
	// PlatformNative uses the operating system's memory controls.
	PlatformNative Platform = "native"
	// PlatformPortable uses the Go heap with no hardening.
	PlatformPortable Platform = "portable"
)

// Config is the hardening policy for secure memory and file locks.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Memory configures secure buffer allocation.
	Memory MemoryConfig `yaml:"memory"`

	// Lock configures advisory file lock acquisition.
	Lock LockConfig `yaml:"lock"`
}

// MemoryConfig selects the hardening requested for every secure buffer.
// Each control is best effort: a platform that cannot apply one still
// allocates the buffer and reports the degradation.
type MemoryConfig struct {
	// Platform is "native" or "portable".
	// Default: native
	Platform Platform `yaml:"platform"`

	// Lock pins buffers in physical memory.
	// Default: true
	Lock bool `yaml:"lock"`

	// ExcludeFromDumps keeps buffers out of core dumps.
	// Default: true
	ExcludeFromDumps bool `yaml:"exclude_from_dumps"`

	// NonInheritable keeps buffers out of forked children.
	// Default: true
	NonInheritable bool `yaml:"non_inheritable"`

	// DisableCoreDumps sets the process core dump limit to zero when
	// the allocator is built.
	// Default: false
	DisableCoreDumps bool `yaml:"disable_core_dumps"`
}

// LockConfig configures file lock acquisition.
type LockConfig struct {
	// RetryInterval is the pause between acquisition attempts.
	// Default: 50ms
	RetryInterval Duration `yaml:"retry_interval"`

	// DefaultTimeout bounds acquisitions that do not pass their own.
	// Zero means a single attempt, negative means wait forever.
	// Default: 10s
	DefaultTimeout Duration `yaml:"default_timeout"`

	// Permissions is the octal mode for newly created lock files.
	// Default: 0600
	Permissions FileMode `yaml:"permissions"`

	// Directory holds lock files for shared data files. Empty places
	// each lock file beside the file it protects. ${VAR} and
	// ${VAR:-default} are expanded.
	Directory string `yaml:"directory"`
}

// Duration is a time.Duration written in YAML as a Go duration string
// ("250ms", "10s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// FileMode is a permission mode written in YAML as an octal string
// ("0600"). Quoting is optional.
type FileMode fs.FileMode

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *FileMode) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: permissions must be a scalar", value.Line)
	}
	parsed, err := strconv.ParseUint(value.Value, 8, 32)
	if err != nil {
		return fmt.Errorf("line %d: permissions %q are not octal", value.Line, value.Value)
	}
	*m = FileMode(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (m FileMode) MarshalYAML() (any, error) {
	return fmt.Sprintf("%04o", uint32(m)), nil
}

// Default returns the policy used as the base before a file is applied:
// every memory control requested on the native platform.
func Default() *Config {
	return &Config{
		Environment: Development,
		Memory: MemoryConfig{
			Platform:         PlatformNative,
			Lock:             true,
			ExcludeFromDumps: true,
			NonInheritable:   true,
		},
		Lock: LockConfig{
			RetryInterval:  Duration(50 * time.Millisecond),
			DefaultTimeout: Duration(10 * time.Second),
			Permissions:    0o600,
		},
	}
}

// LoadFile loads the policy from path over Default and validates it.
// There is no discovery: the caller names the file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML policy over Default, expands variables, and
// validates the result. Unknown fields are rejected. An empty document
// yields the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	c.Lock.Directory = expandVars(c.Lock.Directory)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the policy for errors. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}

	if c.Memory.Platform != PlatformNative && c.Memory.Platform != PlatformPortable {
		errs = append(errs, fmt.Errorf("memory.platform must be one of: %s, %s", PlatformNative, PlatformPortable))
	}

	if c.Environment == Production {
		if c.Memory.Platform == PlatformPortable {
			errs = append(errs, fmt.Errorf("memory.platform %q is not allowed in production", PlatformPortable))
		}
		if !c.Memory.Lock {
			errs = append(errs, fmt.Errorf("memory.lock cannot be disabled in production"))
		}
	}

	if c.Lock.RetryInterval <= 0 {
		errs = append(errs, fmt.Errorf("lock.retry_interval must be positive"))
	}
	if c.Lock.Permissions&^0o777 != 0 {
		errs = append(errs, fmt.Errorf("lock.permissions %04o has bits outside 0777", uint32(c.Lock.Permissions)))
	}
	if c.Lock.Permissions&0o600 != 0o600 {
		errs = append(errs, fmt.Errorf("lock.permissions %04o must grant the owner read and write", uint32(c.Lock.Permissions)))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
