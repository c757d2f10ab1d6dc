// Package config holds forknative's file configuration: launch defaults,
// named launch profiles, tracing, metrics and feature flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/zjrosen/forknative/internal/childprocess"
	"github.com/zjrosen/forknative/internal/forknative"
	"github.com/zjrosen/forknative/internal/log"
	"github.com/zjrosen/forknative/internal/tracing"
)

// Config holds all configuration options.
type Config struct {
	Launch   LaunchConfig    `mapstructure:"launch"`
	Profiles []ProfileConfig `mapstructure:"profiles"`
	Tracing  tracing.Config  `mapstructure:"tracing"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
	Flags    map[string]bool `mapstructure:"flags"`
}

// LaunchConfig holds the defaults applied to every launch.
type LaunchConfig struct {
	// Silent pipes the child's stdin, stdout and stderr.
	Silent bool `mapstructure:"silent"`

	// Stdio is a descriptor table such as "pipe,pipe,inherit,ipc". Empty
	// selects the default table.
	Stdio string `mapstructure:"stdio"`

	// ExecPath overrides the host executable recorded on handles.
	ExecPath string `mapstructure:"exec_path"`

	Dir string `mapstructure:"dir"`

	// Env holds KEY=VALUE entries added to the parent's environment. A list
	// rather than a map because viper lowercases map keys.
	Env []string `mapstructure:"env"`

	KillSignal    string `mapstructure:"kill_signal"`
	MessageBuffer int    `mapstructure:"message_buffer"`

	// LookupCacheTTL bounds how long PATH lookups of bare names are reused.
	LookupCacheTTL time.Duration `mapstructure:"lookup_cache_ttl"`
}

// ProfileConfig is a named launch: a path, its arguments and option
// overrides on top of LaunchConfig.
type ProfileConfig struct {
	Name   string   `mapstructure:"name"`
	Path   string   `mapstructure:"path"`
	Args   []string `mapstructure:"args"`
	Silent *bool    `mapstructure:"silent"` // nil = use launch.silent
	Stdio  string   `mapstructure:"stdio"`
	Dir    string   `mapstructure:"dir"`
	Env    []string `mapstructure:"env"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace"`
}

const (
	DefaultMessageBuffer  = 64
	DefaultLookupCacheTTL = 30 * time.Second
	DefaultKillSignal     = "SIGTERM"
	DefaultMetricsAddr    = "127.0.0.1:9464"
	DefaultNamespace      = "forknative"
)

// Defaults returns a Config with default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = DefaultTracesFilePath()
	return Config{
		Launch: LaunchConfig{
			KillSignal:     DefaultKillSignal,
			MessageBuffer:  DefaultMessageBuffer,
			LookupCacheTTL: DefaultLookupCacheTTL,
		},
		Tracing: tc,
		Metrics: MetricsConfig{
			Enabled:   false,
			Addr:      DefaultMetricsAddr,
			Namespace: DefaultNamespace,
		},
		Flags: map[string]bool{},
	}
}

// DefaultTracesFilePath returns the default location of the file exporter's
// output, or an empty string when the home directory is unknown.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "forknative", "traces", "traces.jsonl")
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := ValidateLaunch(c.Launch); err != nil {
		return err
	}
	if err := ValidateProfiles(c.Profiles); err != nil {
		return err
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	return ValidateMetrics(c.Metrics)
}

// ValidateLaunch checks launch defaults for errors.
func ValidateLaunch(l LaunchConfig) error {
	if l.Stdio != "" {
		if _, err := childprocess.ParseStdio(l.Stdio); err != nil {
			return fmt.Errorf("launch.stdio: %w", err)
		}
	}
	if l.KillSignal != "" {
		if _, err := childprocess.SignalByName(l.KillSignal); err != nil {
			return fmt.Errorf("launch.kill_signal: %w", err)
		}
	}
	if err := validateEnv(l.Env); err != nil {
		return fmt.Errorf("launch.%w", err)
	}
	if l.MessageBuffer < 0 {
		return fmt.Errorf("launch.message_buffer must be >= 0, got %d", l.MessageBuffer)
	}
	if l.LookupCacheTTL < 0 {
		return fmt.Errorf("launch.lookup_cache_ttl must be >= 0, got %s", l.LookupCacheTTL)
	}
	return nil
}

// ValidateProfiles checks profile definitions. Names must be present and
// unique and each profile needs a path.
func ValidateProfiles(profiles []ProfileConfig) error {
	seen := make(map[string]bool, len(profiles))
	for i, p := range profiles {
		if p.Name == "" {
			return fmt.Errorf("profile %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("profile %d (%s): duplicate name", i, p.Name)
		}
		seen[p.Name] = true
		if p.Path == "" {
			return fmt.Errorf("profile %d (%s): path is required", i, p.Name)
		}
		if p.Stdio != "" {
			if _, err := childprocess.ParseStdio(p.Stdio); err != nil {
				return fmt.Errorf("profile %d (%s): stdio: %w", i, p.Name, err)
			}
		}
		if err := validateEnv(p.Env); err != nil {
			return fmt.Errorf("profile %d (%s): %w", i, p.Name, err)
		}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
func ValidateTracing(t tracing.Config) error {
	switch t.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		return fmt.Errorf("tracing.exporter must be %q, %q, %q or %q, got %q",
			tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP, t.Exporter)
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1, got %v", t.SampleRate)
	}
	if t.Enabled && t.Exporter == tracing.ExporterFile && t.FilePath == "" {
		return fmt.Errorf("tracing.file_path is required when using the file exporter")
	}
	return nil
}

// ValidateMetrics checks metrics configuration for errors.
func ValidateMetrics(m MetricsConfig) error {
	if m.Enabled && m.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	return nil
}

// Profile returns the profile called name.
func (c Config) Profile(name string) (ProfileConfig, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return ProfileConfig{}, false
}

// Options converts the launch defaults to launch options.
func (l LaunchConfig) Options() (forknative.Options, error) {
	opts := forknative.Options{
		Silent:        l.Silent,
		ExecPath:      l.ExecPath,
		Dir:           l.Dir,
		Env:           envList(l.Env),
		MessageBuffer: l.MessageBuffer,
	}
	if l.Stdio != "" {
		stdio, err := childprocess.ParseStdio(l.Stdio)
		if err != nil {
			return forknative.Options{}, fmt.Errorf("launch.stdio: %w", err)
		}
		opts.Stdio = stdio
	}
	if l.KillSignal != "" {
		sig, err := childprocess.SignalByName(l.KillSignal)
		if err != nil {
			return forknative.Options{}, fmt.Errorf("launch.kill_signal: %w", err)
		}
		opts.KillSignal = sig
	}
	return opts, nil
}

// Options layers the profile's overrides on base. Profile env entries follow
// the launch env, so a repeated key takes the profile's value.
func (p ProfileConfig) Options(base LaunchConfig) (forknative.Options, error) {
	merged := base
	if p.Silent != nil {
		merged.Silent = *p.Silent
	}
	if p.Stdio != "" {
		merged.Stdio = p.Stdio
	}
	if p.Dir != "" {
		merged.Dir = p.Dir
	}
	if len(p.Env) > 0 {
		merged.Env = append(slices.Clone(base.Env), p.Env...)
	}
	opts, err := merged.Options()
	if err != nil {
		return forknative.Options{}, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return opts, nil
}

// envList returns the parent's environment followed by extra. An empty
// extra yields nil so the child inherits unchanged.
func envList(extra []string) []string {
	if len(extra) == 0 {
		return nil
	}
	return append(os.Environ(), extra...)
}

func validateEnv(env []string) error {
	for i, kv := range env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			return fmt.Errorf("env[%d] %q: expected KEY=VALUE", i, kv)
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a commented YAML
// string.
func DefaultConfigTemplate() string {
	return `# forknative configuration

# Defaults applied to every launch
launch:
  # Pipe stdin, stdout and stderr instead of inheriting them
  silent: false
  # Descriptor table, e.g. "pipe,pipe,inherit,ipc". Must contain ipc.
  # Empty uses 0,1,2,ipc (or pipe,pipe,pipe,ipc when silent)
  stdio: ""
  # Host executable recorded on handles (empty = this binary)
  exec_path: ""
  dir: ""
  # KEY=VALUE entries added to the parent's environment
  env: []
  # Default signal for kill
  kill_signal: SIGTERM
  # Messages buffered before the reader waits on the consumer
  message_buffer: 64
  # How long PATH lookups of bare program names are reused
  lookup_cache_ttl: 30s

# Named launches for "forknative run --profile NAME"
profiles: []
#  - name: echo
#    path: ./bin/worker
#    args: ["--mode", "echo"]
#    silent: true
#    env: ["WORKER_LOG=debug"]

# OpenTelemetry spans around launches
tracing:
  enabled: false
  # none, file, stdout or otlp
  exporter: file
  file_path: ""
  otlp_endpoint: localhost:4317
  sample_rate: 1.0
  service_name: forknative

# Prometheus endpoint
metrics:
  enabled: false
  addr: 127.0.0.1:9464
  namespace: forknative

# Feature flags
flags:
  # Deliver NODE_ prefixed internal messages on the message stream
  deliver-internal-messages: false
  # Reuse PATH lookups of bare program names
  lookup-cache: true
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
