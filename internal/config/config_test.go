package config

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/forknative/internal/childprocess"
	"github.com/zjrosen/forknative/internal/tracing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.False(t, cfg.Launch.Silent)
	require.Equal(t, "SIGTERM", cfg.Launch.KillSignal)
	require.Equal(t, 64, cfg.Launch.MessageBuffer)
	require.Equal(t, 30*time.Second, cfg.Launch.LookupCacheTTL)
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, tracing.ExporterFile, cfg.Tracing.Exporter)
	require.False(t, cfg.Metrics.Enabled)
	require.Equal(t, DefaultMetricsAddr, cfg.Metrics.Addr)
	require.NotNil(t, cfg.Flags)
	require.NoError(t, cfg.Validate())
}

func TestValidateLaunch_Empty(t *testing.T) {
	require.NoError(t, ValidateLaunch(LaunchConfig{}))
}

func TestValidateLaunch_BadStdio(t *testing.T) {
	err := ValidateLaunch(LaunchConfig{Stdio: "pipe,bogus,ipc"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "launch.stdio")
}

// A table without ipc is accepted here; Launch rejects it when used.
func TestValidateLaunch_StdioWithoutIPC(t *testing.T) {
	require.NoError(t, ValidateLaunch(LaunchConfig{Stdio: "pipe,pipe,pipe"}))
}

func TestValidateLaunch_BadSignal(t *testing.T) {
	err := ValidateLaunch(LaunchConfig{KillSignal: "SIGNOPE"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "launch.kill_signal")
}

func TestValidateLaunch_BadEnv(t *testing.T) {
	err := ValidateLaunch(LaunchConfig{Env: []string{"OK=1", "MISSING"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "launch.env[1]")

	require.Error(t, ValidateLaunch(LaunchConfig{Env: []string{"=value"}}))
}

func TestValidateProfiles_BadEnv(t *testing.T) {
	err := ValidateProfiles([]ProfileConfig{{Name: "echo", Path: "a", Env: []string{"X"}}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "profile 0 (echo): env[0]")
}

func TestValidateLaunch_NegativeBuffer(t *testing.T) {
	err := ValidateLaunch(LaunchConfig{MessageBuffer: -1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "message_buffer")
}

func TestValidateLaunch_NegativeTTL(t *testing.T) {
	err := ValidateLaunch(LaunchConfig{LookupCacheTTL: -time.Second})
	require.Error(t, err)
	require.Contains(t, err.Error(), "lookup_cache_ttl")
}

func TestValidateProfiles_Empty(t *testing.T) {
	require.NoError(t, ValidateProfiles(nil))
}

func TestValidateProfiles_Valid(t *testing.T) {
	profiles := []ProfileConfig{
		{Name: "echo", Path: "/usr/local/bin/worker", Args: []string{"--echo"}},
		{Name: "quiet", Path: "worker", Stdio: "ignore,ignore,inherit,ipc"},
	}
	require.NoError(t, ValidateProfiles(profiles))
}

func TestValidateProfiles_MissingName(t *testing.T) {
	err := ValidateProfiles([]ProfileConfig{{Path: "worker"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "name is required")
}

func TestValidateProfiles_MissingPath(t *testing.T) {
	err := ValidateProfiles([]ProfileConfig{{Name: "echo"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "path is required")
}

func TestValidateProfiles_DuplicateName(t *testing.T) {
	err := ValidateProfiles([]ProfileConfig{
		{Name: "echo", Path: "a"},
		{Name: "echo", Path: "b"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate name")
}

func TestValidateProfiles_BadStdio(t *testing.T) {
	err := ValidateProfiles([]ProfileConfig{{Name: "echo", Path: "a", Stdio: "pipe,-1"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "profile 0 (echo): stdio")
}

func TestValidateTracing_Exporters(t *testing.T) {
	for _, exp := range []string{"", tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP} {
		err := ValidateTracing(tracing.Config{Exporter: exp})
		require.NoError(t, err, "exporter %q should be valid", exp)
	}
}

func TestValidateTracing_InvalidExporter(t *testing.T) {
	err := ValidateTracing(tracing.Config{Exporter: "jaeger"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "tracing.exporter")
}

func TestValidateTracing_SampleRateRange(t *testing.T) {
	require.Error(t, ValidateTracing(tracing.Config{SampleRate: 1.5}))
	require.Error(t, ValidateTracing(tracing.Config{SampleRate: -0.1}))
	require.NoError(t, ValidateTracing(tracing.Config{SampleRate: 0.25}))
}

func TestValidateTracing_FileExporterNeedsPath(t *testing.T) {
	err := ValidateTracing(tracing.Config{Enabled: true, Exporter: tracing.ExporterFile})
	require.Error(t, err)
	require.Contains(t, err.Error(), "file_path")

	// Disabled tracing does not need a path.
	require.NoError(t, ValidateTracing(tracing.Config{Exporter: tracing.ExporterFile}))
}

func TestValidateMetrics(t *testing.T) {
	require.NoError(t, ValidateMetrics(MetricsConfig{}))
	require.NoError(t, ValidateMetrics(MetricsConfig{Enabled: true, Addr: ":9464"}))

	err := ValidateMetrics(MetricsConfig{Enabled: true})
	require.Error(t, err)
	require.Contains(t, err.Error(), "metrics.addr")
}

func TestConfig_Profile(t *testing.T) {
	cfg := Config{Profiles: []ProfileConfig{
		{Name: "a", Path: "/bin/a"},
		{Name: "b", Path: "/bin/b"},
	}}

	p, ok := cfg.Profile("b")
	require.True(t, ok)
	require.Equal(t, "/bin/b", p.Path)

	_, ok = cfg.Profile("missing")
	require.False(t, ok)
}

func TestLaunchConfig_Options(t *testing.T) {
	l := LaunchConfig{
		Silent:        true,
		Stdio:         "pipe,pipe,inherit,ipc",
		ExecPath:      "/opt/host",
		Dir:           "/tmp",
		KillSignal:    "SIGINT",
		MessageBuffer: 8,
	}

	opts, err := l.Options()
	require.NoError(t, err)
	require.True(t, opts.Silent)
	require.Equal(t, childprocess.Stdio{childprocess.Pipe, childprocess.Pipe, childprocess.Inherit, childprocess.IPC}, opts.Stdio)
	require.Equal(t, "/opt/host", opts.ExecPath)
	require.Equal(t, "/tmp", opts.Dir)
	require.Equal(t, syscall.SIGINT, opts.KillSignal)
	require.Equal(t, 8, opts.MessageBuffer)
	require.Nil(t, opts.Env, "no extra env inherits the parent's unchanged")
}

func TestLaunchConfig_Options_EmptyStdioIsNil(t *testing.T) {
	opts, err := LaunchConfig{}.Options()
	require.NoError(t, err)
	require.Nil(t, opts.Stdio)
	require.Zero(t, opts.KillSignal)
}

func TestLaunchConfig_Options_EnvAppendsToParent(t *testing.T) {
	t.Setenv("FORKNATIVE_PARENT_VAR", "parent")

	opts, err := LaunchConfig{Env: []string{"B=2", "A=1"}}.Options()
	require.NoError(t, err)
	require.Contains(t, opts.Env, "FORKNATIVE_PARENT_VAR=parent")
	require.Equal(t, []string{"B=2", "A=1"}, opts.Env[len(opts.Env)-2:])
}

func TestLaunchConfig_Options_BadSignal(t *testing.T) {
	_, err := LaunchConfig{KillSignal: "nope"}.Options()
	require.Error(t, err)
}

func TestProfileConfig_Options_Overrides(t *testing.T) {
	silent := false
	base := LaunchConfig{Silent: true, Dir: "/base", KillSignal: "SIGTERM", Env: []string{"A=base", "B=base"}}
	p := ProfileConfig{Name: "x", Path: "/bin/x", Silent: &silent, Dir: "/profile", Env: []string{"B=profile"}}

	opts, err := p.Options(base)
	require.NoError(t, err)
	require.False(t, opts.Silent)
	require.Equal(t, "/profile", opts.Dir)
	require.Equal(t, syscall.SIGTERM, opts.KillSignal)
	require.Equal(t, []string{"A=base", "B=base", "B=profile"}, opts.Env[len(opts.Env)-3:])
	require.Equal(t, []string{"A=base", "B=base"}, base.Env, "base env must not be modified")
}

func TestProfileConfig_Options_InheritsBase(t *testing.T) {
	base := LaunchConfig{Silent: true, Stdio: "ignore,ignore,ignore,ipc"}
	opts, err := ProfileConfig{Name: "x", Path: "/bin/x"}.Options(base)
	require.NoError(t, err)
	require.True(t, opts.Silent)
	require.Equal(t, 3, opts.Stdio.IPCIndex())
}

func TestProfileConfig_Options_ErrorNamesProfile(t *testing.T) {
	_, err := ProfileConfig{Name: "broken", Path: "/bin/x", Stdio: "what"}.Options(LaunchConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "profile broken")
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

// The template must decode, through viper, to the same values Defaults
// returns (apart from the machine specific traces path).
func TestDefaultConfigTemplate_MatchesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg := Defaults()
	require.NoError(t, v.Unmarshal(&cfg))
	require.NoError(t, cfg.Validate())

	want := Defaults()
	require.Equal(t, want.Launch.KillSignal, cfg.Launch.KillSignal)
	require.Equal(t, want.Launch.MessageBuffer, cfg.Launch.MessageBuffer)
	require.Equal(t, want.Launch.LookupCacheTTL, cfg.Launch.LookupCacheTTL)
	require.Empty(t, cfg.Profiles)
	require.Equal(t, want.Tracing.Exporter, cfg.Tracing.Exporter)
	require.InDelta(t, want.Tracing.SampleRate, cfg.Tracing.SampleRate, 1e-9)
	require.Equal(t, want.Metrics.Addr, cfg.Metrics.Addr)
	require.False(t, cfg.Flags["deliver-internal-messages"])
	require.True(t, cfg.Flags["lookup-cache"])
}
