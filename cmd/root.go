package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/forknative/internal/config"
	"github.com/zjrosen/forknative/internal/log"
)

func init() {
	// Query the terminal background once, before any output is styled, so
	// the OSC 11 reply cannot interleave with child output.
	_ = lipgloss.HasDarkBackground()
}

// DefaultConfigPath is where config files are written when none was loaded.
const DefaultConfigPath = ".forknative/config.yaml"

var (
	version     = "dev"
	cfgFile     string
	cfg         config.Config
	configPath  string
	configErr   error
	debugFlag   bool
	logFile     string
	logStderr   bool
	logLevel    string
	metricsAddr string

	env        *environment
	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "forknative",
	Short: "Launch child processes connected by a JSON IPC channel",
	Long: `forknative starts child processes with a bidirectional IPC channel on an
inherited descriptor (NODE_CHANNEL_FD), exchanging newline delimited JSON.

Launch defaults, named profiles, tracing and metrics are read from
.forknative/config.yaml or ~/.config/forknative/config.yaml.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setupEnvironment,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .forknative/config.yaml, then ~/.config/forknative/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging (also FORKNATIVE_DEBUG)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"debug log path (default: $FORKNATIVE_LOG or debug.log)")
	rootCmd.PersistentFlags().BoolVar(&logStderr, "log-stderr", false,
		"mirror debug log entries to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "debug",
		"minimum debug log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "",
		"serve Prometheus metrics on this address (overrides metrics.addr and enables metrics)")
}

func initConfig() {
	v := viper.New()
	defaults := config.Defaults()
	v.SetDefault("launch.silent", defaults.Launch.Silent)
	v.SetDefault("launch.stdio", defaults.Launch.Stdio)
	v.SetDefault("launch.exec_path", defaults.Launch.ExecPath)
	v.SetDefault("launch.dir", defaults.Launch.Dir)
	v.SetDefault("launch.kill_signal", defaults.Launch.KillSignal)
	v.SetDefault("launch.message_buffer", defaults.Launch.MessageBuffer)
	v.SetDefault("launch.lookup_cache_ttl", defaults.Launch.LookupCacheTTL)
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.addr", defaults.Metrics.Addr)
	v.SetDefault("metrics.namespace", defaults.Metrics.Namespace)

	v.SetEnvPrefix("FORKNATIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .forknative/config.yaml (current directory)
		// 2. ~/.config/forknative/config.yaml (user config)
		if _, err := os.Stat(DefaultConfigPath); err == nil {
			v.SetConfigFile(DefaultConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			v.AddConfigPath(filepath.Join(home, ".config", "forknative"))
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	}

	configErr = nil
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configErr = fmt.Errorf("reading config: %w", err)
		}
	}
	configPath = v.ConfigFileUsed()

	cfg = defaults
	if err := v.Unmarshal(&cfg); err != nil && configErr == nil {
		configErr = fmt.Errorf("decoding config: %w", err)
	}
}

// setupEnvironment validates the loaded config and builds the logging,
// tracing, metrics and launcher shared by the subcommands.
func setupEnvironment(cmd *cobra.Command, _ []string) error {
	if configErr != nil {
		return configErr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanup, err := initLogging(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	logCleanup = cleanup
	log.SetMinLevel(log.ParseLevel(logLevel))
	log.Info(log.CatCLI, "forknative starting", "version", version, "command", cmd.Name(), "config", configPath)

	e, err := newEnvironment(cmd.Context(), cfg, metricsAddr)
	if err != nil {
		return err
	}
	env = e
	return nil
}

// initLogging enables the debug log when --debug or FORKNATIVE_DEBUG is set.
// With --log-stderr and no log file entries go straight to stderr.
func initLogging(stderr io.Writer) (func(), error) {
	debug := debugFlag || os.Getenv("FORKNATIVE_DEBUG") != ""
	if !debug {
		return func() {}, nil
	}

	path := logFile
	if path == "" {
		path = os.Getenv("FORKNATIVE_LOG")
	}
	if path == "" && logStderr {
		return log.InitWriter(stderr), nil
	}
	if path == "" {
		path = "debug.log"
	}

	cleanup, err := log.InitWithTeaLog(path, "forknative")
	if err != nil {
		return nil, err
	}
	if !logStderr {
		return cleanup, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	if l := log.NewListener(ctx); l != nil {
		go l.Run(func(ev log.LogEvent) {
			_, _ = io.WriteString(stderr, ev.Payload)
		})
	}
	return func() {
		cancel()
		cleanup()
	}, nil
}

// configTarget is the file config subcommands write to.
func configTarget() string {
	if configPath != "" {
		return configPath
	}
	return DefaultConfigPath
}

// Execute runs the root command.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, then flushes spans and
// stops the metrics endpoint.
func ExecuteContext(ctx context.Context) error {
	clearContexts(rootCmd)
	err := rootCmd.ExecuteContext(ctx)
	if env != nil {
		env.Close()
		env = nil
	}
	if logCleanup != nil {
		logCleanup()
		logCleanup = nil
	}
	return err
}

// clearContexts drops the context a previous execution left on each command.
// cobra only hands the root context to subcommands whose context is unset.
func clearContexts(c *cobra.Command) {
	c.SetContext(nil) //nolint:staticcheck // nil lets cobra inherit ctx again
	for _, sub := range c.Commands() {
		clearContexts(sub)
	}
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
