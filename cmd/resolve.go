package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/forknative/internal/forknative"
)

var resolveOpts launchFlags

var resolveCmd = &cobra.Command{
	Use:   "resolve [flags] PATH [ARGS...]",
	Short: "Print the spawn options a launch would use",
	Long: `Resolve the launch options for PATH exactly as run would, and print them as
YAML without starting anything. Fails the same way run does when the
descriptor table has no ipc entry.

Examples:
  forknative resolve ./worker
  forknative resolve --silent ./worker --flag
  forknative resolve --profile echo`,
	Args: cobra.ArbitraryArgs,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveOpts.register(resolveCmd.Flags())
	resolveCmd.Flags().SetInterspersed(false)
}

// resolvedView is the printed form of a resolved launch.
type resolvedView struct {
	Path            string   `yaml:"path"`
	Args            []string `yaml:"args"`
	ExecPath        string   `yaml:"exec_path"`
	Stdio           string   `yaml:"stdio"`
	IPCFD           int      `yaml:"ipc_fd"`
	Dir             string   `yaml:"dir,omitempty"`
	InheritEnv      bool     `yaml:"inherit_env"`
	EnvEntries      int      `yaml:"env_entries,omitempty"`
	Detached        bool     `yaml:"detached"`
	KillSignal      string   `yaml:"kill_signal"`
	Shell           bool     `yaml:"shell"`
	DeliverInternal bool     `yaml:"deliver_internal"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	path, argv, opts, err := resolveOpts.build(cmd, args, cfg)
	if err != nil {
		return err
	}
	opts = env.options(opts)

	resolved, err := forknative.Resolve(opts)
	if err != nil {
		return err
	}

	killSignal := "SIGTERM"
	if resolved.KillSignal != 0 {
		killSignal = forknative.ExitStatus{Code: -1, Signal: resolved.KillSignal}.SignalName()
	}

	view := resolvedView{
		Path:            path,
		Args:            argv,
		ExecPath:        resolved.ExecPath,
		Stdio:           resolved.Stdio.String(),
		IPCFD:           resolved.Stdio.IPCIndex(),
		Dir:             resolved.Dir,
		InheritEnv:      resolved.Env == nil,
		EnvEntries:      len(resolved.Env),
		Detached:        resolved.Detached,
		KillSignal:      killSignal,
		Shell:           resolved.Shell != "",
		DeliverInternal: resolved.DeliverInternal,
	}
	if view.Args == nil {
		view.Args = []string{}
	}

	data, err := yaml.Marshal(view)
	if err != nil {
		return fmt.Errorf("encoding resolved options: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
