package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zjrosen/forknative/internal/config"
	"github.com/zjrosen/forknative/internal/ui/styles"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the forknative config file",
	// Config commands must work with a broken config file.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write the default config file",
	Long: `Write the commented default config to PATH (default .forknative/config.yaml).
An existing file is left alone unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := DefaultConfigPath
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List launch profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if configErr != nil {
			return configErr
		}
		out := cmd.OutOrStdout()
		if len(cfg.Profiles) == 0 {
			_, _ = fmt.Fprintln(out, styles.MutedStyle.Render("no profiles in "+configTarget()))
			return nil
		}
		name := lipgloss.NewStyle().Bold(true).Width(profileNameWidth(cfg.Profiles) + 2)
		for _, p := range cfg.Profiles {
			line := strings.TrimSpace(strings.Join(append([]string{p.Path}, p.Args...), " "))
			_, _ = fmt.Fprintln(out, name.Render(p.Name)+line)
		}
		return nil
	},
}

var addProfileOpts struct {
	silent bool
	stdio  string
	dir    string
	env    []string
}

var configAddProfileCmd = &cobra.Command{
	Use:   "add-profile NAME PATH [ARGS...]",
	Short: "Add or replace a launch profile",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return configErr
		}
		p := config.ProfileConfig{
			Name:  args[0],
			Path:  args[1],
			Args:  args[2:],
			Stdio: addProfileOpts.stdio,
			Dir:   addProfileOpts.dir,
		}
		if cmd.Flags().Changed("silent") {
			silent := addProfileOpts.silent
			p.Silent = &silent
		}
		for _, kv := range addProfileOpts.env {
			if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
				return fmt.Errorf("--env %q: expected KEY=VALUE", kv)
			}
		}
		p.Env = addProfileOpts.env

		target := configTarget()
		if err := config.AddProfile(target, p, cfg.Profiles); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s to %s\n", p.Name, target)
		return nil
	},
}

var configRemoveProfileCmd = &cobra.Command{
	Use:   "remove-profile NAME",
	Short: "Remove a launch profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return configErr
		}
		target := configTarget()
		if err := config.DeleteProfile(target, args[0], cfg.Profiles); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed profile %s from %s\n", args[0], target)
		return nil
	},
}

func profileNameWidth(profiles []config.ProfileConfig) int {
	w := 0
	for _, p := range profiles {
		w = max(w, len(p.Name))
	}
	return w
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configProfilesCmd, configAddProfileCmd, configRemoveProfileCmd)

	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing file")

	configAddProfileCmd.Flags().BoolVarP(&addProfileOpts.silent, "silent", "s", false, "pipe the child's stdio")
	configAddProfileCmd.Flags().StringVar(&addProfileOpts.stdio, "stdio", "", "descriptor table")
	configAddProfileCmd.Flags().StringVar(&addProfileOpts.dir, "dir", "", "working directory")
	configAddProfileCmd.Flags().StringArrayVarP(&addProfileOpts.env, "env", "e", nil, "KEY=VALUE (repeatable)")
	configAddProfileCmd.Flags().SetInterspersed(false)
}
