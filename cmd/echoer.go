package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/forknative/internal/childprocess"
	"github.com/zjrosen/forknative/internal/echoer"
)

var echoerCmd = &cobra.Command{
	Use:    "echoer",
	Short:  "Run the companion echo child (expects NODE_CHANNEL_FD)",
	Hidden: true,
	Args:   cobra.NoArgs,
	// The echoer runs as a child of run: no logging, tracing or metrics.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, _ []string) error {
		if code := echoer.Main(); code != 0 {
			cmd.SilenceErrors = true
			return &ExitError{Status: childprocess.ExitStatus{Code: code}}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(echoerCmd)
}
