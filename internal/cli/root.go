// Package cli implements examctl, the offline companion to the scheduler API.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand assembles examctl and its subcommands.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "examctl",
		Short:         "Plan exam periods from a roster CSV without running the API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newScheduleCommand(), newTokenCommand())
	return root
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}
