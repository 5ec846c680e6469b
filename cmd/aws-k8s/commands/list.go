package commands

import (
	"github.com/spf13/cobra"

	"github.com/gjolly/aws-k8s/cmd/aws-k8s/handlers"
)

// List returns the list command.
func List() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List clusters known to this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.List(cmd.OutOrStdout())
		},
	}
}
