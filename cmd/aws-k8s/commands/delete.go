package commands

import (
	"github.com/spf13/cobra"

	"github.com/gjolly/aws-k8s/cmd/aws-k8s/handlers"
)

// Delete returns the delete command.
func Delete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <cluster-name>",
		Short: "Delete a cluster and all its AWS resources",
		Long: `Delete tears down everything the cluster's ledger names: instances,
spot requests, the security group, and the subnet, then removes the local
state directory.

Resources that are already gone are skipped, so delete can be re-run
after a partial failure.

Example:
  aws-k8s delete dev-cluster`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Delete(cmd.Context(), args[0])
		},
	}
}
