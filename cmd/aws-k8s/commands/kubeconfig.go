package commands

import (
	"github.com/spf13/cobra"

	"github.com/gjolly/aws-k8s/cmd/aws-k8s/handlers"
)

// Kubeconfig returns the kubeconfig command.
func Kubeconfig() *cobra.Command {
	return &cobra.Command{
		Use:   "kubeconfig <cluster-name>",
		Short: "Print the path of a cluster's kubeconfig file",
		Long: `Kubeconfig prints the path of the admin kubeconfig retrieved during
cluster creation, for use with KUBECONFIG or kubectl --kubeconfig.

Example:
  export KUBECONFIG=$(aws-k8s kubeconfig dev-cluster)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Kubeconfig(cmd.OutOrStdout(), args[0])
		},
	}
}
