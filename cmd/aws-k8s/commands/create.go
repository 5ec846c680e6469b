package commands

import (
	"github.com/spf13/cobra"

	"github.com/gjolly/aws-k8s/cmd/aws-k8s/handlers"
	"github.com/gjolly/aws-k8s/internal/config"
)

// Create returns the create command.
func Create() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "create <cluster-name>",
		Short: "Create a Kubernetes cluster on spot instances",
		Long: `Create provisions a Kubernetes cluster on AWS spot instances.

It creates a subnet and security group in the region's default VPC,
launches the control-plane node and all workers in parallel, waits for
their boot scripts to finish, joins the workers with kubeadm, and writes
the admin kubeconfig next to the cluster's state.

Every completed step is recorded locally, so a create interrupted by a
failure or Ctrl-C can be re-run with the same name and resumes where it
stopped instead of leaking instances.

Example:
  aws-k8s create dev-cluster -c cluster-config.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Create(cmd.Context(), args[0], configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "Path to cluster configuration file")

	return cmd
}
