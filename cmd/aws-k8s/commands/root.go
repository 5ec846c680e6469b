// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing and flag binding. Command execution is delegated to handler
// functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the aws-k8s CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aws-k8s",
		Short: "Provision ad-hoc Kubernetes clusters on AWS spot instances",
	}

	cmd.AddCommand(Create())
	cmd.AddCommand(Delete())
	cmd.AddCommand(List())
	cmd.AddCommand(Kubeconfig())
	cmd.AddCommand(Version())

	return cmd
}
