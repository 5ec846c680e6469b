// Package handlers implements the CLI command logic.
//
// Handlers wire configuration, AWS clients, and the local state store into
// a provisioning context and run the phase pipeline. The factory variables
// below are replaced in tests.
package handlers

import (
	"github.com/gjolly/aws-k8s/internal/platform/aws"
	"github.com/gjolly/aws-k8s/internal/platform/ssh"
	"github.com/gjolly/aws-k8s/internal/provisioning"
	"github.com/gjolly/aws-k8s/internal/provisioning/cluster"
	"github.com/gjolly/aws-k8s/internal/provisioning/compute"
	"github.com/gjolly/aws-k8s/internal/provisioning/destroy"
	"github.com/gjolly/aws-k8s/internal/provisioning/infrastructure"
	"github.com/gjolly/aws-k8s/internal/state"
)

// Factory function variables - replaced in tests.
var (
	newStore   = state.NewStore
	newClients = aws.NewClients
	newDialer  = ssh.NewFactory

	newCreatePhases = func(ec2c aws.EC2API) []provisioning.Phase {
		return []provisioning.Phase{
			infrastructure.NewProvisioner(),
			compute.NewProvisioner(compute.NewLauncher(ec2c)),
			cluster.NewBootstrapper(),
			cluster.NewKubeconfigExporter(),
		}
	}

	newDestroyPhase = func() provisioning.Phase {
		return destroy.NewDestroyer()
	}
)
