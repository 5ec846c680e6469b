package cluster

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/gjolly/aws-k8s/internal/platform/ssh"
	"github.com/gjolly/aws-k8s/internal/provisioning"
	"github.com/gjolly/aws-k8s/internal/state"
)

// Bootstrapper is the cluster phase: it waits for the control plane to come
// up, then joins each worker, GPU workers first.
type Bootstrapper struct {
	// newProber is swapped in tests.
	newProber func(ctx *provisioning.Context) *Prober
}

// NewBootstrapper creates the cluster join phase.
func NewBootstrapper() *Bootstrapper {
	return &Bootstrapper{
		newProber: func(ctx *provisioning.Context) *Prober { return NewProber(ctx.Dial) },
	}
}

// Name implements provisioning.Phase.
func (b *Bootstrapper) Name() string { return "cluster" }

// Provision waits for the main node, fetches a fresh join command from it,
// then joins workers sequentially in a fixed order. Each successful join is
// committed to the ledger immediately, so a re-run skips workers that
// already joined. Any node failure aborts the phase.
func (b *Bootstrapper) Provision(ctx *provisioning.Context) error {
	prober := b.newProber(ctx)

	main, ok := ctx.Record.Node(state.MainNodeKey)
	if !ok {
		return fmt.Errorf("main node not found in cluster state")
	}

	mainComm, err := prober.WaitForReachable(ctx, state.MainNodeKey, main.PublicIP)
	if err != nil {
		return err
	}
	if err := prober.WaitForBootstrap(ctx, state.MainNodeKey, mainComm); err != nil {
		return err
	}

	joinCommand, err := b.joinCommand(ctx, mainComm)
	if err != nil {
		return err
	}

	for _, key := range state.WorkerKeys(ctx.Config.NumGPUWorkers, ctx.Config.NumCPUWorkers) {
		if ctx.Record.HasJoined(key) {
			log.Infof("Worker %s already joined, skipping", key)
			continue
		}
		worker, ok := ctx.Record.Node(key)
		if !ok {
			return fmt.Errorf("worker %s not found in cluster state", key)
		}

		comm, err := prober.WaitForReachable(ctx, key, worker.PublicIP)
		if err != nil {
			return err
		}
		if err := prober.WaitForBootstrap(ctx, key, comm); err != nil {
			return err
		}

		log.Infof("Joining %s to the cluster...", key)
		if _, err := comm.Run(ctx, "sudo "+joinCommand); err != nil {
			return fmt.Errorf("failed to join %s: %w", key, err)
		}

		ctx.Record.MarkJoined(key)
		if err := ctx.SaveRecord(); err != nil {
			return err
		}
		log.Infof("Worker %s joined", key)
	}
	return nil
}

// joinCommand asks the control plane for a join command with a fresh
// bootstrap token. Tokens expire, so a stored one would be useless on
// resume; minting a new token per run is always safe.
func (b *Bootstrapper) joinCommand(ctx *provisioning.Context, mainComm ssh.Communicator) (string, error) {
	out, err := mainComm.Run(ctx, "sudo kubeadm token create --print-join-command")
	if err != nil {
		return "", fmt.Errorf("failed to get join command from main node: %w", err)
	}
	joinCommand := strings.TrimSpace(out)
	if joinCommand == "" {
		return "", fmt.Errorf("main node returned an empty join command")
	}
	return joinCommand, nil
}
