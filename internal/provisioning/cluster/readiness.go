// Package cluster turns launched instances into a Kubernetes cluster: it
// waits for nodes to finish booting, joins the workers to the control
// plane, and exports the admin kubeconfig.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gjolly/aws-k8s/internal/platform/ssh"
	"github.com/gjolly/aws-k8s/internal/util/retry"
)

// Prober checks that a freshly launched node is ready for cluster commands.
type Prober struct {
	dial ssh.Factory

	// ReachPoll bounds the wait for sshd to accept connections.
	ReachPoll retry.Config
}

// NewProber creates a Prober with production polling intervals.
func NewProber(dial ssh.Factory) *Prober {
	return &Prober{
		dial:      dial,
		ReachPoll: retry.Config{Interval: 5 * time.Second, Timeout: 5 * time.Minute},
	}
}

// WaitForReachable polls until the node accepts SSH connections. Connection
// refusals and timeouts keep the poll going; only exhaustion is an error.
func (p *Prober) WaitForReachable(ctx context.Context, name, host string) (ssh.Communicator, error) {
	comm, err := p.dial(host)
	if err != nil {
		return nil, fmt.Errorf("cannot reach %s: %w", name, err)
	}

	log.Infof("Waiting for %s (%s) to accept SSH connections...", name, host)
	err = retry.Poll(ctx, p.ReachPoll, func(ctx context.Context) (bool, error) {
		if err := comm.Connect(ctx); err != nil {
			log.Debugf("%s not reachable yet: %v", name, err)
			return false, nil
		}
		return true, nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		return nil, fmt.Errorf("node %s (%s) never became reachable: %w", name, host, err)
	}
	if err != nil {
		return nil, err
	}
	return comm, nil
}

// WaitForBootstrap blocks until cloud-init has finished on the node, then
// checks the outcome. A reported error status is fatal; any status other
// than done or error is logged and treated as success, since custom boot
// images report nonstandard statuses for healthy boots.
func (p *Prober) WaitForBootstrap(ctx context.Context, name string, comm ssh.Communicator) error {
	log.Infof("Waiting for boot scripts to finish on %s...", name)
	if _, err := comm.Run(ctx, "cloud-init status --wait"); err != nil {
		return fmt.Errorf("boot scripts failed on %s: %w", name, err)
	}

	out, err := comm.Run(ctx, "cloud-init status")
	if err != nil {
		return fmt.Errorf("failed to query boot status on %s: %w", name, err)
	}

	status := parseCloudInitStatus(out)
	switch status {
	case "done":
		log.Infof("Boot scripts completed on %s", name)
	case "error":
		return fmt.Errorf("boot scripts reported an error on %s", name)
	default:
		log.Warnf("Unexpected boot status %q on %s, continuing anyway", status, name)
	}
	return nil
}

// parseCloudInitStatus extracts the status value from "status: <value>"
// output. Unparseable output is returned verbatim so it shows up in logs.
func parseCloudInitStatus(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if value, ok := strings.CutPrefix(line, "status:"); ok {
			return strings.TrimSpace(value)
		}
	}
	return strings.TrimSpace(out)
}
