package cluster

import (
	"fmt"
	"os"
	"regexp"

	log "github.com/sirupsen/logrus"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/gjolly/aws-k8s/internal/provisioning"
	"github.com/gjolly/aws-k8s/internal/state"
)

// endpointPattern matches the private API server endpoint kubeadm writes
// into admin.conf.
var endpointPattern = regexp.MustCompile(`https://\d{1,3}(?:\.\d{1,3}){3}:6443`)

// KubeconfigExporter is the final create phase: it pulls admin credentials
// off the control plane and writes a kubeconfig usable from outside the
// VPC.
type KubeconfigExporter struct {
	newProber func(ctx *provisioning.Context) *Prober
}

// NewKubeconfigExporter creates the kubeconfig export phase.
func NewKubeconfigExporter() *KubeconfigExporter {
	return &KubeconfigExporter{
		newProber: func(ctx *provisioning.Context) *Prober { return NewProber(ctx.Dial) },
	}
}

// Name implements provisioning.Phase.
func (e *KubeconfigExporter) Name() string { return "kubeconfig" }

// Provision fetches admin.conf from the main node, rewrites its API server
// endpoint to the node's public address, validates the result, and writes
// it next to the ledger with owner-only permissions. A ledger that already
// points at a kubeconfig makes this a no-op.
func (e *KubeconfigExporter) Provision(ctx *provisioning.Context) error {
	if ctx.Record.KubeconfigFile != "" {
		log.Infof("Kubeconfig already exported to %s, skipping", ctx.Record.KubeconfigFile)
		return nil
	}

	main, ok := ctx.Record.Node(state.MainNodeKey)
	if !ok {
		return fmt.Errorf("main node not found in cluster state")
	}
	if main.PublicIP == "" {
		return fmt.Errorf("main node has no public address to rewrite the kubeconfig to")
	}

	comm, err := e.newProber(ctx).WaitForReachable(ctx, state.MainNodeKey, main.PublicIP)
	if err != nil {
		return err
	}

	raw, err := comm.Run(ctx, "sudo cat /etc/kubernetes/admin.conf")
	if err != nil {
		return fmt.Errorf("failed to read admin credentials from main node: %w", err)
	}

	rewritten := endpointPattern.ReplaceAllString(raw, "https://"+main.PublicIP+":6443")

	// A truncated or garbled transfer should fail here, not on first use.
	if _, err := clientcmd.Load([]byte(rewritten)); err != nil {
		return fmt.Errorf("fetched kubeconfig is not valid: %w", err)
	}

	if err := os.MkdirAll(ctx.Store.Dir(ctx.Record.ClusterName), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	path := ctx.Store.KubeconfigPath(ctx.Record.ClusterName)
	if err := os.WriteFile(path, []byte(rewritten), 0o600); err != nil {
		return fmt.Errorf("failed to write kubeconfig: %w", err)
	}
	log.Infof("Kubeconfig written to %s", path)

	ctx.Record.KubeconfigFile = path
	return ctx.SaveRecord()
}
