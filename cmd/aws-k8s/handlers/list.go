package handlers

import (
	"fmt"
	"io"

	"github.com/gjolly/aws-k8s/internal/state"
)

// List handles the list command. It prints every cluster with local state,
// with enough detail to tell a finished cluster from an interrupted one.
func List(w io.Writer) error {
	store := newStore()
	clusters, err := store.List()
	if err != nil {
		return err
	}
	if len(clusters) == 0 {
		fmt.Fprintln(w, "No clusters found")
		return nil
	}

	for _, name := range clusters {
		record, err := store.Load(name)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s\n", name)
		fmt.Fprintf(w, "  created: %s\n", record.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(w, "  region:  %s\n", record.Region)
		fmt.Fprintf(w, "  nodes:   %d\n", len(record.Nodes))
		if main, ok := record.Node(state.MainNodeKey); ok && main.PublicIP != "" {
			fmt.Fprintf(w, "  control plane: %s\n", main.PublicIP)
		}
		if record.KubeconfigFile != "" {
			fmt.Fprintf(w, "  kubeconfig: %s\n", record.KubeconfigFile)
		} else {
			fmt.Fprintf(w, "  kubeconfig: not retrieved (creation incomplete)\n")
		}
	}
	return nil
}
