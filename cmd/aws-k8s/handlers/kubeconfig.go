package handlers

import (
	"fmt"
	"io"
	"os"
)

// Kubeconfig handles the kubeconfig command: it prints the path of the
// cluster's retrieved credential file.
func Kubeconfig(w io.Writer, clusterName string) error {
	store := newStore()
	record, err := store.Load(clusterName)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("cluster %q not found", clusterName)
	}
	if record.KubeconfigFile == "" {
		return fmt.Errorf("cluster %q has no kubeconfig, its creation did not complete", clusterName)
	}
	if _, err := os.Stat(record.KubeconfigFile); err != nil {
		return fmt.Errorf("kubeconfig for cluster %q is missing: %w", clusterName, err)
	}

	fmt.Fprintln(w, record.KubeconfigFile)
	return nil
}
