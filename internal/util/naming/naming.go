// Package naming centralizes the names given to cloud resources.
//
// All resources are prefixed with the cluster name so several clusters can
// coexist in one account and stray resources are easy to attribute.
package naming

import "fmt"

// MainNode returns the Name tag for the control-plane instance.
func MainNode(cluster string) string {
	return fmt.Sprintf("%s-main", cluster)
}

// GPUWorker returns the Name tag for the nth GPU worker (zero-based index,
// one-based display name).
func GPUWorker(cluster string, index int) string {
	return fmt.Sprintf("%s-gpu-worker-%d", cluster, index+1)
}

// CPUWorker returns the Name tag for the nth CPU worker.
func CPUWorker(cluster string, index int) string {
	return fmt.Sprintf("%s-cpu-worker-%d", cluster, index+1)
}

// SecurityGroup returns the name of the cluster security group.
func SecurityGroup(cluster string) string {
	return fmt.Sprintf("%s-sg", cluster)
}
