// Package state persists the per-cluster resource ledger.
//
// The ledger is the single source of truth for what has already been
// provisioned: every state-changing provisioning step writes it back to disk
// before moving on, so an interrupted run can resume where it stopped
// instead of re-creating resources.
package state

import (
	"fmt"
	"slices"
	"time"
)

// Node keys used in the ledger. Key absence means "not yet launched".
const (
	// MainNodeKey is the ledger key of the control-plane node.
	MainNodeKey = "main_node"
)

// GPUWorkerKey returns the ledger key of the nth GPU worker.
func GPUWorkerKey(index int) string {
	return fmt.Sprintf("gpu_worker_%d", index)
}

// CPUWorkerKey returns the ledger key of the nth CPU worker.
func CPUWorkerKey(index int) string {
	return fmt.Sprintf("cpu_worker_%d", index)
}

// WorkerKeys returns all worker keys in join order: GPU workers first by
// index, then CPU workers by index.
func WorkerKeys(numGPU, numCPU int) []string {
	keys := make([]string, 0, numGPU+numCPU)
	for i := 0; i < numGPU; i++ {
		keys = append(keys, GPUWorkerKey(i))
	}
	for i := 0; i < numCPU; i++ {
		keys = append(keys, CPUWorkerKey(i))
	}
	return keys
}

// NodeHandle is the resolved identity of one launched instance.
type NodeHandle struct {
	SpotRequestID string `json:"spot_request_id"`
	InstanceID    string `json:"instance_id"`

	// PublicIP may be empty if address assignment never completed; later
	// readiness checks fail loudly in that case.
	PublicIP  string `json:"public_ip,omitempty"`
	PrivateIP string `json:"private_ip,omitempty"`
}

// ClusterRecord is the persisted ledger for one cluster.
type ClusterRecord struct {
	ClusterName string    `json:"cluster_name"`
	CreatedAt   time.Time `json:"created_at"`
	Region      string    `json:"region"`

	// Network ids are only meaningful when all three are set; HasNetwork
	// treats partial presence as "not yet provisioned".
	VPCID           string `json:"vpc_id,omitempty"`
	SubnetID        string `json:"subnet_id,omitempty"`
	SecurityGroupID string `json:"security_group_id,omitempty"`

	Nodes  map[string]*NodeHandle `json:"nodes,omitempty"`
	Joined map[string]bool        `json:"joined,omitempty"`

	KubeconfigFile string `json:"kubeconfig_file,omitempty"`
}

// NewClusterRecord returns an empty ledger for a cluster being created now.
func NewClusterRecord(name, region string) *ClusterRecord {
	return &ClusterRecord{
		ClusterName: name,
		CreatedAt:   time.Now(),
		Region:      region,
	}
}

// HasNetwork reports whether the network substrate has been fully
// provisioned. All three ids are set together or not at all.
func (r *ClusterRecord) HasNetwork() bool {
	return r.VPCID != "" && r.SubnetID != "" && r.SecurityGroupID != ""
}

// SetNetwork records the network substrate ids.
func (r *ClusterRecord) SetNetwork(vpcID, subnetID, securityGroupID string) {
	r.VPCID = vpcID
	r.SubnetID = subnetID
	r.SecurityGroupID = securityGroupID
}

// Node returns the handle for a node key, if launched.
func (r *ClusterRecord) Node(key string) (*NodeHandle, bool) {
	handle, ok := r.Nodes[key]
	return handle, ok
}

// SetNode records a launched node.
func (r *ClusterRecord) SetNode(key string, handle *NodeHandle) {
	if r.Nodes == nil {
		r.Nodes = make(map[string]*NodeHandle)
	}
	r.Nodes[key] = handle
}

// HasJoined reports whether a worker has joined the cluster.
func (r *ClusterRecord) HasJoined(key string) bool {
	return r.Joined[key]
}

// MarkJoined records a successful worker join.
func (r *ClusterRecord) MarkJoined(key string) {
	if r.Joined == nil {
		r.Joined = make(map[string]bool)
	}
	r.Joined[key] = true
}

// InstanceIDs returns every instance id in the ledger, for teardown.
func (r *ClusterRecord) InstanceIDs() []string {
	ids := make([]string, 0, len(r.Nodes))
	for _, key := range r.nodeKeysSorted() {
		if id := r.Nodes[key].InstanceID; id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// SpotRequestIDs returns every spot request id in the ledger, for teardown.
func (r *ClusterRecord) SpotRequestIDs() []string {
	ids := make([]string, 0, len(r.Nodes))
	for _, key := range r.nodeKeysSorted() {
		if id := r.Nodes[key].SpotRequestID; id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *ClusterRecord) nodeKeysSorted() []string {
	keys := make([]string, 0, len(r.Nodes))
	for key := range r.Nodes {
		keys = append(keys, key)
	}
	// Deterministic order keeps teardown logs and tests stable.
	slices.Sort(keys)
	return keys
}
