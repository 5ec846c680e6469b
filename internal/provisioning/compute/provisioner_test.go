package compute

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gjolly/aws-k8s/internal/config"
	"github.com/gjolly/aws-k8s/internal/platform/aws/fakes"
	"github.com/gjolly/aws-k8s/internal/provisioning"
	"github.com/gjolly/aws-k8s/internal/state"
)

func writeScript(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func computeContext(t *testing.T, ec2 *fakes.FakeEC2, ssm *fakes.FakeSSM, cfg *config.Config) *provisioning.Context {
	t.Helper()
	record := state.NewClusterRecord("demo", cfg.Region)
	record.SetNetwork("vpc-default", "subnet-1", "sg-1")
	store := state.NewStoreAt(t.TempDir())
	return provisioning.NewContext(context.Background(), cfg, record, store, ec2, ssm, nil)
}

func computeConfig(t *testing.T, numGPU, numCPU int) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Region:             "eu-west-1",
		AMISSMParameter:    "/aws/service/canonical/ubuntu/server/noble/stable/current/amd64/hvm/ebs-gp3/ami-id",
		KeyName:            "demo-key",
		MainInstanceType:   "t3.medium",
		WorkerInstanceType: "t3.large",
		GPUInstanceType:    "g4dn.xlarge",
		NumGPUWorkers:      numGPU,
		NumCPUWorkers:      numCPU,
		UserDataMain:       writeScript(t, dir, "main.sh", "#!/bin/bash\necho main\n"),
		UserDataWorker:     writeScript(t, dir, "worker.sh", "#!/bin/bash\necho worker\n"),
	}
}

func fakeSSM(cfg *config.Config) *fakes.FakeSSM {
	return &fakes.FakeSSM{Parameters: map[string]string{cfg.AMISSMParameter: "ami-123"}}
}

func computeProvisioner(ec2 *fakes.FakeEC2) *Provisioner {
	return NewProvisioner(testLauncher(ec2))
}

func TestProvision_LaunchesAllNodes(t *testing.T) {
	cfg := computeConfig(t, 1, 2)
	ec2 := &fakes.FakeEC2{}
	ctx := computeContext(t, ec2, fakeSSM(cfg), cfg)

	require.NoError(t, computeProvisioner(ec2).Provision(ctx))

	// Main plus one GPU and two CPU workers.
	require.Len(t, ctx.Record.Nodes, 4)
	for _, key := range []string{state.MainNodeKey, state.GPUWorkerKey(0), state.CPUWorkerKey(0), state.CPUWorkerKey(1)} {
		handle, ok := ctx.Record.Node(key)
		require.True(t, ok, key)
		assert.NotEmpty(t, handle.InstanceID, key)
		assert.NotEmpty(t, handle.PublicIP, key)
	}

	// Cluster-prefixed names, per-role instance types.
	names := make(map[string]bool)
	for _, name := range ec2.Tags {
		names[name] = true
	}
	assert.True(t, names["demo-main"])
	assert.True(t, names["demo-gpu-worker-1"])
	assert.True(t, names["demo-cpu-worker-1"])
	assert.True(t, names["demo-cpu-worker-2"])

	types := make(map[string]bool)
	for _, req := range ec2.SpotRequests {
		types[string(req.LaunchSpecification.InstanceType)] = true
	}
	assert.True(t, types["t3.medium"])
	assert.True(t, types["g4dn.xlarge"])
	assert.True(t, types["t3.large"])

	// The ledger on disk holds every launched node.
	loaded, err := ctx.Store.Load("demo")
	require.NoError(t, err)
	assert.Len(t, loaded.Nodes, 4)
}

func TestProvision_SkipsNodesAlreadyInLedger(t *testing.T) {
	cfg := computeConfig(t, 0, 1)
	ec2 := &fakes.FakeEC2{}
	ctx := computeContext(t, ec2, fakeSSM(cfg), cfg)
	ctx.Record.SetNode(state.MainNodeKey, &state.NodeHandle{InstanceID: "i-old", SpotRequestID: "sir-old"})

	require.NoError(t, computeProvisioner(ec2).Provision(ctx))

	// Only the missing CPU worker was requested.
	assert.Len(t, ec2.SpotRequests, 1)
	handle, _ := ctx.Record.Node(state.MainNodeKey)
	assert.Equal(t, "i-old", handle.InstanceID)
}

func TestProvision_NoopWhenEverythingLaunched(t *testing.T) {
	cfg := computeConfig(t, 0, 0)
	ec2 := &fakes.FakeEC2{}
	ctx := computeContext(t, ec2, fakeSSM(cfg), cfg)
	ctx.Record.SetNode(state.MainNodeKey, &state.NodeHandle{InstanceID: "i-old"})

	require.NoError(t, computeProvisioner(ec2).Provision(ctx))
	assert.Empty(t, ec2.SpotRequests)
}

func TestProvision_ImageResolutionFailureIsFatal(t *testing.T) {
	cfg := computeConfig(t, 0, 1)
	ec2 := &fakes.FakeEC2{}
	ssm := &fakes.FakeSSM{Parameters: map[string]string{}}
	ctx := computeContext(t, ec2, ssm, cfg)

	err := computeProvisioner(ec2).Provision(ctx)
	require.Error(t, err)
	assert.Empty(t, ec2.SpotRequests)
}

func TestProvision_AllocationFailureSurfacesWithoutCommit(t *testing.T) {
	cfg := computeConfig(t, 0, 1)
	// Every spot request reports price-too-low. No node completes, so
	// nothing may be committed to the ledger.
	ec2 := &fakes.FakeEC2{SpotStatuses: []string{"price-too-low"}}
	ctx := computeContext(t, ec2, fakeSSM(cfg), cfg)

	err := computeProvisioner(ec2).Provision(ctx)
	require.Error(t, err)
	var allocErr *AllocationError
	assert.ErrorAs(t, err, &allocErr)
	assert.Empty(t, ctx.Record.Nodes)
}

func TestProvision_MissingUserDataScriptIsNotFatal(t *testing.T) {
	cfg := computeConfig(t, 0, 0)
	cfg.UserDataMain = filepath.Join(t.TempDir(), "does-not-exist.sh")
	ec2 := &fakes.FakeEC2{}
	ctx := computeContext(t, ec2, fakeSSM(cfg), cfg)

	require.NoError(t, computeProvisioner(ec2).Provision(ctx))
	require.Len(t, ec2.SpotRequests, 1)
}
