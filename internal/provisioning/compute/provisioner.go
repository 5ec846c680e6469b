package compute

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	log "github.com/sirupsen/logrus"

	"github.com/gjolly/aws-k8s/internal/provisioning"
	"github.com/gjolly/aws-k8s/internal/state"
	"github.com/gjolly/aws-k8s/internal/util/async"
	"github.com/gjolly/aws-k8s/internal/util/naming"
)

// Provisioner is the compute phase: it launches the main node and all
// workers in parallel, skipping nodes the ledger already holds.
type Provisioner struct {
	launcher *Launcher
}

// NewProvisioner creates the compute phase around a Launcher.
func NewProvisioner(launcher *Launcher) *Provisioner {
	return &Provisioner{launcher: launcher}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string { return "compute" }

// Provision resolves the boot image, then fans out one launch per missing
// node. Each completed launch is committed to the ledger immediately, so a
// crash mid-fan-out loses only the launches still in flight. A single
// launch failure is fatal to the run, but results that completed before the
// failure surfaced are still persisted first.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	imageID, err := p.resolveImage(ctx)
	if err != nil {
		return err
	}

	mainUserData := readUserData(ctx.Config.UserDataMain)
	workerUserData := readUserData(ctx.Config.UserDataWorker)

	cfg := ctx.Config
	cluster := ctx.Record.ClusterName
	common := LaunchSpec{
		SubnetID:        ctx.Record.SubnetID,
		SecurityGroupID: ctx.Record.SecurityGroupID,
		ImageID:         imageID,
		KeyName:         cfg.KeyName,
	}

	var tasks []async.Task[*state.NodeHandle]
	add := func(key string, spec LaunchSpec) {
		if _, ok := ctx.Record.Node(key); ok {
			log.Infof("Node %s already exists, skipping launch", key)
			return
		}
		tasks = append(tasks, async.Task[*state.NodeHandle]{
			Name: key,
			Func: func(taskCtx context.Context) (*state.NodeHandle, error) {
				return p.launcher.Launch(taskCtx, spec)
			},
		})
	}

	mainSpec := common
	mainSpec.Name = naming.MainNode(cluster)
	mainSpec.InstanceType = cfg.MainInstanceType
	mainSpec.UserData = mainUserData
	add(state.MainNodeKey, mainSpec)

	for i := 0; i < cfg.NumGPUWorkers; i++ {
		spec := common
		spec.Name = naming.GPUWorker(cluster, i)
		spec.InstanceType = cfg.GPUInstanceType
		spec.UserData = workerUserData
		add(state.GPUWorkerKey(i), spec)
	}
	for i := 0; i < cfg.NumCPUWorkers; i++ {
		spec := common
		spec.Name = naming.CPUWorker(cluster, i)
		spec.InstanceType = cfg.WorkerInstanceType
		spec.UserData = workerUserData
		add(state.CPUWorkerKey(i), spec)
	}

	if len(tasks) == 0 {
		log.Info("All nodes already launched")
		return nil
	}

	log.Infof("Launching %d instance(s)...", len(tasks))
	return async.Collect(ctx, tasks, func(key string, handle *state.NodeHandle) error {
		ctx.Record.SetNode(key, handle)
		return ctx.SaveRecord()
	})
}

func (p *Provisioner) resolveImage(ctx *provisioning.Context) (string, error) {
	out, err := ctx.SSM.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(ctx.Config.AMISSMParameter),
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve boot image from parameter store: %w", err)
	}
	imageID := aws.ToString(out.Parameter.Value)
	log.Infof("Using AMI: %s", imageID)
	return imageID, nil
}

// readUserData loads a boot script. A missing script is not fatal: the node
// boots with empty user data and the problem shows up at bootstrap time.
func readUserData(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warnf("User data script %s not readable, using empty user data: %v", path, err)
		return ""
	}
	return string(data)
}
