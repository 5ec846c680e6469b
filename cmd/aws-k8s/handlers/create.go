package handlers

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/gjolly/aws-k8s/internal/config"
	"github.com/gjolly/aws-k8s/internal/platform/ssh"
	"github.com/gjolly/aws-k8s/internal/provisioning"
	"github.com/gjolly/aws-k8s/internal/state"
)

// Create handles the create command.
//
// A name with no local state starts a fresh cluster. A name whose previous
// create was interrupted resumes: completed steps recorded in the ledger
// are skipped. A name whose cluster finished (its ledger points at a
// kubeconfig) is rejected.
func Create(ctx context.Context, clusterName, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store := newStore()
	record, err := store.Load(clusterName)
	if err != nil {
		return err
	}
	switch {
	case record == nil:
		record = state.NewClusterRecord(clusterName, cfg.Region)
		log.Infof("Creating cluster: %s", clusterName)
	case record.KubeconfigFile != "":
		return fmt.Errorf("cluster %q already exists, delete it first or pick another name", clusterName)
	default:
		log.Infof("Resuming interrupted creation of cluster: %s", clusterName)
	}

	ec2c, ssmc, err := newClients(ctx, cfg.Region)
	if err != nil {
		return err
	}
	dial, err := newDialer(ssh.DefaultUser, cfg.KeyPath)
	if err != nil {
		return err
	}

	pCtx := provisioning.NewContext(ctx, cfg, record, store, ec2c, ssmc, dial)
	if err := provisioning.RunPhases(pCtx, newCreatePhases(ec2c)); err != nil {
		return fmt.Errorf("cluster creation failed: %w", err)
	}

	log.Infof("Cluster %s is ready", clusterName)
	keys := append([]string{state.MainNodeKey}, state.WorkerKeys(cfg.NumGPUWorkers, cfg.NumCPUWorkers)...)
	for _, key := range keys {
		if node, ok := record.Node(key); ok {
			log.Infof("  %s: %s", key, node.PublicIP)
		}
	}
	log.Infof("Kubeconfig: %s", record.KubeconfigFile)
	return nil
}
