package handlers

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/gjolly/aws-k8s/internal/config"
	"github.com/gjolly/aws-k8s/internal/provisioning"
)

// Delete handles the delete command. The region comes from the ledger, not
// from a config file, so a cluster can be deleted without the file it was
// created with.
func Delete(ctx context.Context, clusterName string) error {
	store := newStore()
	record, err := store.Load(clusterName)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("cluster %q not found", clusterName)
	}

	log.Infof("Deleting cluster: %s", clusterName)

	ec2c, _, err := newClients(ctx, record.Region)
	if err != nil {
		return err
	}

	cfg := &config.Config{Region: record.Region}
	pCtx := provisioning.NewContext(ctx, cfg, record, store, ec2c, nil, nil)
	if err := provisioning.RunPhases(pCtx, []provisioning.Phase{newDestroyPhase()}); err != nil {
		return fmt.Errorf("cluster deletion failed: %w", err)
	}
	return nil
}
