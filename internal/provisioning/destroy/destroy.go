// Package destroy tears down every resource a cluster's ledger names.
package destroy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"

	"github.com/gjolly/aws-k8s/internal/provisioning"
)

// Destroyer is the teardown phase.
type Destroyer struct {
	// TerminatedWait bounds the SDK waiter for instance termination. The
	// security group cannot be deleted while instances still reference it.
	TerminatedWait time.Duration
}

// NewDestroyer creates the teardown phase.
func NewDestroyer() *Destroyer {
	return &Destroyer{TerminatedWait: 10 * time.Minute}
}

// Name implements provisioning.Phase.
func (d *Destroyer) Name() string { return "destroy" }

// Provision tears down instances, spot requests, the security group, and
// the subnet, in that order, then removes the cluster's local state. Only a
// failed instance termination aborts; every other failure is logged and
// skipped so a rerun after manual cleanup can finish the job. Resources
// already gone (reported not-found by the provider) are treated as done.
func (d *Destroyer) Provision(ctx *provisioning.Context) error {
	record := ctx.Record

	instanceIDs := record.InstanceIDs()
	if len(instanceIDs) > 0 {
		log.Infof("Terminating %d instance(s)...", len(instanceIDs))
		if _, err := ctx.EC2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: instanceIDs}); err != nil {
			if !isNotFound(err) {
				return fmt.Errorf("failed to terminate instances: %w", err)
			}
			log.Info("Instances already gone")
		} else {
			waiter := ec2.NewInstanceTerminatedWaiter(ctx.EC2)
			if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: instanceIDs}, d.TerminatedWait); err != nil {
				return fmt.Errorf("instances did not terminate in time: %w", err)
			}
			log.Info("All instances terminated")
		}
	}

	if spotIDs := record.SpotRequestIDs(); len(spotIDs) > 0 {
		if _, err := ctx.EC2.CancelSpotInstanceRequests(ctx, &ec2.CancelSpotInstanceRequestsInput{
			SpotInstanceRequestIds: spotIDs,
		}); err != nil && !isNotFound(err) {
			log.Warnf("Failed to cancel spot requests: %v", err)
		}
	}

	if record.SecurityGroupID != "" {
		if _, err := ctx.EC2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
			GroupId: &record.SecurityGroupID,
		}); err != nil && !isNotFound(err) {
			log.Warnf("Failed to delete security group %s: %v", record.SecurityGroupID, err)
		} else {
			log.Infof("Deleted security group %s", record.SecurityGroupID)
		}
	}

	if record.SubnetID != "" {
		if _, err := ctx.EC2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{
			SubnetId: &record.SubnetID,
		}); err != nil && !isNotFound(err) {
			log.Warnf("Failed to delete subnet %s: %v", record.SubnetID, err)
		} else {
			log.Infof("Deleted subnet %s", record.SubnetID)
		}
	}

	if err := ctx.Store.Delete(record.ClusterName); err != nil {
		return err
	}
	log.Infof("Cluster %s deleted", record.ClusterName)
	return nil
}

// isNotFound reports whether the provider says the resource no longer
// exists. EC2 uses per-resource codes, all ending in ".NotFound".
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && strings.HasSuffix(apiErr.ErrorCode(), ".NotFound")
}
