// Package compute launches the cluster's spot instances and records their
// resolved identities in the ledger.
package compute

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	log "github.com/sirupsen/logrus"

	awsclient "github.com/gjolly/aws-k8s/internal/platform/aws"
	"github.com/gjolly/aws-k8s/internal/state"
	"github.com/gjolly/aws-k8s/internal/util/retry"
)

// Maximum hourly price for a spot instance, in USD.
const spotPrice = "1.0"

// Terminal spot request statuses. Any of these aborts the whole
// provisioning run; the request will never be fulfilled.
var terminalSpotStatuses = map[string]bool{
	"price-too-low":               true,
	"canceled-before-fulfillment": true,
	"bad-parameters":              true,
}

// AllocationError reports a spot request that reached a terminal failure
// status. It is fatal and never retried.
type AllocationError struct {
	RequestID string
	Status    string
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("spot request %s failed: %s", e.RequestID, e.Status)
}

// LaunchSpec describes one instance to launch.
type LaunchSpec struct {
	// Name becomes the instance's Name tag.
	Name string

	InstanceType    string
	SubnetID        string
	SecurityGroupID string
	ImageID         string
	KeyName         string

	// UserData is the boot script, attached base64-encoded.
	UserData string
}

// Launcher requests one spot instance and resolves it to a NodeHandle.
// It is safe for concurrent use; the compute phase runs one Launch per node
// in parallel.
type Launcher struct {
	ec2 awsclient.EC2API

	// SpotPoll bounds the wait for spot request fulfillment.
	SpotPoll retry.Config

	// RunningWait bounds the SDK waiter for the running state.
	RunningWait time.Duration

	// AddrPoll bounds the wait for public address assignment. Exhaustion
	// here is non-fatal: the node is recorded without a public address.
	AddrPoll retry.Config
}

// NewLauncher creates a Launcher with production polling intervals.
func NewLauncher(api awsclient.EC2API) *Launcher {
	return &Launcher{
		ec2:         api,
		SpotPoll:    retry.Config{Interval: 5 * time.Second, Timeout: 10 * time.Minute},
		RunningWait: 10 * time.Minute,
		AddrPoll:    retry.Config{Interval: time.Second, MaxAttempts: 30},
	}
}

// Launch submits a one-time spot request and blocks until the instance is
// running, tagged, and addressed. Failures are fatal except for a missing
// public address, which is recorded as absent and left for the readiness
// checks to surface.
func (l *Launcher) Launch(ctx context.Context, spec LaunchSpec) (*state.NodeHandle, error) {
	log.Infof("Launching %s (%s)...", spec.Name, spec.InstanceType)

	requestID, err := l.requestSpotInstance(ctx, spec)
	if err != nil {
		return nil, err
	}

	instanceID, err := l.waitForFulfillment(ctx, requestID)
	if err != nil {
		return nil, err
	}
	log.Infof("Instance %s launched for %s", instanceID, spec.Name)

	waiter := ec2.NewInstanceRunningWaiter(l.ec2)
	if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}}, l.RunningWait); err != nil {
		return nil, fmt.Errorf("instance %s never reached running state: %w", instanceID, err)
	}

	if _, err := l.ec2.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{instanceID},
		Tags:      []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String(spec.Name)}},
	}); err != nil {
		return nil, fmt.Errorf("failed to tag instance %s: %w", instanceID, err)
	}

	publicIP, privateIP, err := l.waitForAddresses(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if publicIP == "" {
		log.Warnf("No public IP assigned to %s; readiness checks will fail if it never arrives", instanceID)
	} else {
		log.Infof("Public IP assigned to %s: %s", spec.Name, publicIP)
	}

	return &state.NodeHandle{
		SpotRequestID: requestID,
		InstanceID:    instanceID,
		PublicIP:      publicIP,
		PrivateIP:     privateIP,
	}, nil
}

func (l *Launcher) requestSpotInstance(ctx context.Context, spec LaunchSpec) (string, error) {
	userData := base64.StdEncoding.EncodeToString([]byte(spec.UserData))

	out, err := l.ec2.RequestSpotInstances(ctx, &ec2.RequestSpotInstancesInput{
		SpotPrice:     aws.String(spotPrice),
		InstanceCount: aws.Int32(1),
		Type:          ec2types.SpotInstanceTypeOneTime,
		LaunchSpecification: &ec2types.RequestSpotLaunchSpecification{
			ImageId:          aws.String(spec.ImageID),
			InstanceType:     ec2types.InstanceType(spec.InstanceType),
			KeyName:          aws.String(spec.KeyName),
			SubnetId:         aws.String(spec.SubnetID),
			SecurityGroupIds: []string{spec.SecurityGroupID},
			UserData:         aws.String(userData),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to request spot instance for %s: %w", spec.Name, err)
	}

	requestID := aws.ToString(out.SpotInstanceRequests[0].SpotInstanceRequestId)
	log.Infof("Spot request created for %s: %s", spec.Name, requestID)
	return requestID, nil
}

func (l *Launcher) waitForFulfillment(ctx context.Context, requestID string) (string, error) {
	var instanceID string
	err := retry.Poll(ctx, l.SpotPoll, func(ctx context.Context) (bool, error) {
		out, err := l.ec2.DescribeSpotInstanceRequests(ctx, &ec2.DescribeSpotInstanceRequestsInput{
			SpotInstanceRequestIds: []string{requestID},
		})
		if err != nil {
			return false, fmt.Errorf("failed to describe spot request %s: %w", requestID, err)
		}

		request := out.SpotInstanceRequests[0]
		status := aws.ToString(request.Status.Code)
		switch {
		case status == "fulfilled":
			instanceID = aws.ToString(request.InstanceId)
			return true, nil
		case terminalSpotStatuses[status]:
			return false, &AllocationError{RequestID: requestID, Status: status}
		default:
			return false, nil
		}
	})
	if errors.Is(err, retry.ErrExhausted) {
		return "", fmt.Errorf("spot request %s was not fulfilled in time: %w", requestID, err)
	}
	if err != nil {
		return "", err
	}
	return instanceID, nil
}

// waitForAddresses polls until a public address is assigned or the attempt
// cap is reached. A missing public address is not an error; the private
// address of the last observation is returned either way.
func (l *Launcher) waitForAddresses(ctx context.Context, instanceID string) (publicIP, privateIP string, err error) {
	err = retry.Poll(ctx, l.AddrPoll, func(ctx context.Context) (bool, error) {
		out, err := l.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			InstanceIds: []string{instanceID},
		})
		if err != nil {
			return false, fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
		}

		instance := out.Reservations[0].Instances[0]
		privateIP = aws.ToString(instance.PrivateIpAddress)
		publicIP = aws.ToString(instance.PublicIpAddress)
		return publicIP != "", nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		// Degraded but not fatal.
		return "", privateIP, nil
	}
	if err != nil {
		return "", "", err
	}
	return publicIP, privateIP, nil
}
