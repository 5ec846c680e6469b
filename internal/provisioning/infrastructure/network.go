// Package infrastructure provisions the shared network substrate: a subnet
// in the region's default VPC and the cluster security group.
package infrastructure

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	log "github.com/sirupsen/logrus"

	"github.com/gjolly/aws-k8s/internal/provisioning"
	"github.com/gjolly/aws-k8s/internal/util/naming"
)

// Provisioner is the network provisioning phase.
type Provisioner struct{}

// NewProvisioner creates the infrastructure phase.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string { return "infrastructure" }

// Provision ensures the network substrate exists exactly once. When the
// ledger already holds all three network ids no provider call is made; the
// ids are reused as-is. None of the calls are retried: a failure here
// aborts cluster creation.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	if ctx.Record.HasNetwork() {
		log.Infof("Network resources already exist (vpc=%s subnet=%s sg=%s), skipping",
			ctx.Record.VPCID, ctx.Record.SubnetID, ctx.Record.SecurityGroupID)
		return nil
	}

	vpcID, err := p.defaultVPC(ctx)
	if err != nil {
		return err
	}

	subnetID, err := p.createSubnet(ctx, vpcID)
	if err != nil {
		return err
	}

	securityGroupID, err := p.createSecurityGroup(ctx, vpcID)
	if err != nil {
		return err
	}

	// All three ids are committed together; the ledger never holds partial
	// network state.
	ctx.Record.SetNetwork(vpcID, subnetID, securityGroupID)
	return ctx.SaveRecord()
}

func (p *Provisioner) defaultVPC(ctx *provisioning.Context) (string, error) {
	out, err := ctx.EC2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("isDefault"), Values: []string{"true"}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe VPCs: %w", err)
	}
	if len(out.Vpcs) == 0 {
		return "", fmt.Errorf("no default VPC found in region %s", ctx.Config.Region)
	}
	return aws.ToString(out.Vpcs[0].VpcId), nil
}

func (p *Provisioner) createSubnet(ctx *provisioning.Context, vpcID string) (string, error) {
	out, err := ctx.EC2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:            aws.String(vpcID),
		CidrBlock:        aws.String(ctx.Config.VPCCIDRBlock),
		AvailabilityZone: aws.String(ctx.Config.Region + "a"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create subnet: %w", err)
	}
	subnetID := aws.ToString(out.Subnet.SubnetId)
	log.Infof("Created subnet: %s", subnetID)

	// Nodes need public addresses for SSH-driven bootstrap.
	_, err = ctx.EC2.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
		SubnetId:            aws.String(subnetID),
		MapPublicIpOnLaunch: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to enable public IP auto-assign on subnet %s: %w", subnetID, err)
	}
	return subnetID, nil
}

func (p *Provisioner) createSecurityGroup(ctx *provisioning.Context, vpcID string) (string, error) {
	out, err := ctx.EC2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(naming.SecurityGroup(ctx.Record.ClusterName)),
		Description: aws.String("Security group for Kubernetes cluster"),
		VpcId:       aws.String(vpcID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create security group: %w", err)
	}
	securityGroupID := aws.ToString(out.GroupId)
	log.Infof("Created security group: %s", securityGroupID)

	allowedIngress := ctx.Config.AllowedIngress
	_, err = ctx.EC2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(securityGroupID),
		IpPermissions: []ec2types.IpPermission{
			{
				// All traffic between cluster members.
				IpProtocol: aws.String("-1"),
				FromPort:   aws.Int32(-1),
				ToPort:     aws.Int32(-1),
				UserIdGroupPairs: []ec2types.UserIdGroupPair{
					{GroupId: aws.String(securityGroupID)},
				},
			},
			{
				// SSH.
				IpProtocol: aws.String("tcp"),
				FromPort:   aws.Int32(22),
				ToPort:     aws.Int32(22),
				IpRanges:   []ec2types.IpRange{{CidrIp: aws.String(allowedIngress)}},
			},
			{
				// Kubernetes API.
				IpProtocol: aws.String("tcp"),
				FromPort:   aws.Int32(6443),
				ToPort:     aws.Int32(6443),
				IpRanges:   []ec2types.IpRange{{CidrIp: aws.String(allowedIngress)}},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to authorize ingress rules on %s: %w", securityGroupID, err)
	}
	return securityGroupID, nil
}
