// Package fakes provides in-memory implementations of the AWS client
// interfaces for tests.
package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// FakeEC2 simulates the EC2 API in memory. The zero value fulfills spot
// requests immediately, reports instances as running, and assigns public
// addresses on the first describe.
type FakeEC2 struct {
	mu sync.Mutex

	// DefaultVPCID is returned by DescribeVpcs. Defaults to "vpc-default".
	DefaultVPCID string

	// SpotStatuses is the sequence of status codes returned by successive
	// DescribeSpotInstanceRequests calls for each request; the last entry
	// repeats. Defaults to ["fulfilled"].
	SpotStatuses []string

	// PublicIPDelay is how many DescribeInstances calls return no public
	// address before one is assigned. Negative means never assigned.
	PublicIPDelay int

	// Errs fails a call by method name ("CreateSubnet", ...).
	Errs map[string]error

	// Recorded activity, inspected by tests.
	Calls            []string
	CreatedSubnets   []*ec2.CreateSubnetInput
	ModifiedSubnets  []*ec2.ModifySubnetAttributeInput
	CreatedGroups    []*ec2.CreateSecurityGroupInput
	IngressRules     []ec2types.IpPermission
	SpotRequests     []*ec2.RequestSpotInstancesInput
	Tags             map[string]string
	TerminatedIDs    []string
	CanceledSpotIDs  []string
	DeletedGroupIDs  []string
	DeletedSubnetIDs []string

	instances     map[string]int // instance id -> ordinal
	spotInstances map[string]string
	statusIdx     map[string]int
	terminated    bool
	describeCalls int
	nextOrdinal   int
}

func (f *FakeEC2) record(call string) error {
	f.Calls = append(f.Calls, call)
	return f.Errs[call]
}

// CallCount returns how many recorded calls match the given method name.
func (f *FakeEC2) CallCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *FakeEC2) DescribeVpcs(_ context.Context, _ *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeVpcs"); err != nil {
		return nil, err
	}
	vpcID := f.DefaultVPCID
	if vpcID == "" {
		vpcID = "vpc-default"
	}
	return &ec2.DescribeVpcsOutput{
		Vpcs: []ec2types.Vpc{{VpcId: aws.String(vpcID), IsDefault: aws.Bool(true)}},
	}, nil
}

func (f *FakeEC2) CreateSubnet(_ context.Context, params *ec2.CreateSubnetInput, _ ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateSubnet"); err != nil {
		return nil, err
	}
	f.CreatedSubnets = append(f.CreatedSubnets, params)
	return &ec2.CreateSubnetOutput{
		Subnet: &ec2types.Subnet{SubnetId: aws.String(fmt.Sprintf("subnet-%d", len(f.CreatedSubnets)))},
	}, nil
}

func (f *FakeEC2) ModifySubnetAttribute(_ context.Context, params *ec2.ModifySubnetAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifySubnetAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ModifySubnetAttribute"); err != nil {
		return nil, err
	}
	f.ModifiedSubnets = append(f.ModifiedSubnets, params)
	return &ec2.ModifySubnetAttributeOutput{}, nil
}

func (f *FakeEC2) CreateSecurityGroup(_ context.Context, params *ec2.CreateSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateSecurityGroup"); err != nil {
		return nil, err
	}
	f.CreatedGroups = append(f.CreatedGroups, params)
	return &ec2.CreateSecurityGroupOutput{
		GroupId: aws.String(fmt.Sprintf("sg-%d", len(f.CreatedGroups))),
	}, nil
}

func (f *FakeEC2) AuthorizeSecurityGroupIngress(_ context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AuthorizeSecurityGroupIngress"); err != nil {
		return nil, err
	}
	f.IngressRules = append(f.IngressRules, params.IpPermissions...)
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
}

func (f *FakeEC2) RequestSpotInstances(_ context.Context, params *ec2.RequestSpotInstancesInput, _ ...func(*ec2.Options)) (*ec2.RequestSpotInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RequestSpotInstances"); err != nil {
		return nil, err
	}
	f.SpotRequests = append(f.SpotRequests, params)

	f.nextOrdinal++
	spotID := fmt.Sprintf("sir-%d", f.nextOrdinal)
	instanceID := fmt.Sprintf("i-%d", f.nextOrdinal)
	if f.spotInstances == nil {
		f.spotInstances = make(map[string]string)
		f.instances = make(map[string]int)
		f.statusIdx = make(map[string]int)
	}
	f.spotInstances[spotID] = instanceID
	f.instances[instanceID] = f.nextOrdinal

	return &ec2.RequestSpotInstancesOutput{
		SpotInstanceRequests: []ec2types.SpotInstanceRequest{
			{SpotInstanceRequestId: aws.String(spotID)},
		},
	}, nil
}

func (f *FakeEC2) DescribeSpotInstanceRequests(_ context.Context, params *ec2.DescribeSpotInstanceRequestsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSpotInstanceRequestsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeSpotInstanceRequests"); err != nil {
		return nil, err
	}

	spotID := params.SpotInstanceRequestIds[0]
	statuses := f.SpotStatuses
	if len(statuses) == 0 {
		statuses = []string{"fulfilled"}
	}
	idx := min(f.statusIdx[spotID], len(statuses)-1)
	f.statusIdx[spotID]++
	status := statuses[idx]

	request := ec2types.SpotInstanceRequest{
		SpotInstanceRequestId: aws.String(spotID),
		Status:                &ec2types.SpotInstanceStatus{Code: aws.String(status)},
	}
	if status == "fulfilled" {
		request.InstanceId = aws.String(f.spotInstances[spotID])
	}
	return &ec2.DescribeSpotInstanceRequestsOutput{
		SpotInstanceRequests: []ec2types.SpotInstanceRequest{request},
	}, nil
}

func (f *FakeEC2) CancelSpotInstanceRequests(_ context.Context, params *ec2.CancelSpotInstanceRequestsInput, _ ...func(*ec2.Options)) (*ec2.CancelSpotInstanceRequestsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CancelSpotInstanceRequests"); err != nil {
		return nil, err
	}
	f.CanceledSpotIDs = append(f.CanceledSpotIDs, params.SpotInstanceRequestIds...)
	return &ec2.CancelSpotInstanceRequestsOutput{}, nil
}

func (f *FakeEC2) DescribeInstances(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeInstances"); err != nil {
		return nil, err
	}
	f.describeCalls++

	stateName := ec2types.InstanceStateNameRunning
	if f.terminated {
		stateName = ec2types.InstanceStateNameTerminated
	}

	instances := make([]ec2types.Instance, 0, len(params.InstanceIds))
	for _, id := range params.InstanceIds {
		ordinal := f.instances[id]
		inst := ec2types.Instance{
			InstanceId:       aws.String(id),
			State:            &ec2types.InstanceState{Name: stateName},
			PrivateIpAddress: aws.String(fmt.Sprintf("10.0.0.%d", ordinal)),
		}
		if f.PublicIPDelay >= 0 && f.describeCalls > f.PublicIPDelay {
			inst.PublicIpAddress = aws.String(fmt.Sprintf("203.0.113.%d", ordinal))
		}
		instances = append(instances, inst)
	}
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: instances}},
	}, nil
}

func (f *FakeEC2) CreateTags(_ context.Context, params *ec2.CreateTagsInput, _ ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateTags"); err != nil {
		return nil, err
	}
	if f.Tags == nil {
		f.Tags = make(map[string]string)
	}
	for _, resource := range params.Resources {
		for _, tag := range params.Tags {
			if aws.ToString(tag.Key) == "Name" {
				f.Tags[resource] = aws.ToString(tag.Value)
			}
		}
	}
	return &ec2.CreateTagsOutput{}, nil
}

func (f *FakeEC2) TerminateInstances(_ context.Context, params *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("TerminateInstances"); err != nil {
		return nil, err
	}
	f.TerminatedIDs = append(f.TerminatedIDs, params.InstanceIds...)
	f.terminated = true
	return &ec2.TerminateInstancesOutput{}, nil
}

func (f *FakeEC2) DeleteSecurityGroup(_ context.Context, params *ec2.DeleteSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteSecurityGroup"); err != nil {
		return nil, err
	}
	f.DeletedGroupIDs = append(f.DeletedGroupIDs, aws.ToString(params.GroupId))
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

func (f *FakeEC2) DeleteSubnet(_ context.Context, params *ec2.DeleteSubnetInput, _ ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteSubnet"); err != nil {
		return nil, err
	}
	f.DeletedSubnetIDs = append(f.DeletedSubnetIDs, aws.ToString(params.SubnetId))
	return &ec2.DeleteSubnetOutput{}, nil
}

// FakeSSM simulates the SSM parameter store.
type FakeSSM struct {
	mu sync.Mutex

	Parameters map[string]string
	Err        error

	Calls []string
}

func (f *FakeSSM) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.Name)
	f.Calls = append(f.Calls, name)
	if f.Err != nil {
		return nil, f.Err
	}
	value, ok := f.Parameters[name]
	if !ok {
		return nil, fmt.Errorf("parameter %s not found", name)
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{Name: params.Name, Value: aws.String(value)},
	}, nil
}
