package aws

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// NewClients builds EC2 and SSM clients for the given region using the
// default credential chain (environment, shared config, instance profile).
func NewClients(ctx context.Context, region string) (EC2API, SSMAPI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return ec2.NewFromConfig(cfg), ssm.NewFromConfig(cfg), nil
}
