// Package config loads and validates the cluster configuration file.
package config

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config path used when --config is not given.
const DefaultConfigFile = "cluster-config.yaml"

// Default user-data script paths, relative to the working directory.
const (
	DefaultUserDataMain   = "user-data-main.sh"
	DefaultUserDataWorker = "user-data-worker.sh"
)

// Config holds the cluster configuration. Field names match the snake_case
// keys of the on-disk document; JSON configs parse as well since JSON is a
// YAML subset.
type Config struct {
	Region          string `yaml:"region"`
	AMISSMParameter string `yaml:"ami_ssm_parameter"`
	AllowedIngress  string `yaml:"allowed_ingress"`
	KeyName         string `yaml:"key_name"`
	KeyPath         string `yaml:"key_path"`
	VPCCIDRBlock    string `yaml:"vpc_cidr_block"`

	MainInstanceType   string `yaml:"main_instance_type"`
	WorkerInstanceType string `yaml:"worker_instance_type"`
	GPUInstanceType    string `yaml:"gpu_instance_type"`

	NumGPUWorkers int `yaml:"num_gpu_workers"`
	NumCPUWorkers int `yaml:"num_cpu_workers"`

	// Boot scripts attached as instance user data. Optional; a missing file
	// results in empty user data.
	UserDataMain   string `yaml:"user_data_main"`
	UserDataWorker string `yaml:"user_data_worker"`
}

// Load reads, defaults, and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.UserDataMain == "" {
		cfg.UserDataMain = DefaultUserDataMain
	}
	if cfg.UserDataWorker == "" {
		cfg.UserDataWorker = DefaultUserDataWorker
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that every field needed before the first provider call is
// present and well-formed.
func (c *Config) Validate() error {
	required := []struct {
		name, value string
	}{
		{"region", c.Region},
		{"ami_ssm_parameter", c.AMISSMParameter},
		{"allowed_ingress", c.AllowedIngress},
		{"key_name", c.KeyName},
		{"key_path", c.KeyPath},
		{"vpc_cidr_block", c.VPCCIDRBlock},
		{"main_instance_type", c.MainInstanceType},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%s is required", field.name)
		}
	}

	if c.NumGPUWorkers < 0 || c.NumCPUWorkers < 0 {
		return fmt.Errorf("worker counts must not be negative")
	}
	if c.NumGPUWorkers > 0 && c.GPUInstanceType == "" {
		return fmt.Errorf("gpu_instance_type is required when num_gpu_workers > 0")
	}
	if c.NumCPUWorkers > 0 && c.WorkerInstanceType == "" {
		return fmt.Errorf("worker_instance_type is required when num_cpu_workers > 0")
	}

	if _, _, err := net.ParseCIDR(c.VPCCIDRBlock); err != nil {
		return fmt.Errorf("vpc_cidr_block: %w", err)
	}
	if _, _, err := net.ParseCIDR(c.AllowedIngress); err != nil {
		return fmt.Errorf("allowed_ingress: %w", err)
	}
	return nil
}
