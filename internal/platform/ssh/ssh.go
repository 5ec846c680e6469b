// Package ssh provides the remote command channel used to drive cluster
// bootstrap on provisioned nodes.
//
// Each command runs in its own session over a fresh connection; the nodes
// are ephemeral spot instances, so host keys are not verified. Connection
// retry lives with the callers (the readiness prober), not here.
package ssh

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

// DefaultUser is the login user on the boot images this tool launches.
const DefaultUser = "ubuntu"

const (
	defaultPort        = 22
	defaultDialTimeout = 5 * time.Second
)

// Communicator executes commands on one remote host. A nil error from Run
// means the command completed with a zero exit status.
type Communicator interface {
	// Connect opens and immediately closes an authenticated session,
	// reporting whether the host accepts commands yet.
	Connect(ctx context.Context) error

	// Run executes a command and returns its combined output.
	Run(ctx context.Context, command string) (string, error)
}

// Factory opens a Communicator for a host. Provisioning code depends on a
// Factory rather than on Client so tests can substitute fakes.
type Factory func(host string) (Communicator, error)

// NewFactory returns a Factory authenticating as user with the private key
// at keyPath. The key is read and parsed once, up front, so an unusable key
// is a configuration error rather than a per-host failure.
func NewFactory(user, keyPath string) (Factory, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return func(host string) (Communicator, error) {
		if host == "" {
			return nil, fmt.Errorf("host has no address")
		}
		return &Client{host: host, user: user, signer: signer}, nil
	}, nil
}

// Client is the SSH Communicator implementation.
type Client struct {
	host   string
	user   string
	signer ssh.Signer

	// Port and DialTimeout default to 22 and 5s when zero.
	Port        int
	DialTimeout time.Duration
}

func (c *Client) dial() (*ssh.Client, error) {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	timeout := c.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}

	config := &ssh.ClientConfig{
		User:            c.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // ephemeral spot instances
		Timeout:         timeout,
	}
	return ssh.Dial("tcp", net.JoinHostPort(c.host, strconv.Itoa(port)), config)
}

// Connect implements Communicator.
func (c *Client) Connect(_ context.Context) error {
	client, err := c.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.host, err)
	}
	return client.Close()
}

// Run implements Communicator.
func (c *Client) Run(_ context.Context, command string) (string, error) {
	client, err := c.dial()
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", c.host, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open session on %s: %w", c.host, err)
	}
	defer session.Close()

	output, err := session.CombinedOutput(command)
	if err != nil {
		return string(output), fmt.Errorf("command %q failed on %s: %w (output: %s)", command, c.host, err, output)
	}
	return string(output), nil
}
