package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func writeTestKey(t *testing.T) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

func TestNewFactory_ValidKey(t *testing.T) {
	factory, err := NewFactory(DefaultUser, writeTestKey(t))
	require.NoError(t, err)

	comm, err := factory("203.0.113.5")
	require.NoError(t, err)
	assert.NotNil(t, comm)
}

func TestNewFactory_MissingKeyFile(t *testing.T) {
	_, err := NewFactory(DefaultUser, filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestNewFactory_UnparsableKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

	_, err := NewFactory(DefaultUser, path)
	assert.Error(t, err)
}

func TestFactory_EmptyHostRejected(t *testing.T) {
	factory, err := NewFactory(DefaultUser, writeTestKey(t))
	require.NoError(t, err)

	_, err = factory("")
	assert.Error(t, err)
}
