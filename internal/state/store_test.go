package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	store := NewStoreAt(t.TempDir())

	record := NewClusterRecord("demo", "eu-west-1")
	record.SetNetwork("vpc-1", "subnet-1", "sg-1")
	record.SetNode(MainNodeKey, &NodeHandle{
		SpotRequestID: "sir-1",
		InstanceID:    "i-1",
		PublicIP:      "203.0.113.9",
		PrivateIP:     "10.0.0.5",
	})
	record.MarkJoined(GPUWorkerKey(0))

	require.NoError(t, store.Save("demo", record))
	assert.True(t, store.Exists("demo"))

	loaded, err := store.Load("demo")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "demo", loaded.ClusterName)
	assert.True(t, loaded.HasNetwork())
	assert.True(t, loaded.HasJoined(GPUWorkerKey(0)))

	handle, ok := loaded.Node(MainNodeKey)
	require.True(t, ok)
	assert.Equal(t, "203.0.113.9", handle.PublicIP)
}

func TestStore_LoadMissingClusterReturnsNil(t *testing.T) {
	store := NewStoreAt(t.TempDir())

	record, err := store.Load("nope")
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.False(t, store.Exists("nope"))
}

func TestStore_LoadCorruptLedgerFails(t *testing.T) {
	root := t.TempDir()
	store := NewStoreAt(root)
	require.NoError(t, os.MkdirAll(store.Dir("bad"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir("bad"), "cluster-resources.json"), []byte("{nope"), 0o644))

	_, err := store.Load("bad")
	assert.Error(t, err)
}

func TestStore_SaveFullyOverwrites(t *testing.T) {
	store := NewStoreAt(t.TempDir())

	record := NewClusterRecord("demo", "eu-west-1")
	record.SetNode(MainNodeKey, &NodeHandle{InstanceID: "i-1", SpotRequestID: "sir-1"})
	require.NoError(t, store.Save("demo", record))

	// Second save without the node must not leave stale entries behind.
	require.NoError(t, store.Save("demo", NewClusterRecord("demo", "eu-west-1")))

	loaded, err := store.Load("demo")
	require.NoError(t, err)
	_, ok := loaded.Node(MainNodeKey)
	assert.False(t, ok)
}

func TestStore_SaveLeavesNoTemporaryFiles(t *testing.T) {
	store := NewStoreAt(t.TempDir())
	require.NoError(t, store.Save("demo", NewClusterRecord("demo", "eu-west-1")))

	entries, err := os.ReadDir(store.Dir("demo"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cluster-resources.json", entries[0].Name())
}

func TestStore_DeleteRemovesWholeClusterDirectory(t *testing.T) {
	store := NewStoreAt(t.TempDir())
	require.NoError(t, store.Save("demo", NewClusterRecord("demo", "eu-west-1")))
	require.NoError(t, os.WriteFile(store.KubeconfigPath("demo"), []byte("creds"), 0o600))

	require.NoError(t, store.Delete("demo"))

	_, err := os.Stat(store.Dir("demo"))
	assert.True(t, os.IsNotExist(err))

	clusters, err := store.List()
	require.NoError(t, err)
	assert.NotContains(t, clusters, "demo")
}

func TestStore_ListOnlyReportsClustersWithLedgers(t *testing.T) {
	root := t.TempDir()
	store := NewStoreAt(root)

	require.NoError(t, store.Save("beta", NewClusterRecord("beta", "eu-west-1")))
	require.NoError(t, store.Save("alpha", NewClusterRecord("alpha", "eu-west-1")))
	// A directory without a ledger is not a cluster.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "stray"), 0o755))

	clusters, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, clusters)
}

func TestStore_ListMissingRootIsEmpty(t *testing.T) {
	store := NewStoreAt(filepath.Join(t.TempDir(), "never-created"))
	clusters, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, clusters)
}
