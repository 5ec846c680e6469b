package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/adrg/xdg"
)

const (
	appDirName     = "aws-k8s"
	ledgerFile     = "cluster-resources.json"
	kubeconfigFile = "kubeconfig"
)

// Store persists cluster ledgers under a per-user data directory, one
// subdirectory per cluster. The directory root follows the XDG base
// directory spec ($XDG_DATA_HOME/aws-k8s by default).
type Store struct {
	root string
}

// NewStore returns a store rooted at the standard per-user data location.
func NewStore() *Store {
	return NewStoreAt(filepath.Join(xdg.DataHome, appDirName))
}

// NewStoreAt returns a store rooted at an explicit directory. Used by tests.
func NewStoreAt(root string) *Store {
	return &Store{root: root}
}

// Dir returns the per-cluster state directory.
func (s *Store) Dir(cluster string) string {
	return filepath.Join(s.root, cluster)
}

// KubeconfigPath returns the location of a cluster's retrieved credential
// file, whether or not it exists yet.
func (s *Store) KubeconfigPath(cluster string) string {
	return filepath.Join(s.Dir(cluster), kubeconfigFile)
}

// Exists reports whether a ledger has been persisted for the cluster.
func (s *Store) Exists(cluster string) bool {
	_, err := os.Stat(filepath.Join(s.Dir(cluster), ledgerFile))
	return err == nil
}

// Load reads a cluster's ledger. A cluster that was never persisted returns
// (nil, nil); any other read or decode failure is an error.
func (s *Store) Load(cluster string) (*ClusterRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(cluster), ledgerFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger for cluster %q: %w", cluster, err)
	}

	var record ClusterRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode ledger for cluster %q: %w", cluster, err)
	}
	return &record, nil
}

// Save durably persists the ledger, fully overwriting any previous version.
// The write goes to a temporary file in the same directory which is then
// renamed over the ledger, so a crash mid-write never leaves a truncated or
// corrupted record behind.
func (s *Store) Save(cluster string, record *ClusterRecord) error {
	dir := s.Dir(cluster)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ledgerFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary ledger file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, ledgerFile)); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}

// Delete removes the entire per-cluster state directory, ledger and
// credential file included.
func (s *Store) Delete(cluster string) error {
	if err := os.RemoveAll(s.Dir(cluster)); err != nil {
		return fmt.Errorf("failed to remove state directory for cluster %q: %w", cluster, err)
	}
	return nil
}

// List returns the names of all clusters with a persisted ledger, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	var clusters []string
	for _, entry := range entries {
		if entry.IsDir() && s.Exists(entry.Name()) {
			clusters = append(clusters, entry.Name())
		}
	}
	slices.Sort(clusters)
	return clusters, nil
}
