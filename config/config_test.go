package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replica.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
node:
  id: n1
  data_dir: /var/lib/raftsm
storage:
  level: disk
  max_log_size: 1024
cluster:
  peers:
    - n1
    - n2
    - n3
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "n1", cfg.Node.ID)
	require.Equal(t, uint64(1024), cfg.Storage.MaxLogSize)
	require.Equal(t, []string{"n1", "n2", "n3"}, cfg.Cluster.Peers)
}

func TestLevelDefaultsToDisk(t *testing.T) {
	cfg := &Config{
		Node:    NodeConfig{ID: "n1", DataDir: "/tmp/x"},
		Cluster: ClusterConfig{Peers: []string{"n1"}},
	}
	require.NoError(t, cfg.Validate())
	require.Equal(t, LevelDisk, cfg.Storage.Level)
}

func TestValidateErrors(t *testing.T) {
	type param struct {
		name string
		cfg  Config
	}

	tests := []param{
		{"missing id", Config{
			Node:    NodeConfig{DataDir: "/tmp/x"},
			Cluster: ClusterConfig{Peers: []string{"n1"}},
		}},
		{"missing data dir", Config{
			Node:    NodeConfig{ID: "n1"},
			Cluster: ClusterConfig{Peers: []string{"n1"}},
		}},
		{"bad level", Config{
			Node:    NodeConfig{ID: "n1", DataDir: "/tmp/x"},
			Storage: StorageConfig{Level: "paper"},
			Cluster: ClusterConfig{Peers: []string{"n1"}},
		}},
		{"no peers", Config{
			Node: NodeConfig{ID: "n1", DataDir: "/tmp/x"},
		}},
		{"id not a peer", Config{
			Node:    NodeConfig{ID: "n1", DataDir: "/tmp/x"},
			Cluster: ClusterConfig{Peers: []string{"n2", "n3"}},
		}},
		{"duplicate peer", Config{
			Node:    NodeConfig{ID: "n1", DataDir: "/tmp/x"},
			Cluster: ClusterConfig{Peers: []string{"n1", "n1"}},
		}},
	}

	for _, tt := range tests {
		require.Error(t, tt.cfg.Validate(), tt.name)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := writeConfig(t, "{not yaml")
	_, err := Load(path)
	require.Error(t, err)
}
