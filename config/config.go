package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Storage levels for the configuration record and the log.
const (
	LevelDisk   = "disk"
	LevelMemory = "memory"
)

type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Storage StorageConfig `yaml:"storage"`
	Cluster ClusterConfig `yaml:"cluster"`
}

type NodeConfig struct {
	ID      string `yaml:"id"`
	DataDir string `yaml:"data_dir"`
}

type StorageConfig struct {
	Level      string `yaml:"level"`
	MaxLogSize uint64 `yaml:"max_log_size"`
}

type ClusterConfig struct {
	Peers []string `yaml:"peers"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Node.ID == "" {
		return fmt.Errorf("node.id is required")
	}

	if c.Node.DataDir == "" {
		return fmt.Errorf("node.data_dir is required")
	}

	if c.Storage.Level == "" {
		c.Storage.Level = LevelDisk
	}
	if c.Storage.Level != LevelDisk && c.Storage.Level != LevelMemory {
		return fmt.Errorf("storage.level must be %q or %q", LevelDisk, LevelMemory)
	}

	if len(c.Cluster.Peers) == 0 {
		return fmt.Errorf("cluster.peers must contain at least one peer")
	}

	found := false
	uniquePeers := make(map[string]bool)
	for _, peer := range c.Cluster.Peers {
		if uniquePeers[peer] {
			return fmt.Errorf("duplicate peer: %s", peer)
		}
		uniquePeers[peer] = true
		if peer == c.Node.ID {
			found = true
		}
	}

	if !found {
		return fmt.Errorf("node.id=%s not found in cluster.peers", c.Node.ID)
	}

	return nil
}
