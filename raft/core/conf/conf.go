package conf

import (
	log "github.com/sirupsen/logrus"
	raftpd "github.com/thinkermao/raftsm/raft/proto"
)

// Invalid value for raft.
const (
	InvalidIndex uint64 = 0
	InvalidTerm  uint64 = 0
)

// Config given information to build one replica.
type Config struct {
	// ID is the identity of the local replica. ID cannot be empty.
	ID raftpd.NodeID

	// MaxLogSize is the number of entries the log may hold before
	// the replica snapshots the state machine and compacts. Zero
	// disables compaction.
	MaxLogSize uint64

	// Members is the initial cluster membership, local replica
	// included. A stored configuration takes precedence on reopen.
	Members []raftpd.NodeID
}

// Verify check whether fields of Config is valid.
func (c *Config) Verify() bool {
	if c.ID == raftpd.NodeNone {
		log.Panicf("ID cannot be empty")
	}

	for i := 0; i < len(c.Members); i++ {
		if c.Members[i] == c.ID {
			return true
		}
	}
	log.Panicf("%s not in configured members", c.ID)
	return false
}
