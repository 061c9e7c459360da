package core

import (
	raftpd "github.com/thinkermao/raftsm/raft/proto"
)

// Cluster is the replica's view of the membership. It changes only
// when a configuration entry is applied.
type Cluster struct {
	local   raftpd.NodeID
	members []raftpd.NodeID
}

func makeCluster(local raftpd.NodeID, members []raftpd.NodeID) *Cluster {
	dup := make([]raftpd.NodeID, len(members))
	copy(dup, members)
	return &Cluster{local: local, members: dup}
}

// Local return the local replica identity.
func (c *Cluster) Local() raftpd.NodeID {
	return c.local
}

// Members return the current member set.
func (c *Cluster) Members() []raftpd.NodeID {
	return c.members
}

// Contains reports whether id is a known member.
func (c *Cluster) Contains(id raftpd.NodeID) bool {
	for i := 0; i < len(c.members); i++ {
		if c.members[i] == id {
			return true
		}
	}
	return false
}

// Update replace the member set from an applied configuration.
func (c *Cluster) Update(conf *raftpd.Configuration) {
	if conf == nil {
		return
	}
	members := make([]raftpd.NodeID, len(conf.Members))
	copy(members, conf.Members)
	c.members = members
}

// Configuration return the membership as a configuration record.
func (c *Cluster) Configuration() *raftpd.Configuration {
	members := make([]raftpd.NodeID, len(c.members))
	copy(members, c.members)
	return &raftpd.Configuration{Members: members, Local: c.local}
}
