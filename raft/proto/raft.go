package raftpd

import (
	"encoding/gob"
	"fmt"
)

// NodeID is the opaque identity of a cluster member.
// NodeNone marks an unknown leader or an absent vote.
type NodeID string

// NodeNone is the null NodeID.
const NodeNone NodeID = ""

// Configuration is the membership snapshot of the cluster,
// plus the local identity.
type Configuration struct {
	Members []NodeID
	Local   NodeID
}

func (c *Configuration) Reset() { *c = Configuration{} }

// Contains reports whether id is a member of the configuration.
func (c *Configuration) Contains(id NodeID) bool {
	for i := 0; i < len(c.Members); i++ {
		if c.Members[i] == id {
			return true
		}
	}
	return false
}

func (c Configuration) String() string {
	return fmt.Sprintf("raftpd.Configuration{local: %s, members: %v}",
		c.Local, c.Members)
}

type EntryType int

const (
	EntryCommand EntryType = iota
	EntryConfiguration
	EntrySnapshot
	EntryNoOp
)

var entryTypeStr = []string{
	"Command",
	"Configuration",
	"Snapshot",
	"NoOp",
}

func (t EntryType) String() string {
	return entryTypeStr[t]
}

// Entry is a tagged log entry variant. Which fields are
// meaningful depends on Type:
//   - EntryCommand: Command, Args
//   - EntryConfiguration: Conf
//   - EntrySnapshot: Conf, Data
//   - EntryNoOp: none
type Entry struct {
	Index   uint64
	Term    uint64
	Type    EntryType
	Command string
	Args    []byte
	Conf    *Configuration
	Data    []byte
}

func (e *Entry) Reset() { *e = Entry{} }

func (e Entry) String() string {
	return fmt.Sprintf("raftpd.Entry{idx: %d, term: %d, type: %v}",
		e.Index, e.Term, e.Type)
}

// PingRequest is the heartbeat sent by a leader. LogIndex and
// LogTerm carry the leader's consistency probe; these names are
// part of the wire contract even though the sync request spells
// the same check PrevLogIndex/PrevLogTerm.
type PingRequest struct {
	ID       uint64
	Term     uint64
	Leader   NodeID
	LogIndex uint64
	LogTerm  uint64
}

func (m *PingRequest) Reset() { *m = PingRequest{} }

type PingResponse struct {
	ID       uint64
	Term     uint64
	Accepted bool
}

func (m *PingResponse) Reset() { *m = PingResponse{} }

// SyncRequest replicates log entries from the leader.
type SyncRequest struct {
	ID           uint64
	Term         uint64
	Leader       NodeID
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []Entry
	CommitIndex  uint64
}

func (m *SyncRequest) Reset() { *m = SyncRequest{} }

type SyncResponse struct {
	ID        uint64
	Term      uint64
	Accepted  bool
	LastIndex uint64
}

func (m *SyncResponse) Reset() { *m = SyncResponse{} }

// PollRequest asks for a vote in the candidate's term.
type PollRequest struct {
	ID           uint64
	Term         uint64
	Candidate    NodeID
	LastLogIndex uint64
	LastLogTerm  uint64
}

func (m *PollRequest) Reset() { *m = PollRequest{} }

type PollResponse struct {
	ID      uint64
	Term    uint64
	Granted bool
}

func (m *PollResponse) Reset() { *m = PollResponse{} }

// SubmitRequest carries a client command to the leader.
// Replicas that are not the leader answer with an error.
type SubmitRequest struct {
	ID      uint64
	Command string
	Args    []byte
}

func (m *SubmitRequest) Reset() { *m = SubmitRequest{} }

type SubmitResponse struct {
	ID    uint64
	Index uint64
	Error string
}

func (m *SubmitResponse) Reset() { *m = SubmitResponse{} }

func init() {
	gob.Register(Configuration{})
	gob.Register(Entry{})
	gob.Register(PingRequest{})
	gob.Register(PingResponse{})
	gob.Register(SyncRequest{})
	gob.Register(SyncResponse{})
	gob.Register(PollRequest{})
	gob.Register(PollResponse{})
	gob.Register(SubmitRequest{})
	gob.Register(SubmitResponse{})
}
