package core

import (
	raftpd "github.com/thinkermao/raftsm/raft/proto"
)

// EventSink receives replica events.
type EventSink interface {
	// VoteCast fires after a vote for candidate was granted and
	// persisted in term.
	VoteCast(term uint64, candidate raftpd.NodeID)
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) VoteCast(uint64, raftpd.NodeID) {}
