package core

import (
	raftpd "github.com/thinkermao/raftsm/raft/proto"
)

// Log is the replicated log collaborator. It is owned by the replica
// and only mutated from the apply thread; its latency contributes
// directly to apply latency.
type Log interface {
	// FirstIndex return the first available index.
	FirstIndex() uint64

	// LastIndex return the last index, 0 for the empty log.
	LastIndex() uint64

	// LastTerm return the term of the last entry, 0 for the empty log.
	LastTerm() uint64

	// Term return the term at idx, 0 when absent.
	Term(idx uint64) uint64

	// Entry return the entry at idx, nil when absent.
	Entry(idx uint64) *raftpd.Entry

	// Append push entries directly after the current tail,
	// returning the new last index.
	Append(entries []raftpd.Entry) uint64

	// TruncateSuffix drop all entries with index great than idx.
	TruncateSuffix(idx uint64)

	// Size return the count of entries held.
	Size() uint64
}

// Compactable is implemented by logs that support compaction with
// a snapshot entry.
type Compactable interface {
	Compact(snap raftpd.Entry) error
}

// StateMachine is the replicated service port driven by the apply
// procedure. Implementations are exclusively owned by the replica
// and are only called from the apply thread.
type StateMachine interface {
	// ApplyCommand apply one command entry. Errors are user-level
	// failures: the caller records them and still advances.
	ApplyCommand(index uint64, command string, args []byte) error

	// TakeSnapshot return the serialized state, nil when the
	// machine has nothing to snapshot.
	TakeSnapshot() ([]byte, error)

	// InstallSnapshot replace state with the snapshot bytes.
	InstallSnapshot(data []byte) error
}
