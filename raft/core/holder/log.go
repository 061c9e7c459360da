package holder

import (
	log "github.com/sirupsen/logrus"
	"github.com/thinkermao/raftsm/raft/core/conf"
	raftpd "github.com/thinkermao/raftsm/raft/proto"
	"github.com/thinkermao/raftsm/utils"
)

// Log is the in-memory log implementation. Here is the memory layout:
//
// +--------------+----------------------------------+
// | dummy entry  |  entries (offset+1 .. lastIndex) |
// +--------------+----------------------------------+
// ^ offset
//
// There always has a dummy entry at the front; after a compaction it
// is the snapshot entry the log was compacted with, so its index and
// term stay queryable.
type Log struct {
	// replica identity, used for logging only.
	id raftpd.NodeID

	// buffered entries, entries[0] is the dummy.
	entries []raftpd.Entry
}

// MakeLog create & initialize an empty Log, and returns.
func MakeLog(id raftpd.NodeID) *Log {
	log.Debugf("%s make log", id)

	entries := make([]raftpd.Entry, 1)
	entries[0].Type = raftpd.EntryNoOp
	entries[0].Index = conf.InvalidIndex
	entries[0].Term = conf.InvalidTerm
	return &Log{id: id, entries: entries}
}

// RebuildLog construction log from exists entries. It required the
// first entry to act as the dummy, and len(entries) great than zero.
func RebuildLog(id raftpd.NodeID, entries []raftpd.Entry) *Log {
	utils.Assert(len(entries) != 0, "required entries not empty")

	log.Debugf("%s rebuild log [idx: %d-%d]",
		id, entries[0].Index, entries[len(entries)-1].Index)

	// copy make unique constraint.
	dup := make([]raftpd.Entry, len(entries))
	copy(dup, entries)

	l := &Log{id: id, entries: dup}
	l.validateConsistency()
	return l
}

// FirstIndex return the first available entry in current log.
func (l *Log) FirstIndex() uint64 {
	return l.offset() + 1
}

// LastIndex return the last index of current entries.
func (l *Log) LastIndex() uint64 {
	utils.Assert(len(l.entries) != 0, "require len(l.entries) great than zero")
	length := len(l.entries)
	actual := l.entries[length-1].Index
	get := l.offset() + uint64(length) - 1
	utils.Assert(actual == get, "bad entries")
	return get
}

// LastTerm return the term of the last entry.
func (l *Log) LastTerm() uint64 {
	return l.Term(l.LastIndex())
}

// Term return the term of idx, if there no entry with these
// index, return InvalidTerm. The dummy entry is queryable.
func (l *Log) Term(idx uint64) uint64 {
	if idx < l.offset() || idx > l.LastIndex() {
		return conf.InvalidTerm
	}
	return l.entries[idx-l.offset()].Term
}

// Entry return the entry at idx, nil when absent. The dummy
// entry (a snapshot entry after compaction) is queryable.
func (l *Log) Entry(idx uint64) *raftpd.Entry {
	if idx < l.offset() || idx > l.LastIndex() {
		return nil
	}
	return &l.entries[idx-l.offset()]
}

// Slice return the entries between [lo, hi), not included dummy entry.
func (l *Log) Slice(lo, hi uint64) []raftpd.Entry {
	l.checkOutOfBounds(lo, hi)
	offset := l.offset()
	return l.entries[lo-offset : hi-offset]
}

// Size return the count of entries held past the dummy.
func (l *Log) Size() uint64 {
	return uint64(len(l.entries) - 1)
}

// Append push entries at back, and return the new last index.
// The first entry must directly follow the current tail.
func (l *Log) Append(entries []raftpd.Entry) uint64 {
	if len(entries) == 0 {
		return l.LastIndex()
	}

	utils.Assert(entries[0].Index == l.LastIndex()+1,
		"%s append %d is not successor of %d",
		l.id, entries[0].Index, l.LastIndex())

	l.entries = append(l.entries, entries...)
	l.validateConsistency()
	return l.LastIndex()
}

// TruncateSuffix drop all entries with index great than idx.
// Truncating below the dummy keeps only the dummy.
func (l *Log) TruncateSuffix(idx uint64) {
	if idx >= l.LastIndex() {
		return
	}
	if idx < l.offset() {
		idx = l.offset()
	}

	log.Debugf("%s truncate log suffix to %d", l.id, idx)
	l.entries = l.entries[:idx-l.offset()+1]
}

// Compact drop all entries up to snap.Index and install snap as
// the new dummy. Entries past the snapshot survive.
func (l *Log) Compact(snap raftpd.Entry) error {
	utils.Assert(snap.Type == raftpd.EntrySnapshot, "compact requires snapshot entry")

	log.Debugf("%s compact log at %d [term: %d]", l.id, snap.Index, snap.Term)

	if snap.Index >= l.LastIndex() || snap.Index < l.offset() {
		l.entries = []raftpd.Entry{snap}
		return nil
	}

	tail := l.Slice(snap.Index+1, l.LastIndex()+1)
	entries := make([]raftpd.Entry, 0, len(tail)+1)
	entries = append(entries, snap)
	entries = append(entries, tail...)
	l.entries = entries
	return nil
}
