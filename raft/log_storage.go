package raft

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/thinkermao/raftsm/raft/core/holder"
	raftpd "github.com/thinkermao/raftsm/raft/proto"
	"github.com/thinkermao/raftsm/raft/wal"
)

// diskLog is the disk-backed log: an in-memory holder for reads and
// a write-ahead log for durability. Replay reconciles overwrites, so
// a suffix truncation only reaches the wal through the entries that
// replace it.
type diskLog struct {
	mem *holder.Log
	wal *wal.Wal
}

// openDiskLog replay the wal inside dir, creating it when empty.
func openDiskLog(id raftpd.NodeID, dir string) (*diskLog, error) {
	w, entries, err := wal.Open(dir)
	if err == wal.ErrFileNotFound || os.IsNotExist(err) {
		created, cerr := wal.Create(dir)
		if cerr != nil {
			return nil, cerr
		}
		return &diskLog{mem: holder.MakeLog(id), wal: created}, nil
	}
	if err != nil {
		return nil, err
	}
	return &diskLog{mem: holder.RebuildLog(id, entries), wal: w}, nil
}

func (l *diskLog) FirstIndex() uint64 { return l.mem.FirstIndex() }

func (l *diskLog) LastIndex() uint64 { return l.mem.LastIndex() }

func (l *diskLog) LastTerm() uint64 { return l.mem.LastTerm() }

func (l *diskLog) Term(idx uint64) uint64 { return l.mem.Term(idx) }

func (l *diskLog) Entry(idx uint64) *raftpd.Entry { return l.mem.Entry(idx) }

func (l *diskLog) Size() uint64 { return l.mem.Size() }

func (l *diskLog) Append(entries []raftpd.Entry) uint64 {
	if err := l.wal.SaveEntries(entries); err != nil {
		log.Fatalf("wal save entries: %v", err)
	}
	return l.mem.Append(entries)
}

func (l *diskLog) TruncateSuffix(idx uint64) {
	l.mem.TruncateSuffix(idx)
}

func (l *diskLog) Compact(snap raftpd.Entry) error {
	if err := l.mem.Compact(snap); err != nil {
		return err
	}
	return l.wal.SaveSnapshot(&snap)
}

func (l *diskLog) close() error {
	return l.wal.Close()
}
