package wal

import (
	"errors"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	raftpd "github.com/thinkermao/raftsm/raft/proto"
	walpd "github.com/thinkermao/raftsm/raft/wal/proto"
	"github.com/thinkermao/raftsm/utils"
	"github.com/thinkermao/raftsm/utils/pd"
)

const (
	RecordEntry int32 = iota
	RecordSnapshot
)

var (
	// SegmentSizeBytes is the rotation threshold of each wal segment
	// file. In general, the default value should be used, but this is
	// defined as an exported variable so that tests can set a
	// different segment size.
	SegmentSizeBytes int64 = 64 * 1000 * 1000 // 64MB

	ErrFileNotFound = errors.New("wal: file not found")
	ErrCRCMismatch  = errors.New("wal: crc mismatch")

	crcTable = crc32.MakeTable(crc32.Castagnoli)
)

// Wal persists log entries and compaction snapshots as appended
// records. Entries overwrite on replay: a record whose index is not
// past the reconciled tail truncates it, so a truncate-and-append
// needs no dedicated record. A snapshot record resets the tail and
// purges older segments.
type Wal struct {
	walDir         string
	lastEntryIndex uint64
	files          []*os.File

	enc *encoder
	dec *decoder
}

// Create initialize an empty wal inside walDir.
func Create(walDir string) (*Wal, error) {
	if err := os.MkdirAll(walDir, 0700); err != nil {
		return nil, err
	}

	name := filepath.Join(walDir, walName(0, 0))
	file, err := os.Create(name)
	if err != nil {
		return nil, err
	}

	wal := &Wal{
		walDir: walDir,
		files:  []*os.File{file},
	}
	wal.enc = makeEncoder(wal.tailFile())
	return wal, nil
}

// Open replay all segments of walDir and switch to append mode.
// The returned entries always start with the dummy entry the log
// rebuilds from: the last snapshot record, or a zero entry.
func Open(walDir string) (*Wal, []raftpd.Entry, error) {
	names, err := readAllWalNames(walDir)
	if err != nil {
		return nil, nil, err
	}
	if !isValidSequences(names) {
		return nil, nil, ErrFileNotFound
	}

	files := make([]*os.File, 0, len(names))
	for i := 0; i < len(names); i++ {
		f, err := os.OpenFile(filepath.Join(walDir, names[i]), os.O_RDWR, 0600)
		if err != nil {
			closeAll(files...)
			return nil, nil, err
		}
		files = append(files, f)
	}

	wal := &Wal{walDir: walDir, files: files}
	wal.dec = makeDecoder(files)

	entries, err := wal.readAll()
	if err != nil {
		closeAll(files...)
		return nil, nil, err
	}
	return wal, entries, nil
}

func (wal *Wal) readAll() ([]raftpd.Entry, error) {
	utils.Assert(wal.dec != nil, "must be open mode")

	entries := []raftpd.Entry{{}} // zero dummy until a snapshot arrives
	record := walpd.Record{}
	for {
		err := wal.dec.decode(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch record.Type {
		case RecordEntry:
			var entry raftpd.Entry
			pd.MustUnmarshal(&entry, record.Data)
			offset := entries[0].Index
			if entry.Index > offset {
				entries = append(entries[:entry.Index-offset], entry)
				wal.lastEntryIndex = entry.Index
			}
		case RecordSnapshot:
			var snap raftpd.Entry
			pd.MustUnmarshal(&snap, record.Data)
			entries = []raftpd.Entry{snap}
			wal.lastEntryIndex = snap.Index
		default:
			log.Panicf("open file with unknown record type %d", record.Type)
		}
	}

	/* translate to append mode, replayed segments are read-done */
	wal.dec = nil
	tail := wal.tailFile()
	closeAll(wal.files[:len(wal.files)-1]...)
	wal.files = []*os.File{tail}
	if _, err := tail.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}
	wal.enc = makeEncoder(tail)

	return entries, nil
}

// SaveEntries append the entries and sync.
func (wal *Wal) SaveEntries(entries []raftpd.Entry) error {
	utils.Assert(wal.enc != nil, "must be append mode")

	for i := 0; i < len(entries); i++ {
		b := pd.MustMarshal(&entries[i])
		record := walpd.Record{Type: RecordEntry, Data: b}
		if err := wal.enc.encode(&record); err != nil {
			return err
		}
		wal.lastEntryIndex = entries[i].Index
	}

	if err := wal.sync(); err != nil {
		return err
	}
	return wal.maybeRotate()
}

// SaveSnapshot rotate to a fresh segment beginning with the snapshot
// record, then drop every older segment.
func (wal *Wal) SaveSnapshot(snap *raftpd.Entry) error {
	utils.Assert(wal.enc != nil, "must be append mode")

	if err := wal.rotate(snap.Index); err != nil {
		return err
	}

	b := pd.MustMarshal(snap)
	record := walpd.Record{Type: RecordSnapshot, Data: b}
	if err := wal.enc.encode(&record); err != nil {
		return err
	}
	if err := wal.sync(); err != nil {
		return err
	}

	tail := wal.tailFile()
	if names, err := readAllWalNames(wal.walDir); err == nil {
		removeAllFilesBefore(wal.walDir, names, filepath.Base(tail.Name()))
	}
	closeAll(wal.files[:len(wal.files)-1]...)
	wal.files = []*os.File{tail}
	return nil
}

// Close release the underlying segment files.
func (wal *Wal) Close() error {
	closeAll(wal.files...)
	return nil
}

func (wal *Wal) maybeRotate() error {
	curOff, err := wal.tailFile().Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if curOff < SegmentSizeBytes {
		return nil
	}
	return wal.rotate(wal.lastEntryIndex)
}

func (wal *Wal) rotate(index uint64) error {
	nextSequence := wal.lastSequence() + 1
	file, err := os.Create(filepath.Join(wal.walDir, walName(nextSequence, index)))
	if err != nil {
		return err
	}

	wal.files = append(wal.files, file)
	wal.enc = makeEncoder(file)
	return nil
}

func (wal *Wal) sync() error {
	return wal.enc.flush()
}

func (wal *Wal) tailFile() *os.File {
	utils.Assert(len(wal.files) != 0, "file must no empty")
	return wal.files[len(wal.files)-1]
}

func (wal *Wal) lastSequence() uint64 {
	seq, _, err := parseWalName(filepath.Base(wal.tailFile().Name()))
	if err != nil {
		log.Fatalf("bad wal name %s (%v)", wal.tailFile().Name(), err)
	}
	return seq
}
