// Package meta persists the replica's <term, vote> metadata and the
// latest cluster configuration. Irrespective of the configured storage
// level, <term, vote> is always disk backed: raft safety forbids a
// replica forgetting either across a crash.
package meta

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	raftpd "github.com/thinkermao/raftsm/raft/proto"
	"github.com/thinkermao/raftsm/utils/pd"
)

// StorageLevel selects where the configuration record lives.
// The metadata record ignores it.
type StorageLevel int

const (
	LevelDisk StorageLevel = iota
	LevelMemory
)

// metaSize is the guaranteed size of the metadata region:
// [u64 LE term @0][u32 LE vote length @8], vote bytes after.
const metaSize = 12

// Store persists term, vote and configuration for one replica.
// All writes flush before returning; callers must not answer an
// RPC that depends on a store until it has returned.
type Store struct {
	name     string
	metaFile *os.File
	confFile *os.File // nil at LevelMemory
	confMem  []byte   // LevelMemory backing
}

// Open create or open the metadata files for name inside dir.
func Open(dir, name string, level StorageLevel) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("meta: create directory %s: %w", dir, err)
	}

	metaPath := filepath.Join(dir, fmt.Sprintf("%s.meta", name))
	metaFile, err := os.OpenFile(metaPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}

	if info, err := metaFile.Stat(); err != nil {
		metaFile.Close()
		return nil, err
	} else if info.Size() < metaSize {
		if err := metaFile.Truncate(metaSize); err != nil {
			metaFile.Close()
			return nil, err
		}
	}

	store := &Store{name: name, metaFile: metaFile}

	if level == LevelMemory {
		store.confMem = make([]byte, 0, 32)
	} else {
		confPath := filepath.Join(dir, fmt.Sprintf("%s.conf", name))
		confFile, err := os.OpenFile(confPath, os.O_RDWR|os.O_CREATE, 0600)
		if err != nil {
			metaFile.Close()
			return nil, err
		}
		store.confFile = confFile
	}
	return store, nil
}

// StoreTerm overwrite the term slot and flush.
func (s *Store) StoreTerm(term uint64) error {
	log.Tracef("%s store term %d", s.name, term)

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], term)
	if _, err := s.metaFile.WriteAt(buf[:], 0); err != nil {
		return err
	}
	return s.metaFile.Sync()
}

// LoadTerm read the stored term; 0 if unwritten.
func (s *Store) LoadTerm() (uint64, error) {
	var buf [8]byte
	if _, err := s.metaFile.ReadAt(buf[:], 0); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// StoreVote overwrite the vote slot and flush. NodeNone clears it.
func (s *Store) StoreVote(vote raftpd.NodeID) error {
	log.Tracef("%s store vote %q", s.name, vote)

	buf := make([]byte, 4+len(vote))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(vote)))
	copy(buf[4:], vote)
	if _, err := s.metaFile.WriteAt(buf, 8); err != nil {
		return err
	}
	return s.metaFile.Sync()
}

// LoadVote read the stored vote, NodeNone if absent.
func (s *Store) LoadVote() (raftpd.NodeID, error) {
	var lenBuf [4]byte
	if _, err := s.metaFile.ReadAt(lenBuf[:], 8); err != nil {
		return raftpd.NodeNone, err
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length == 0 {
		return raftpd.NodeNone, nil
	}

	buf := make([]byte, length)
	if _, err := s.metaFile.ReadAt(buf, metaSize); err != nil {
		return raftpd.NodeNone, err
	}
	return raftpd.NodeID(buf), nil
}

// StoreConfiguration serialize and overwrite the configuration
// record: [u8 presence][u32 LE length][bytes].
func (s *Store) StoreConfiguration(conf *raftpd.Configuration) error {
	log.Tracef("%s store configuration %v", s.name, conf)

	bytes, err := pd.Marshal(conf)
	if err != nil {
		return err
	}

	buf := make([]byte, 5+len(bytes))
	buf[0] = 1
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(bytes)))
	copy(buf[5:], bytes)

	if s.confFile == nil {
		s.confMem = buf
		return nil
	}
	if _, err := s.confFile.WriteAt(buf, 0); err != nil {
		return err
	}
	return s.confFile.Sync()
}

// LoadConfiguration read the stored configuration, nil when the
// presence byte is 0 or nothing was ever stored.
func (s *Store) LoadConfiguration() (*raftpd.Configuration, error) {
	var buf []byte
	if s.confFile == nil {
		buf = s.confMem
	} else {
		info, err := s.confFile.Stat()
		if err != nil {
			return nil, err
		}
		buf = make([]byte, info.Size())
		if _, err := s.confFile.ReadAt(buf, 0); err != nil {
			return nil, err
		}
	}

	if len(buf) < 5 || buf[0] == 0 {
		return nil, nil
	}
	length := binary.LittleEndian.Uint32(buf[1:5])

	conf := raftpd.Configuration{}
	if err := pd.Unmarshal(&conf, buf[5:5+length]); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Close release the underlying files.
func (s *Store) Close() error {
	if s.confFile != nil {
		if err := s.confFile.Close(); err != nil {
			s.metaFile.Close()
			return err
		}
	}
	return s.metaFile.Close()
}
