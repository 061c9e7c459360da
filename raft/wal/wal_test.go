package wal

import (
	"testing"

	"github.com/stretchr/testify/require"
	raftpd "github.com/thinkermao/raftsm/raft/proto"
)

func makeEntry(idx, term uint64) raftpd.Entry {
	return raftpd.Entry{Index: idx, Term: term, Type: raftpd.EntryCommand}
}

func TestWalRoundTrip(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(dir)
	require.NoError(t, err)
	require.NoError(t, w.SaveEntries([]raftpd.Entry{
		makeEntry(1, 1), makeEntry(2, 1), makeEntry(3, 2),
	}))
	require.NoError(t, w.Close())

	w, entries, err := Open(dir)
	require.NoError(t, err)
	defer w.Close()

	// leading dummy, then the saved entries
	require.Len(t, entries, 4)
	require.Equal(t, uint64(0), entries[0].Index)
	for i := 1; i < 4; i++ {
		require.Equal(t, uint64(i), entries[i].Index)
	}
	require.Equal(t, uint64(2), entries[3].Term)
}

func TestWalReplayReconcilesOverwrite(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(dir)
	require.NoError(t, err)
	require.NoError(t, w.SaveEntries([]raftpd.Entry{
		makeEntry(1, 1), makeEntry(2, 1), makeEntry(3, 1),
	}))
	// a conflicting tail was truncated and re-replicated
	require.NoError(t, w.SaveEntries([]raftpd.Entry{makeEntry(2, 3)}))
	require.NoError(t, w.Close())

	w, entries, err := Open(dir)
	require.NoError(t, err)
	defer w.Close()

	// the overwrite dropped entry 3 and replaced entry 2
	require.Len(t, entries, 3)
	require.Equal(t, uint64(2), entries[2].Index)
	require.Equal(t, uint64(3), entries[2].Term)
}

func TestWalSnapshotPurgesHistory(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(dir)
	require.NoError(t, err)
	require.NoError(t, w.SaveEntries([]raftpd.Entry{
		makeEntry(1, 1), makeEntry(2, 1), makeEntry(3, 2), makeEntry(4, 2),
	}))

	snap := raftpd.Entry{Index: 3, Term: 2, Type: raftpd.EntrySnapshot, Data: []byte("image")}
	require.NoError(t, w.SaveSnapshot(&snap))
	require.NoError(t, w.SaveEntries([]raftpd.Entry{makeEntry(4, 2), makeEntry(5, 2)}))
	require.NoError(t, w.Close())

	names, err := readAllWalNames(dir)
	require.NoError(t, err)
	require.Len(t, names, 1)

	w, entries, err := Open(dir)
	require.NoError(t, err)
	defer w.Close()

	// replay starts from the snapshot record
	require.Equal(t, raftpd.EntrySnapshot, entries[0].Type)
	require.Equal(t, uint64(3), entries[0].Index)
	require.Len(t, entries, 3)
	require.Equal(t, uint64(5), entries[2].Index)
}

func TestWalRotation(t *testing.T) {
	dir := t.TempDir()

	old := SegmentSizeBytes
	SegmentSizeBytes = 64
	defer func() { SegmentSizeBytes = old }()

	w, err := Create(dir)
	require.NoError(t, err)
	for i := uint64(1); i <= 8; i++ {
		require.NoError(t, w.SaveEntries([]raftpd.Entry{makeEntry(i, 1)}))
	}
	require.NoError(t, w.Close())

	names, err := readAllWalNames(dir)
	require.NoError(t, err)
	require.Greater(t, len(names), 1)

	w, entries, err := Open(dir)
	require.NoError(t, err)
	defer w.Close()
	require.Len(t, entries, 9)
}

func TestWalNameFormat(t *testing.T) {
	name := walName(2, 31)
	seq, index, err := parseWalName(name)
	require.NoError(t, err)
	require.Equal(t, uint64(2), seq)
	require.Equal(t, uint64(31), index)

	_, _, err = parseWalName("not-a-wal.txt")
	require.Error(t, err)
}
