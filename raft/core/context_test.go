package core

import (
	"testing"

	"github.com/stretchr/testify/require"
	raftpd "github.com/thinkermao/raftsm/raft/proto"
)

func TestContextTermAdvanceClearsVoteAndLeader(t *testing.T) {
	f := makeFixture(t, 0)

	f.ctx.SetCurrentTerm(3)
	f.ctx.SetCurrentLeader("n2")
	f.ctx.SetLastVotedFor("n2")

	f.ctx.SetCurrentTerm(4)
	require.Equal(t, raftpd.NodeNone, f.ctx.CurrentLeader())
	require.Equal(t, raftpd.NodeNone, f.ctx.LastVotedFor())

	// cleared vote is durable too
	vote, err := f.store.LoadVote()
	require.NoError(t, err)
	require.Equal(t, raftpd.NodeNone, vote)
}

func TestContextSameTermKeepsState(t *testing.T) {
	f := makeFixture(t, 0)

	f.ctx.SetCurrentTerm(3)
	f.ctx.SetCurrentLeader("n2")
	f.ctx.SetLastVotedFor("n2")

	f.ctx.SetCurrentTerm(3)
	require.Equal(t, raftpd.NodeID("n2"), f.ctx.CurrentLeader())
	require.Equal(t, raftpd.NodeID("n2"), f.ctx.LastVotedFor())
}

func TestContextTermRegressPanics(t *testing.T) {
	f := makeFixture(t, 0)
	f.ctx.SetCurrentTerm(5)

	require.Panics(t, func() { f.ctx.SetCurrentTerm(4) })
}

func TestContextVotePersists(t *testing.T) {
	f := makeFixture(t, 0)

	f.ctx.SetLastVotedFor("n3")
	vote, err := f.store.LoadVote()
	require.NoError(t, err)
	require.Equal(t, raftpd.NodeID("n3"), vote)
}

func TestContextCommitMonotonic(t *testing.T) {
	f := makeFixture(t, 0)

	f.ctx.SetCommitIndex(3)
	f.ctx.SetCommitIndex(3)
	require.Equal(t, uint64(3), f.ctx.CommitIndex())

	require.Panics(t, func() { f.ctx.SetCommitIndex(2) })
}

func TestContextApplyAdvancesByOne(t *testing.T) {
	f := makeFixture(t, 0)

	f.ctx.setLastApplied(1)
	f.ctx.setLastApplied(2)
	require.Equal(t, uint64(2), f.ctx.LastApplied())

	require.Panics(t, func() { f.ctx.setLastApplied(4) })
}
