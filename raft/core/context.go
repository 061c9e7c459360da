package core

import (
	log "github.com/sirupsen/logrus"
	"github.com/thinkermao/raftsm/raft/core/conf"
	raftpd "github.com/thinkermao/raftsm/raft/proto"
	"github.com/thinkermao/raftsm/utils"
)

// MetaStore is the durable record of <term, vote> and the latest
// configuration. Stores must have flushed before they return.
type MetaStore interface {
	StoreTerm(term uint64) error
	StoreVote(vote raftpd.NodeID) error
	StoreConfiguration(conf *raftpd.Configuration) error
}

// Context is the in-memory state of one replica. Setters for term
// and vote persist through the meta store; a store failure aborts
// the replica.
type Context struct {
	config *conf.Config

	term        uint64
	leader      raftpd.NodeID
	votedFor    raftpd.NodeID
	commitIndex uint64
	lastApplied uint64

	logs    Log
	sm      StateMachine
	cluster *Cluster
	meta    MetaStore
	events  EventSink
}

// MakeContext build a replica context from recovered state. term and
// vote come from the meta store; members is the effective membership
// (stored configuration when present, bootstrap config otherwise).
func MakeContext(config *conf.Config, term uint64, vote raftpd.NodeID,
	members []raftpd.NodeID, logs Log, sm StateMachine,
	meta MetaStore, events EventSink) *Context {
	config.Verify()

	if events == nil {
		events = NopEvents{}
	}

	ctx := &Context{
		config:   config,
		term:     term,
		leader:   raftpd.NodeNone,
		votedFor: vote,
		logs:     logs,
		sm:       sm,
		cluster:  makeCluster(config.ID, members),
		meta:     meta,
		events:   events,
	}

	log.Debugf("%s build context at term: %d [lastIdx: %d, vote: %q]",
		config.ID, term, logs.LastIndex(), vote)

	return ctx
}

// ID return the local replica identity.
func (ctx *Context) ID() raftpd.NodeID {
	return ctx.config.ID
}

// CurrentTerm return the current term.
func (ctx *Context) CurrentTerm() uint64 {
	return ctx.term
}

// SetCurrentTerm advance the current term, persisting it before
// returning. Advancing clears the known leader and the vote.
func (ctx *Context) SetCurrentTerm(term uint64) {
	utils.Assert(term >= ctx.term,
		"%s term %d regresses below %d", ctx.ID(), term, ctx.term)

	if term == ctx.term {
		return
	}

	log.Debugf("%s advance term %d => %d", ctx.ID(), ctx.term, term)
	ctx.term = term
	ctx.leader = raftpd.NodeNone
	ctx.votedFor = raftpd.NodeNone
	if err := ctx.meta.StoreTerm(term); err != nil {
		log.Fatalf("%s store term: %v", ctx.ID(), err)
	}
	if err := ctx.meta.StoreVote(raftpd.NodeNone); err != nil {
		log.Fatalf("%s store vote: %v", ctx.ID(), err)
	}
}

// CurrentLeader return the known leader, NodeNone when unknown.
func (ctx *Context) CurrentLeader() raftpd.NodeID {
	return ctx.leader
}

// SetCurrentLeader record the leader of the current term.
func (ctx *Context) SetCurrentLeader(leader raftpd.NodeID) {
	ctx.leader = leader
}

// LastVotedFor return the vote of the current term, NodeNone
// when not cast.
func (ctx *Context) LastVotedFor() raftpd.NodeID {
	return ctx.votedFor
}

// SetLastVotedFor record the vote, persisting it before returning.
func (ctx *Context) SetLastVotedFor(vote raftpd.NodeID) {
	ctx.votedFor = vote
	if err := ctx.meta.StoreVote(vote); err != nil {
		log.Fatalf("%s store vote: %v", ctx.ID(), err)
	}
}

// CommitIndex return the highest index known safely replicated.
func (ctx *Context) CommitIndex() uint64 {
	return ctx.commitIndex
}

// SetCommitIndex advance the commit index; it never decreases.
func (ctx *Context) SetCommitIndex(idx uint64) {
	utils.Assert(idx >= ctx.commitIndex,
		"%s commit %d regresses below %d", ctx.ID(), idx, ctx.commitIndex)
	ctx.commitIndex = idx
}

// LastApplied return the highest index applied to the state machine.
func (ctx *Context) LastApplied() uint64 {
	return ctx.lastApplied
}

// setLastApplied advance lastApplied by exactly one.
func (ctx *Context) setLastApplied(idx uint64) {
	utils.Assert(idx == ctx.lastApplied+1,
		"%s apply skips from %d to %d", ctx.ID(), ctx.lastApplied, idx)
	ctx.lastApplied = idx
}

// Log return the replicated log.
func (ctx *Context) Log() Log {
	return ctx.logs
}

// StateMachine return the registered state machine.
func (ctx *Context) StateMachine() StateMachine {
	return ctx.sm
}

// Cluster return the membership view.
func (ctx *Context) Cluster() *Cluster {
	return ctx.cluster
}

// Config return the replica configuration.
func (ctx *Context) Config() *conf.Config {
	return ctx.config
}

func (ctx *Context) storeConfiguration(conf *raftpd.Configuration) {
	if conf == nil {
		return
	}
	if err := ctx.meta.StoreConfiguration(conf); err != nil {
		log.Fatalf("%s store configuration: %v", ctx.ID(), err)
	}
}
