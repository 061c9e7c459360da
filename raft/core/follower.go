package core

import (
	log "github.com/sirupsen/logrus"
	raftpd "github.com/thinkermao/raftsm/raft/proto"
	"github.com/thinkermao/raftsm/utils"
)

// Follower is the inbound request logic shared by all roles. The
// handlers mutate the context, the log and the state machine, so the
// caller must invoke them from the apply thread only.
type Follower struct {
	ctx *Context

	// transition records that the replica must step back to the
	// follower role once the pending response has been handed out.
	transition bool
}

// MakeFollower return request logic bound to ctx.
func MakeFollower(ctx *Context) *Follower {
	return &Follower{ctx: ctx}
}

// TakeTransition return and reset the transition marker. The caller
// transitions to follower when it returns true; the transition is
// idempotent when already follower.
func (f *Follower) TakeTransition() bool {
	t := f.transition
	f.transition = false
	return t
}

// updateTermAndLeader adopt a greater term, or learn the leader of
// the current term. Returns true when the replica must transition.
func (f *Follower) updateTermAndLeader(term uint64, leader raftpd.NodeID) bool {
	ctx := f.ctx
	if term > ctx.CurrentTerm() ||
		(term == ctx.CurrentTerm() && ctx.CurrentLeader() == raftpd.NodeNone) {
		ctx.SetCurrentTerm(term)
		ctx.SetCurrentLeader(leader)
		return true
	}
	return false
}

// HandlePing handle the leader's heartbeat.
func (f *Follower) HandlePing(req *raftpd.PingRequest) *raftpd.PingResponse {
	ctx := f.ctx
	if f.updateTermAndLeader(req.Term, req.Leader) {
		f.transition = true
	}

	resp := &raftpd.PingResponse{ID: req.ID, Term: ctx.CurrentTerm()}

	if req.Term < ctx.CurrentTerm() {
		log.Debugf("%s [term: %d] reject ping with lower term %d from %s",
			ctx.ID(), ctx.CurrentTerm(), req.Term, req.Leader)
		resp.Accepted = false
	} else if req.LogIndex > 0 && req.LogTerm > 0 {
		resp.Accepted = f.checkPreviousEntry(req.LogIndex, req.LogTerm)
	} else {
		resp.Accepted = true
	}
	return resp
}

// HandleSync handle the leader's append request.
func (f *Follower) HandleSync(req *raftpd.SyncRequest) *raftpd.SyncResponse {
	ctx := f.ctx
	if f.updateTermAndLeader(req.Term, req.Leader) {
		f.transition = true
	}

	resp := &raftpd.SyncResponse{ID: req.ID, Term: ctx.CurrentTerm()}

	if req.Term < ctx.CurrentTerm() {
		log.Debugf("%s [term: %d] reject sync with lower term %d from %s",
			ctx.ID(), ctx.CurrentTerm(), req.Term, req.Leader)
		resp.Accepted = false
		resp.LastIndex = ctx.Log().LastIndex()
		return resp
	}

	if req.PrevLogIndex > 0 && req.PrevLogTerm > 0 &&
		!f.checkPreviousEntry(req.PrevLogIndex, req.PrevLogTerm) {
		resp.Accepted = false
		resp.LastIndex = ctx.Log().LastIndex()
		return resp
	}

	f.appendEntries(req.PrevLogIndex, req.Entries)
	f.advanceCommit(req.CommitIndex)
	f.compactLog()

	resp.Accepted = true
	resp.LastIndex = ctx.Log().LastIndex()
	return resp
}

// HandlePoll handle a candidate's vote request.
func (f *Follower) HandlePoll(req *raftpd.PollRequest) *raftpd.PollResponse {
	ctx := f.ctx
	if req.Term > ctx.CurrentTerm() {
		ctx.SetCurrentTerm(req.Term)
		f.transition = true
	}

	resp := &raftpd.PollResponse{ID: req.ID, Term: ctx.CurrentTerm()}

	switch {
	case req.Term < ctx.CurrentTerm():
		log.Debugf("%s [term: %d] reject poll with lower term %d from %s",
			ctx.ID(), ctx.CurrentTerm(), req.Term, req.Candidate)
		resp.Granted = false
	case req.Candidate == ctx.ID():
		resp.Granted = true
		f.castVote(req.Candidate)
	case !ctx.Cluster().Contains(req.Candidate):
		log.Debugf("%s reject poll from unknown candidate %s",
			ctx.ID(), req.Candidate)
		resp.Granted = false
	case ctx.LastVotedFor() != raftpd.NodeNone && ctx.LastVotedFor() != req.Candidate:
		log.Debugf("%s [term: %d] already voted for %s, reject %s",
			ctx.ID(), ctx.CurrentTerm(), ctx.LastVotedFor(), req.Candidate)
		resp.Granted = false
	default:
		resp.Granted = f.isUpToDate(req.LastLogIndex, req.LastLogTerm)
		if resp.Granted {
			f.castVote(req.Candidate)
		} else {
			ctx.SetLastVotedFor(raftpd.NodeNone)
		}
	}
	return resp
}

// checkPreviousEntry verify the local log holds idx with term.
func (f *Follower) checkPreviousEntry(idx, term uint64) bool {
	logs := f.ctx.Log()
	if idx > logs.LastIndex() {
		log.Debugf("%s reject: previous index %d past last index %d",
			f.ctx.ID(), idx, logs.LastIndex())
		return false
	}

	entry := logs.Entry(idx)
	if entry == nil || entry.Term != term {
		log.Debugf("%s reject: previous entry %d term mismatch", f.ctx.ID(), idx)
		return false
	}
	return true
}

// isUpToDate run the vote up-to-date test against the local last
// entry; (0, 0) stands for the empty log.
func (f *Follower) isUpToDate(lastLogIndex, lastLogTerm uint64) bool {
	logs := f.ctx.Log()
	lastIdx := logs.LastIndex()
	lastTerm := logs.Term(lastIdx)
	return lastLogIndex >= lastIdx && lastLogTerm >= lastTerm
}

func (f *Follower) castVote(candidate raftpd.NodeID) {
	ctx := f.ctx
	log.Infof("%s [term: %d] vote for %s", ctx.ID(), ctx.CurrentTerm(), candidate)
	ctx.SetLastVotedFor(candidate)
	ctx.events.VoteCast(ctx.CurrentTerm(), candidate)
}

// appendEntries resolve conflicts with the local log, then append.
// Entries already present with a matching term are not re-appended;
// the first conflicting entry truncates the local tail.
func (f *Follower) appendEntries(prevLogIndex uint64, entries []raftpd.Entry) {
	logs := f.ctx.Log()

	for i := 0; i < len(entries); i++ {
		entries[i].Index = prevLogIndex + uint64(i) + 1
	}

	for i := 0; i < len(entries); i++ {
		idx := entries[i].Index

		if idx <= logs.LastIndex() {
			local := logs.Entry(idx)
			if local != nil && local.Term == entries[i].Term {
				/* matching entry, skip */
				continue
			}
			utils.Assert(idx > f.ctx.CommitIndex(),
				"%s entry %d conflicts with committed entry %d",
				f.ctx.ID(), idx, f.ctx.CommitIndex())
			log.Infof("%s found conflict at index %d "+
				"[existing term: %d, conflicting term: %d]",
				f.ctx.ID(), idx, logs.Term(idx), entries[i].Term)
			logs.TruncateSuffix(idx - 1)
		}

		logs.Append(entries[i:])
		break
	}
}

// advanceCommit move the commit index and apply everything due.
func (f *Follower) advanceCommit(commitIndex uint64) {
	ctx := f.ctx
	commit := utils.MinUint64(
		utils.MaxUint64(commitIndex, ctx.CommitIndex()),
		ctx.Log().LastIndex())
	ctx.SetCommitIndex(commit)
	f.applyCommitted()
}

// applyCommitted apply entries one by one until lastApplied catches
// up with the commit index. A missing entry at the expected index is
// a hole in the log and aborts the replica.
func (f *Follower) applyCommitted() {
	ctx := f.ctx
	target := utils.MinUint64(ctx.CommitIndex(), ctx.Log().LastIndex())

	for ctx.LastApplied() < target {
		idx := ctx.LastApplied() + 1
		entry := ctx.Log().Entry(idx)
		if entry == nil {
			log.Fatalf("%s missing entry at apply index %d", ctx.ID(), idx)
		}
		f.applyEntry(entry)
		ctx.setLastApplied(idx)
	}
}

// applyEntry dispatch one entry to its variant handler.
func (f *Follower) applyEntry(entry *raftpd.Entry) {
	ctx := f.ctx
	switch entry.Type {
	case raftpd.EntryCommand:
		if err := ctx.StateMachine().ApplyCommand(
			entry.Index, entry.Command, entry.Args); err != nil {
			// User-level command failures do not stall the apply
			// stream; every replica sees the same failure.
			log.Warnf("%s command %q at %d failed: %v",
				ctx.ID(), entry.Command, entry.Index, err)
		}
	case raftpd.EntryConfiguration:
		ctx.Cluster().Update(entry.Conf)
		ctx.storeConfiguration(entry.Conf)
	case raftpd.EntrySnapshot:
		if err := ctx.StateMachine().InstallSnapshot(entry.Data); err != nil {
			log.Fatalf("%s install snapshot at %d: %v",
				ctx.ID(), entry.Index, err)
		}
		ctx.Cluster().Update(entry.Conf)
		ctx.storeConfiguration(entry.Conf)
		ctx.SetCurrentTerm(utils.MaxUint64(ctx.CurrentTerm(), entry.Term))
	case raftpd.EntryNoOp:
		/* advances lastApplied only */
	}
}

// compactLog snapshot the state machine and compact the log once it
// outgrows the configured size. Only compactable logs participate.
func (f *Follower) compactLog() {
	ctx := f.ctx
	compactable, ok := ctx.Log().(Compactable)
	if !ok {
		return
	}
	maxSize := ctx.Config().MaxLogSize
	if maxSize == 0 || ctx.Log().Size() <= maxSize {
		return
	}

	data, err := ctx.StateMachine().TakeSnapshot()
	if err != nil {
		log.Fatalf("%s take snapshot: %v", ctx.ID(), err)
	}
	if data == nil {
		return
	}

	snap := raftpd.Entry{
		Index: ctx.LastApplied(),
		Term:  ctx.CurrentTerm(),
		Type:  raftpd.EntrySnapshot,
		Conf:  ctx.Cluster().Configuration(),
		Data:  data,
	}

	log.Infof("%s compact log at %d [size: %d]",
		ctx.ID(), snap.Index, ctx.Log().Size())
	if err := compactable.Compact(snap); err != nil {
		log.Fatalf("%s compact log: %v", ctx.ID(), err)
	}
}
