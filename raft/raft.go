// Package raft wires one replica together: meta store, log,
// consensus context and the shared request logic. All request
// handling is funnelled through a single mutex, the Go rendition of
// the per-replica apply thread: commands, timers and snapshot work
// never interleave.
package raft

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/thinkermao/raftsm/config"
	"github.com/thinkermao/raftsm/raft/core"
	"github.com/thinkermao/raftsm/raft/core/conf"
	"github.com/thinkermao/raftsm/raft/core/holder"
	"github.com/thinkermao/raftsm/raft/meta"
	raftpd "github.com/thinkermao/raftsm/raft/proto"
)

// ErrClosed is returned for requests reaching a closed replica.
var ErrClosed = errors.New("raft: replica closed")

// errNotLeader is the payload error for submissions to a non-leader.
const errNotLeader = "Not the leader"

type closer interface {
	close() error
}

// Replica is one member of the cluster, serving inbound peer
// requests. It opens as a follower; election and replication loops
// belong to the candidate and leader roles and live elsewhere.
type Replica struct {
	mutex sync.Mutex

	id    raftpd.NodeID
	ctx   *core.Context
	logic *core.Follower
	meta  *meta.Store
	role  core.StateRole

	logCloser closer
	destroyed bool
}

// Open build a replica from cfg, recovering term, vote,
// configuration and log from the data directory.
func Open(cfg *config.Config, sm core.StateMachine, events core.EventSink) (*Replica, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := raftpd.NodeID(cfg.Node.ID)

	level := meta.LevelDisk
	if cfg.Storage.Level == config.LevelMemory {
		level = meta.LevelMemory
	}

	store, err := meta.Open(cfg.Node.DataDir, cfg.Node.ID, level)
	if err != nil {
		return nil, err
	}

	term, err := store.LoadTerm()
	if err != nil {
		store.Close()
		return nil, err
	}
	vote, err := store.LoadVote()
	if err != nil {
		store.Close()
		return nil, err
	}

	members := make([]raftpd.NodeID, 0, len(cfg.Cluster.Peers))
	for _, peer := range cfg.Cluster.Peers {
		members = append(members, raftpd.NodeID(peer))
	}
	if stored, err := store.LoadConfiguration(); err != nil {
		store.Close()
		return nil, err
	} else if stored != nil {
		members = stored.Members
	}

	replica := &Replica{id: id, meta: store, role: core.FOLLOWER}

	var logs core.Log
	if level == meta.LevelMemory {
		logs = holder.MakeLog(id)
	} else {
		disk, err := openDiskLog(id, cfg.Node.DataDir)
		if err != nil {
			store.Close()
			return nil, err
		}
		logs = disk
		replica.logCloser = disk
	}

	coreConfig := &conf.Config{
		ID:         id,
		MaxLogSize: cfg.Storage.MaxLogSize,
		Members:    members,
	}
	replica.ctx = core.MakeContext(coreConfig, term, vote, members, logs, sm, store, events)
	replica.logic = core.MakeFollower(replica.ctx)

	log.Infof("%s open replica at term: %d [lastIdx: %d, members: %v]",
		id, term, logs.LastIndex(), members)

	return replica, nil
}

// Ping handle a heartbeat from the leader.
func (r *Replica) Ping(req *raftpd.PingRequest) (*raftpd.PingResponse, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.destroyed {
		return nil, ErrClosed
	}
	resp := r.logic.HandlePing(req)
	r.maybeTransition()
	return resp, nil
}

// Sync handle an append request from the leader.
func (r *Replica) Sync(req *raftpd.SyncRequest) (*raftpd.SyncResponse, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.destroyed {
		return nil, ErrClosed
	}
	resp := r.logic.HandleSync(req)
	r.maybeTransition()
	return resp, nil
}

// Poll handle a vote request from a candidate.
func (r *Replica) Poll(req *raftpd.PollRequest) (*raftpd.PollResponse, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.destroyed {
		return nil, ErrClosed
	}
	resp := r.logic.HandlePoll(req)
	r.maybeTransition()
	return resp, nil
}

// Submit handle a client command. Only the leader accepts
// submissions; everyone else reports the failure in the payload.
func (r *Replica) Submit(req *raftpd.SubmitRequest) (*raftpd.SubmitResponse, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.destroyed {
		return nil, ErrClosed
	}

	// Election and replication loops live with the leader role,
	// which this replica never takes on its own.
	return &raftpd.SubmitResponse{ID: req.ID, Error: errNotLeader}, nil
}

// Role return the current role.
func (r *Replica) Role() core.StateRole {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.role
}

// Context expose the replica state to the embedding runtime.
func (r *Replica) Context() *core.Context {
	return r.ctx
}

// Close drain in-flight work and release storage. Later requests
// fail with ErrClosed.
func (r *Replica) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.destroyed {
		return nil
	}
	r.destroyed = true

	log.Infof("%s close replica", r.id)

	if r.logCloser != nil {
		if err := r.logCloser.close(); err != nil {
			r.meta.Close()
			return err
		}
	}
	return r.meta.Close()
}

func (r *Replica) maybeTransition() {
	if !r.logic.TakeTransition() {
		return
	}
	if !r.role.IsFollower() {
		log.Infof("%s [term: %d] step down to follower",
			r.id, r.ctx.CurrentTerm())
	}
	r.role = core.FOLLOWER
}
