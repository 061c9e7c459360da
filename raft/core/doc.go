// Package core provides the per-replica consensus state logic.
//
// `Context` is the coherent record of one replica: current term,
// leader, vote, commit index, last applied index, plus handles to the
// log, the state machine and the cluster view. Term and vote writes
// persist through the meta store before any response that depends on
// them leaves the replica.
//
// `Follower` is the inbound request logic shared by every role:
// `HandlePing`, `HandleSync` and `HandlePoll`. Candidate and leader
// replicas reuse the same handlers for inbound requests and run their
// election and replication loops elsewhere. Handlers never block on
// the network; only log and snapshot I/O happens inside them, on the
// caller's apply thread. After a handler returns with the transition
// marker set, the caller must step the replica back to the follower
// role before serving the next request.
package core
