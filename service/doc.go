// Package service holds the deterministic building blocks replicated
// services are written against: the replicated wall clock, the
// scheduler, client sessions and the named service registry.
//
// Everything here runs on the replica's apply thread. Command
// handlers and timer fires never overlap, so services need no
// locking of their own. Time never comes from the host: the wall
// clock advances with the leader-stamped timestamps replicated in
// the command stream, which keeps timer decisions identical on
// every replica.
package service
