package service

import (
	log "github.com/sirupsen/logrus"
)

type SessionState int

const (
	SessionOpen SessionState = iota
	SessionExpired
	SessionClosed
)

var sessionStateStr = []string{
	"Open",
	"Expired",
	"Closed",
}

func (s SessionState) String() string {
	return sessionStateStr[s]
}

// Active reports whether the session can still receive events.
func (s SessionState) Active() bool {
	return s == SessionOpen
}

// Session is one client identity. It is the unit of ownership for
// service state such as lock holders.
type Session struct {
	id       uint64
	state    SessionState
	listener func(topic string, event interface{})
}

// ID return the session identity.
func (s *Session) ID() uint64 {
	return s.id
}

// State return the lifecycle state.
func (s *Session) State() SessionState {
	return s.state
}

// SetListener install the event sink of the session. Events are
// side channels: the transport delivers them after any in-flight
// response to the triggering command.
func (s *Session) SetListener(fn func(topic string, event interface{})) {
	s.listener = fn
}

// Publish deliver an event to the session, in emission order.
func (s *Session) Publish(topic string, event interface{}) {
	if s.listener == nil {
		return
	}
	s.listener(topic, event)
}

// SessionListener is notified of session terminations. Services
// implement it to release state owned by dead sessions.
type SessionListener interface {
	OnExpire(session *Session)
	OnClose(session *Session)
}

// Sessions is the registry of client sessions known to the replica.
type Sessions struct {
	sessions  map[uint64]*Session
	listeners []SessionListener
}

// MakeSessions return an empty registry.
func MakeSessions() *Sessions {
	return &Sessions{sessions: make(map[uint64]*Session)}
}

// AddListener subscribe a service to session terminations.
func (s *Sessions) AddListener(listener SessionListener) {
	s.listeners = append(s.listeners, listener)
}

// Open return the session with id, creating it when unknown.
func (s *Sessions) Open(id uint64) *Session {
	if session, ok := s.sessions[id]; ok {
		return session
	}
	log.Debugf("open session %d", id)
	session := &Session{id: id, state: SessionOpen}
	s.sessions[id] = session
	return session
}

// Session return the session with id, nil when unknown.
func (s *Sessions) Session(id uint64) *Session {
	return s.sessions[id]
}

// Expire mark the session expired by the cluster and notify
// services. Terminated sessions are ignored.
func (s *Sessions) Expire(id uint64) {
	session, ok := s.sessions[id]
	if !ok || !session.state.Active() {
		return
	}
	log.Debugf("expire session %d", id)
	session.state = SessionExpired
	for _, listener := range s.listeners {
		listener.OnExpire(session)
	}
}

// Close mark the session closed by the client and notify services.
// Terminated sessions are ignored.
func (s *Sessions) Close(id uint64) {
	session, ok := s.sessions[id]
	if !ok || !session.state.Active() {
		return
	}
	log.Debugf("close session %d", id)
	session.state = SessionClosed
	for _, listener := range s.listeners {
		listener.OnClose(session)
	}
}
