// Package lock is the distributed lock service: one holder, a FIFO
// wait queue ordered by command index, and replicated timers for
// bounded waits.
package lock

import (
	"encoding/gob"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/thinkermao/raftsm/service"
	"github.com/thinkermao/raftsm/utils/pd"
)

// Name is the registration name of the service.
const Name = "LOCK"

// Operations of the command stream.
const (
	OpLock   = "lock"
	OpUnlock = "unlock"
)

// Event topics published to client sessions.
const (
	EventLocked = "LOCKED"
	EventFailed = "FAILED"
)

// Event is the payload of LOCKED and FAILED notifications.
type Event struct {
	ID    uint32
	Index uint64
}

// LockArgs carry a lock request. Timeout semantics, milliseconds of
// replicated time: 0 try once, > 0 bounded wait, < 0 wait forever.
type LockArgs struct {
	ID      uint32
	Timeout int64
}

func (a *LockArgs) Reset() { *a = LockArgs{} }

// UnlockArgs carry a release request.
type UnlockArgs struct {
	ID uint32
}

func (a *UnlockArgs) Reset() { *a = UnlockArgs{} }

// Holder records who owns or waits for the lock. Expire is an
// absolute replicated timestamp; 0 means no expiration.
type Holder struct {
	ID      uint32
	Index   uint64
	Session uint64
	Expire  int64
}

// snapshot is the durable state: holder and queue. Timers are
// rebuilt from the queued expirations on restore.
type snapshot struct {
	Current *Holder
	Queue   []*Holder
}

// Service implements the distributed lock.
type Service struct {
	host    service.Host
	current *Holder
	queue   []*Holder
	timers  map[uint64]service.Scheduled
}

func init() {
	service.Register(Name, func() service.Service { return New() })
}

// New return an empty lock service.
func New() *Service {
	return &Service{timers: make(map[uint64]service.Scheduled)}
}

func (s *Service) Name() string {
	return Name
}

func (s *Service) Init(host service.Host) {
	s.host = host
}

func (s *Service) Apply(ctx service.Context, operation string, args []byte) error {
	switch operation {
	case OpLock:
		lockArgs := LockArgs{}
		if err := pd.Unmarshal(&lockArgs, args); err != nil {
			return err
		}
		s.lock(ctx, lockArgs.ID, lockArgs.Timeout)
		return nil
	case OpUnlock:
		unlockArgs := UnlockArgs{}
		if err := pd.Unmarshal(&unlockArgs, args); err != nil {
			return err
		}
		s.unlock(ctx, unlockArgs.ID)
		return nil
	default:
		return fmt.Errorf("lock: unknown operation %q", operation)
	}
}

// lock grant immediately, fail a try, or enqueue with an optional
// expiration timer.
func (s *Service) lock(ctx service.Context, id uint32, timeout int64) {
	// If the lock is not already owned, immediately grant it to the
	// requester. The event still goes out: the client-side primitive
	// receives it after the response to the lock command.
	if s.current == nil {
		s.current = &Holder{
			ID:      id,
			Index:   ctx.Index(),
			Session: ctx.Session().ID(),
		}
		ctx.Session().Publish(EventLocked, Event{ID: id, Index: ctx.Index()})
		return
	}

	// A zero timeout is a try: fail it on the spot.
	if timeout == 0 {
		ctx.Session().Publish(EventFailed, Event{ID: id, Index: ctx.Index()})
		return
	}

	if timeout > 0 {
		// Expiration is replicated time, never host time, so every
		// replica reaches the same verdict.
		holder := &Holder{
			ID:      id,
			Index:   ctx.Index(),
			Session: ctx.Session().ID(),
			Expire:  s.host.WallClock().Time() + timeout,
		}
		s.queue = append(s.queue, holder)

		index := ctx.Index()
		session := ctx.Session()
		s.timers[index] = s.host.Scheduler().Schedule(timeout, func() {
			delete(s.timers, index)
			s.removeFromQueue(holder)
			if session.State().Active() {
				session.Publish(EventFailed, Event{ID: id, Index: index})
			}
		})
		return
	}

	// Negative timeout waits forever.
	s.queue = append(s.queue, &Holder{
		ID:      id,
		Index:   ctx.Index(),
		Session: ctx.Session().ID(),
	})
}

// unlock release the lock and grant the next live waiter.
func (s *Service) unlock(ctx service.Context, id uint32) {
	if s.current == nil {
		return
	}

	// Only the holding session may release.
	if s.current.Session != ctx.Session().ID() {
		return
	}

	// A stale id points at a lock the client-side primitive never
	// acquired; releasing it must not drop a legitimate holder.
	if s.current.ID != id {
		return
	}

	s.current = s.pop()
	for s.current != nil {
		s.cancelTimer(s.current.Index)

		session := s.host.Sessions().Session(s.current.Session)
		if session == nil || !session.State().Active() {
			s.current = s.pop()
			continue
		}
		session.Publish(EventLocked, Event{ID: s.current.ID, Index: ctx.Index()})
		break
	}
}

// OnExpire release everything the expired session owned.
func (s *Service) OnExpire(session *service.Session) {
	s.releaseSession(session)
}

// OnClose release everything the closed session owned.
func (s *Service) OnClose(session *service.Session) {
	s.releaseSession(session)
}

// releaseSession drop all of the session's pending requests and, if
// it held the lock, grant the next live waiter.
func (s *Service) releaseSession(session *service.Session) {
	remaining := s.queue[:0]
	for _, holder := range s.queue {
		if holder.Session == session.ID() {
			s.cancelTimer(holder.Index)
			continue
		}
		remaining = append(remaining, holder)
	}
	s.queue = remaining

	if s.current == nil || s.current.Session != session.ID() {
		return
	}

	log.Debugf("lock released by dead session %d", session.ID())

	s.current = s.pop()
	for s.current != nil {
		s.cancelTimer(s.current.Index)

		next := s.host.Sessions().Session(s.current.Session)
		if next == nil || !next.State().Active() {
			s.current = s.pop()
			continue
		}
		next.Publish(EventLocked, Event{ID: s.current.ID, Index: s.current.Index})
		break
	}
}

// Backup write holder and queue. Timers are derived state.
func (s *Service) Backup(enc *gob.Encoder) error {
	return enc.Encode(&snapshot{Current: s.current, Queue: s.queue})
}

// Restore replace state from the snapshot, then rebuild the timers
// of every queued bounded wait from its absolute expiration.
func (s *Service) Restore(dec *gob.Decoder) error {
	snap := snapshot{}
	if err := dec.Decode(&snap); err != nil {
		return err
	}
	s.current = snap.Current
	s.queue = snap.Queue

	for _, timer := range s.timers {
		timer.Cancel()
	}
	s.timers = make(map[uint64]service.Scheduled)

	for _, holder := range s.queue {
		if holder.Expire <= 0 {
			continue
		}
		holder := holder
		s.timers[holder.Index] = s.host.Scheduler().Schedule(
			holder.Expire-s.host.WallClock().Time(), func() {
				delete(s.timers, holder.Index)
				s.removeFromQueue(holder)
				session := s.host.Sessions().Session(holder.Session)
				if session != nil && session.State().Active() {
					session.Publish(EventFailed, Event{ID: holder.ID, Index: holder.Index})
				}
			})
	}
	return nil
}

func (s *Service) pop() *Holder {
	if len(s.queue) == 0 {
		return nil
	}
	holder := s.queue[0]
	s.queue = s.queue[1:]
	return holder
}

func (s *Service) removeFromQueue(holder *Holder) {
	for i := 0; i < len(s.queue); i++ {
		if s.queue[i] == holder {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

func (s *Service) cancelTimer(index uint64) {
	if timer, ok := s.timers[index]; ok {
		delete(s.timers, index)
		timer.Cancel()
	}
}
