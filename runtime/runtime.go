// Package runtime binds the consensus core to the replicated
// services: it is the state machine the apply procedure drives.
// Every command carries the leader-stamped wall time; the runtime
// advances the replicated clock, fires due timers, then dispatches
// the operation to the named service. Snapshots cover the clock and
// every registered service, so a restored replica behaves exactly
// like the one that was backed up.
package runtime

import (
	"bytes"
	"encoding/gob"
	"fmt"

	log "github.com/sirupsen/logrus"
	raftpd "github.com/thinkermao/raftsm/raft/proto"
	"github.com/thinkermao/raftsm/service"
	"github.com/thinkermao/raftsm/utils/pd"
)

// Command is the envelope of one replicated service operation. The
// operation name travels as the log entry's command; the envelope is
// the entry's args.
type Command struct {
	Service   string
	Session   uint64
	Timestamp int64
	Args      []byte
}

func (c *Command) Reset() { *c = Command{} }

// EncodeCommand build entry args for a service operation.
func EncodeCommand(svc string, session uint64, timestamp int64, args []byte) []byte {
	return pd.MustMarshal(&Command{
		Service:   svc,
		Session:   session,
		Timestamp: timestamp,
		Args:      args,
	})
}

// snapshot is the durable image of the runtime: the replicated time
// and one section per service.
type snapshot struct {
	Time     int64
	Services map[string][]byte
}

func (s *snapshot) Reset() { *s = snapshot{} }

// StateMachine hosts the registered services of one replica. It
// implements the consensus core's state machine port; all methods
// run on the apply thread.
type StateMachine struct {
	id       raftpd.NodeID
	clock    *service.WallClock
	sched    *service.Scheduler
	sessions *service.Sessions
	services map[string]service.Service
	index    uint64
}

// New instantiate the named services from the registry and bind
// them to a fresh host.
func New(id raftpd.NodeID, names ...string) (*StateMachine, error) {
	clock := service.MakeWallClock()
	m := &StateMachine{
		id:       id,
		clock:    clock,
		sched:    service.MakeScheduler(clock),
		sessions: service.MakeSessions(),
		services: make(map[string]service.Service),
	}

	for _, name := range names {
		svc, err := service.New(name)
		if err != nil {
			return nil, err
		}
		svc.Init(m)
		m.services[name] = svc
		m.sessions.AddListener(svc)
	}
	return m, nil
}

// Sessions return the session registry.
func (m *StateMachine) Sessions() *service.Sessions {
	return m.sessions
}

// WallClock return the replicated clock.
func (m *StateMachine) WallClock() *service.WallClock {
	return m.clock
}

// Scheduler return the replicated scheduler.
func (m *StateMachine) Scheduler() *service.Scheduler {
	return m.sched
}

// Service return the instance registered under name, nil when the
// runtime does not host it.
func (m *StateMachine) Service(name string) service.Service {
	return m.services[name]
}

// Tick advance the replicated clock without a service operation and
// fire due timers, for time carried by no-op traffic.
func (m *StateMachine) Tick(timestamp int64) {
	m.clock.Advance(timestamp)
	m.sched.Tick()
}

// ApplyCommand decode and dispatch one command entry.
func (m *StateMachine) ApplyCommand(index uint64, command string, args []byte) error {
	cmd := Command{}
	if err := pd.Unmarshal(&cmd, args); err != nil {
		return fmt.Errorf("runtime: decode command at %d: %w", index, err)
	}

	svc, ok := m.services[cmd.Service]
	if !ok {
		return fmt.Errorf("runtime: unknown service %q at %d", cmd.Service, index)
	}

	m.index = index
	m.clock.Advance(cmd.Timestamp)
	m.sched.Tick()

	session := m.sessions.Open(cmd.Session)
	return svc.Apply(&applyContext{m: m, session: session}, command, cmd.Args)
}

// TakeSnapshot serialize the clock and every service section.
func (m *StateMachine) TakeSnapshot() ([]byte, error) {
	snap := snapshot{
		Time:     m.clock.Time(),
		Services: make(map[string][]byte, len(m.services)),
	}

	for name, svc := range m.services {
		var section bytes.Buffer
		if err := svc.Backup(gob.NewEncoder(&section)); err != nil {
			return nil, fmt.Errorf("runtime: backup %q: %w", name, err)
		}
		snap.Services[name] = section.Bytes()
	}
	return pd.Marshal(&snap)
}

// InstallSnapshot replace runtime state with the snapshot image.
// Services rebuild their timers against the restored clock.
func (m *StateMachine) InstallSnapshot(data []byte) error {
	snap := snapshot{}
	if err := pd.Unmarshal(&snap, data); err != nil {
		return err
	}

	m.clock.Advance(snap.Time)

	for name, svc := range m.services {
		section, ok := snap.Services[name]
		if !ok {
			log.Warnf("%s snapshot misses service %q", m.id, name)
			continue
		}
		dec := gob.NewDecoder(bytes.NewBuffer(section))
		if err := svc.Restore(dec); err != nil {
			return fmt.Errorf("runtime: restore %q: %w", name, err)
		}
	}
	return nil
}

// applyContext is the per-command view handed to services.
type applyContext struct {
	m       *StateMachine
	session *service.Session
}

func (c *applyContext) Sessions() *service.Sessions   { return c.m.sessions }
func (c *applyContext) WallClock() *service.WallClock { return c.m.clock }
func (c *applyContext) Scheduler() *service.Scheduler { return c.m.sched }
func (c *applyContext) Index() uint64                 { return c.m.index }
func (c *applyContext) Session() *service.Session     { return c.session }
