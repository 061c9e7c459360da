package service

import (
	"encoding/gob"
	"fmt"
)

// Host is the ambient environment a service is bound to at
// registration: sessions, the replicated clock and the scheduler.
type Host interface {
	Sessions() *Sessions
	WallClock() *WallClock
	Scheduler() *Scheduler
}

// Context is the per-command view handed to Apply: the host plus the
// index of the command being applied and its originating session.
type Context interface {
	Host
	Index() uint64
	Session() *Session
}

// Service is one deterministic replicated service. All methods run
// on the apply thread.
type Service interface {
	SessionListener

	// Name return the stable registration name.
	Name() string

	// Init bind the service to its host. Called once, before any
	// other method.
	Init(host Host)

	// Apply execute one operation of the command stream.
	Apply(ctx Context, operation string, args []byte) error

	// Backup write the service state to the snapshot.
	Backup(enc *gob.Encoder) error

	// Restore replace the service state from a snapshot, rebuilding
	// outstanding timers from the restored durable state.
	Restore(dec *gob.Decoder) error
}

// Factory produce a fresh service instance.
type Factory func() Service

var factories = make(map[string]Factory)

// Register associate name with a factory. Service packages register
// themselves from init.
func Register(name string, factory Factory) {
	if _, ok := factories[name]; ok {
		panic(fmt.Sprintf("service %q registered twice", name))
	}
	factories[name] = factory
}

// New instantiate the service registered under name.
func New(name string) (Service, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown service %q", name)
	}
	return factory(), nil
}
