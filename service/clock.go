package service

// WallClock is the replicated clock. Its reading is the wall-time
// stamp the leader assigned to the command being applied, in unix
// milliseconds; it advances monotonically with the command stream.
type WallClock struct {
	now int64
}

// MakeWallClock return a clock at the zero time.
func MakeWallClock() *WallClock {
	return &WallClock{}
}

// Time return the current replicated time in unix milliseconds.
func (c *WallClock) Time() int64 {
	return c.now
}

// Advance move the clock forward to ts; earlier stamps are ignored,
// the clock never goes backwards.
func (c *WallClock) Advance(ts int64) {
	if ts > c.now {
		c.now = ts
	}
}
