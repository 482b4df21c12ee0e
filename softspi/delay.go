package softspi

// Clock is the monotonic tick counter the bus is timed against.
type Clock interface {
	// Now returns the current tick count.
	Now() uint32
	// IsBefore reports whether tick a comes before tick b, allowing for
	// counter wraparound.
	IsBefore(a, b uint32) bool
}

// TimingGate spaces clock edges on a fixed grid. Each Wait ends exactly
// ticks after the previous one was due, not after it returned, so per-edge
// instruction overhead does not accumulate.
type TimingGate struct {
	clock Clock
	start uint32
}

// NewTimingGate returns a gate driven by clock.
func NewTimingGate(clock Clock) TimingGate {
	return TimingGate{clock: clock}
}

// Start anchors the grid at the current time.
func (g *TimingGate) Start() {
	g.start = g.clock.Now()
}

// Wait spins until the next grid point, ticks after the last one.
func (g *TimingGate) Wait(ticks uint32) {
	end := g.start + ticks
	for g.clock.IsBefore(g.clock.Now(), end) {
	}
	g.start = end
}

// Deadline returns the time the last Wait was due.
func (g *TimingGate) Deadline() uint32 {
	return g.start
}
