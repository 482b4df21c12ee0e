package stm32sim

// Clock is a monotonic tick counter that advances by Step every time it is
// read, so busy-wait loops make progress.
type Clock struct {
	now  uint32
	Step uint32
}

// NewClock returns a clock starting at start.
func NewClock(start, step uint32) *Clock {
	return &Clock{now: start, Step: step}
}

// Now returns the counter and advances it.
func (c *Clock) Now() uint32 {
	t := c.now
	c.now += c.Step
	return t
}

// Peek returns the counter without advancing it.
func (c *Clock) Peek() uint32 {
	return c.now
}

// Advance moves the counter forward, e.g. to model an interrupt.
func (c *Clock) Advance(ticks uint32) {
	c.now += ticks
}

// IsBefore reports whether a is before b, allowing for wraparound.
func (c *Clock) IsBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
