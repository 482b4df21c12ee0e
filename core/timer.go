package core

import "sync/atomic"

// TimerFreq is the default tick rate until a target calls SetTimerFreq.
const TimerFreq = 12000000

var (
	systemTicks uint32
	bootTime    uint64
	timerFreq   uint32 = TimerFreq

	// tickSource reads a free-running hardware counter when the target
	// provides one; otherwise GetTime returns the software tick value.
	tickSource func() uint32
)

// SetTickSource installs the hardware counter read by GetTime.
func SetTickSource(src func() uint32) {
	tickSource = src
}

// SetTimerFreq records the rate of the tick source in Hz.
func SetTimerFreq(hz uint32) {
	timerFreq = hz
}

// GetTimerFreq returns the rate of the tick source in Hz.
func GetTimerFreq() uint32 {
	return timerFreq
}

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	if tickSource != nil {
		return tickSource()
	}
	return atomic.LoadUint32(&systemTicks)
}

// SetTime sets the software system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}

// GetUptime returns 64-bit uptime in timer ticks
func GetUptime() uint64 {
	return uint64(GetTime())
}

// TimerIsBefore reports whether tick a comes before tick b. The counter is
// free running, so the comparison is made on the signed difference.
func TimerIsBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * uint64(timerFreq) / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / uint64(timerFreq))
}

// TimerInit initializes the system timer
func TimerInit() {
	bootTime = uint64(GetTime())
}

// ProcessTimers processes scheduled timers
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}

// SystemClock is the system tick counter in the shape the software SPI bus
// times its edges against.
type SystemClock struct{}

// Now returns GetTime.
func (SystemClock) Now() uint32 {
	return GetTime()
}

// IsBefore returns TimerIsBefore.
func (SystemClock) IsBefore(a, b uint32) bool {
	return TimerIsBefore(a, b)
}
