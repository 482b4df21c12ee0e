package core

// DebugWriter emits one line of debug text on a side channel.
type DebugWriter func(string)

const debugQueueLen = 8

var (
	debugWriter  DebugWriter = func(string) {}
	debugEnabled bool

	// Lines queued from interrupt or shutdown context, drained by the main
	// loop. Overflow drops the newest line.
	debugQueue   [debugQueueLen]string
	debugHead    int
	debugCount   int
	debugDropped uint32
)

// SetDebugWriter installs the board's debug output.
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(string) {}
	}
	debugWriter = writer
}

// SetDebugEnabled switches debug output; set_debug drives it at runtime.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes msg immediately when debug output is on.
func DebugPrintln(msg string) {
	if debugEnabled {
		debugWriter(msg)
	}
}

// DebugAsync queues msg for the next DrainDebug.
func DebugAsync(msg string) {
	if !debugEnabled {
		return
	}
	if debugCount == debugQueueLen {
		debugDropped++
		return
	}
	debugQueue[(debugHead+debugCount)%debugQueueLen] = msg
	debugCount++
}

// DrainDebug writes out queued lines. Boards call it from the main loop.
func DrainDebug() {
	for debugCount > 0 {
		msg := debugQueue[debugHead]
		debugQueue[debugHead] = ""
		debugHead = (debugHead + 1) % debugQueueLen
		debugCount--
		DebugPrintln(msg)
	}
	if debugDropped > 0 {
		DebugPrintln("[debug] dropped " + utoa(debugDropped))
		debugDropped = 0
	}
}
