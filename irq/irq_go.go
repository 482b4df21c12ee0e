//go:build !tinygo

package irq

// State is a placeholder for interrupt state on regular Go
type State uintptr

// Disable is a no-op on regular Go (for testing)
func Disable() State {
	return 0
}

// Restore is a no-op on regular Go (for testing)
func Restore(state State) {
	// No-op
}
