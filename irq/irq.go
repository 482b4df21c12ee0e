// Package irq provides the interrupt masking guard used around register
// read-modify-write windows.
package irq

// Masker disables and restores interrupts. Disable returns the previous
// state, which must be passed back to Restore on every exit path.
type Masker interface {
	Disable() State
	Restore(state State)
}

// Default masks interrupts on the running core.
var Default Masker = cpu{}

type cpu struct{}

func (cpu) Disable() State { return Disable() }
func (cpu) Restore(state State) { Restore(state) }
