// Package stm32sim simulates the STM32 GPIO complex for tests: register
// banks with ODR/IDR/BSRR semantics, pin configuration, interrupt masking
// and a stepping tick counter. Every register write is recorded with a
// timestamp so tests can check edge order and spacing.
package stm32sim

import (
	"gopperh7/irq"
	"gopperh7/stm32"
)

// EventKind classifies recorded register accesses.
type EventKind uint8

const (
	// Write is a BSRR write touching one pin.
	Write EventKind = iota
	// Read is an IDR read of a bank.
	Read
)

// Event is one recorded register access.
type Event struct {
	Kind   EventKind
	Time   uint32
	Pin    stm32.Pin // bit 0 of the bank for Read events
	Level  bool      // level after a Write; unused for Read
	Masked bool
}

// PinConfig is the last configuration applied to a pin.
type PinConfig struct {
	Mode  stm32.Mode
	Pull  stm32.Pull
	Count int
}

// Chip is a simulated GPIO complex. It implements stm32.Platform and
// irq.Masker.
type Chip struct {
	Clock *Clock

	ports  [stm32.PortsMax]*Port
	clocks [stm32.PortsMax]int
	config map[stm32.Pin]PinConfig
	wires  map[stm32.Pin][]stm32.Pin
	events []Event
	depth  int
	masks  int
}

// New creates a chip with the named banks, e.g. New("ABCDE").
func New(banks string) *Chip {
	c := &Chip{
		Clock:  NewClock(0, 1),
		config: make(map[stm32.Pin]PinConfig),
		wires:  make(map[stm32.Pin][]stm32.Pin),
	}
	for i := 0; i < len(banks); i++ {
		index := banks[i] - 'A'
		c.ports[index] = &Port{chip: c, index: index}
	}
	return c
}

// Banks returns the bank declarations for stm32.NewHardware.
func (c *Chip) Banks() []stm32.Bank {
	var banks []stm32.Bank
	for _, p := range c.ports {
		if p != nil {
			banks = append(banks, stm32.Bank{Port: 'A' + p.index, Regs: p})
		}
	}
	return banks
}

// Hardware builds a context wired to this chip for platform and masking.
func (c *Chip) Hardware() (*stm32.Hardware, error) {
	return stm32.NewHardware(c, c, c.Banks()...)
}

// Bank returns the simulated registers of a bank.
func (c *Chip) Bank(letter byte) *Port {
	return c.ports[letter-'A']
}

// EnableClock implements stm32.Platform.
func (c *Chip) EnableClock(port *stm32.Port) {
	c.clocks[port.Index()]++
}

// ConfigurePin implements stm32.Platform.
func (c *Chip) ConfigurePin(pin stm32.Pin, mode stm32.Mode, pull stm32.Pull) {
	cfg := c.config[pin]
	cfg.Mode = mode
	cfg.Pull = pull
	cfg.Count++
	c.config[pin] = cfg
}

// Disable implements irq.Masker.
func (c *Chip) Disable() irq.State {
	prev := c.depth
	c.depth++
	c.masks++
	return irq.State(prev)
}

// Restore implements irq.Masker.
func (c *Chip) Restore(state irq.State) {
	c.depth = int(state)
}

// Masked reports whether interrupts are currently masked.
func (c *Chip) Masked() bool {
	return c.depth > 0
}

// MaskCount returns how many times interrupts have been masked.
func (c *Chip) MaskCount() int {
	return c.masks
}

// ClockEnables returns how many times a bank clock was enabled.
func (c *Chip) ClockEnables(letter byte) int {
	return c.clocks[letter-'A']
}

// Config returns the configuration last applied to a pin.
func (c *Chip) Config(pin stm32.Pin) (PinConfig, bool) {
	cfg, ok := c.config[pin]
	return cfg, ok
}

// Wire connects the output level of from to the input of to.
func (c *Chip) Wire(from, to stm32.Pin) {
	c.wires[from] = append(c.wires[from], to)
	c.drive(to, c.Level(from))
}

// SetInput drives a pin from outside the chip.
func (c *Chip) SetInput(pin stm32.Pin, level bool) {
	c.drive(pin, level)
}

// Preset forces the ODR bit of a pin, as left behind by a previous run.
func (c *Chip) Preset(pin stm32.Pin, level bool) {
	p := c.port(pin)
	if level {
		p.odr |= pin.Mask()
	} else {
		p.odr &^= pin.Mask()
	}
}

// Level returns the physical level of a pin.
func (c *Chip) Level(pin stm32.Pin) bool {
	p := c.port(pin)
	mask := pin.Mask()
	if cfg, ok := c.config[pin]; ok && cfg.Mode == stm32.ModeOutput {
		return p.odr&mask != 0
	}
	if p.driven&mask != 0 {
		return p.ext&mask != 0
	}
	cfg := c.config[pin]
	return cfg.Pull == stm32.PullUp
}

// Events returns the recorded register accesses.
func (c *Chip) Events() []Event {
	return c.events
}

// ClearEvents drops the recorded register accesses.
func (c *Chip) ClearEvents() {
	c.events = c.events[:0]
}

// Writes returns the recorded BSRR writes for one pin.
func (c *Chip) Writes(pin stm32.Pin) []Event {
	var out []Event
	for _, e := range c.events {
		if e.Kind == Write && e.Pin == pin {
			out = append(out, e)
		}
	}
	return out
}

func (c *Chip) port(pin stm32.Pin) *Port {
	index, _ := pin.Split()
	return c.ports[index]
}

func (c *Chip) drive(pin stm32.Pin, level bool) {
	p := c.port(pin)
	mask := pin.Mask()
	p.driven |= mask
	if level {
		p.ext |= mask
	} else {
		p.ext &^= mask
	}
}

func (c *Chip) record(kind EventKind, pin stm32.Pin, level bool) {
	c.events = append(c.events, Event{
		Kind:   kind,
		Time:   c.Clock.Peek(),
		Pin:    pin,
		Level:  level,
		Masked: c.depth > 0,
	})
}
