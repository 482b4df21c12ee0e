package stm32

import (
	"errors"
	"math/bits"

	"gopperh7/irq"
)

// Mode selects the function a pin is configured for.
type Mode uint8

const (
	ModeInput Mode = iota
	ModeOutput
)

// Pull selects the input bias resistor.
type Pull int32

const (
	PullDown Pull = -1
	PullNone Pull = 0
	PullUp   Pull = 1
)

// Platform is implemented by the board support code. It owns the RCC clock
// gates and the MODER/PUPDR/OSPEEDR style pin configuration registers.
type Platform interface {
	// EnableClock ungates the peripheral clock of a GPIO bank.
	EnableClock(port *Port)
	// ConfigurePin sets the function and bias of a pin.
	ConfigurePin(pin Pin, mode Mode, pull Pull)
}

// Hardware is the GPIO access context. It is built once at start-up and is
// the only path to the register banks and their output caches.
type Hardware struct {
	ports    [PortsMax]*Port
	platform Platform
	irq      irq.Masker
}

// ErrBank is returned by NewHardware for a bad bank declaration.
var ErrBank = errors.New("invalid gpio bank")

// NewHardware builds a context for the given banks. A nil masker selects
// irq.Default.
func NewHardware(platform Platform, masker irq.Masker, banks ...Bank) (*Hardware, error) {
	if masker == nil {
		masker = irq.Default
	}
	h := &Hardware{
		platform: platform,
		irq:      masker,
	}
	for _, b := range banks {
		index := int(b.Port) - 'A'
		if index < 0 || index >= PortsMax || b.Regs == nil || h.ports[index] != nil {
			return nil, ErrBank
		}
		h.ports[index] = &Port{regs: b.Regs, index: uint8(index)}
	}
	return h, nil
}

// Port returns the bank handle for a port letter, or nil if the bank is not
// present.
func (h *Hardware) Port(letter byte) *Port {
	index := int(letter) - 'A'
	if index < 0 || index >= PortsMax {
		return nil
	}
	return h.ports[index]
}

// Valid reports whether the pin lives on a present bank.
func (h *Hardware) Valid(pin Pin) bool {
	index := uint32(pin) / PinsPerPort
	return index < PortsMax && h.ports[index] != nil
}

// Decode returns the bank and bit mask for a pin.
func (h *Hardware) Decode(pin Pin) (*Port, uint32, error) {
	if !h.Valid(pin) {
		return nil, 0, &ConfigError{Msg: MsgInvalidGPIO, Pin: pin}
	}
	port, _ := pin.Split()
	return h.ports[port], pin.Mask(), nil
}

// PinOf converts a bank handle and bit mask back into a pin id. It returns 0
// if the handle does not belong to this context.
func (h *Hardware) PinOf(port *Port, bit uint32) Pin {
	for i, p := range h.ports {
		if p != nil && p == port {
			return PinFrom(uint8(i), uint8(bits.TrailingZeros32(bit)))
		}
	}
	return 0
}

// PinNames lists the pins of all present banks, indexed by pin id. Entries
// for absent banks are empty.
func (h *Hardware) PinNames() []string {
	last := -1
	for i, p := range h.ports {
		if p != nil {
			last = i
		}
	}
	names := make([]string, (last+1)*PinsPerPort)
	for i, p := range h.ports {
		if p == nil {
			continue
		}
		for bit := 0; bit < PinsPerPort; bit++ {
			pin := PinFrom(uint8(i), uint8(bit))
			names[pin] = pin.String()
		}
	}
	return names
}
