// Package stm32 implements GPIO access for STM32H7 class parts, where reads
// of the GPIO registers are slow. Output pins keep a software copy of the
// last BSRR command so that toggles never touch ODR.
package stm32

import "errors"

// Pin is a packed GPIO identifier: port index * 16 + bit.
type Pin uint32

const (
	// PortsMax is the number of GPIO banks (A through I) a part may carry.
	PortsMax = 9
	// PinsPerPort is the width of one GPIO bank.
	PinsPerPort = 16
)

var errPinName = errors.New("invalid pin name")

// GPIO builds a Pin from a port letter ('A'..'I') and bit number.
func GPIO(port byte, bit uint8) Pin {
	return PinFrom(port-'A', bit)
}

// PinFrom builds a Pin from a port index and bit number.
func PinFrom(portIndex, bit uint8) Pin {
	return Pin(uint32(portIndex)*PinsPerPort + uint32(bit&(PinsPerPort-1)))
}

// Split returns the port index and bit number of the pin.
func (p Pin) Split() (port, bit uint8) {
	return uint8(p / PinsPerPort), uint8(p % PinsPerPort)
}

// Mask returns the single-bit register mask for the pin.
func (p Pin) Mask() uint32 {
	return 1 << (p % PinsPerPort)
}

// String returns the pin's name, e.g. "PA5".
func (p Pin) String() string {
	port, bit := p.Split()
	if port >= 26 {
		return "P?" + itoa(int(bit))
	}
	return "P" + string(rune('A'+port)) + itoa(int(bit))
}

// ParsePin converts a name such as "PB12" back into a Pin. Letters are
// accepted in either case.
func ParsePin(name string) (Pin, error) {
	if len(name) < 3 || len(name) > 4 || (name[0] != 'P' && name[0] != 'p') {
		return 0, errPinName
	}
	port := name[1]
	if port >= 'a' && port <= 'z' {
		port -= 'a' - 'A'
	}
	if port < 'A' || port >= 'A'+PortsMax {
		return 0, errPinName
	}
	bit := 0
	for _, c := range name[2:] {
		if c < '0' || c > '9' {
			return 0, errPinName
		}
		bit = bit*10 + int(c-'0')
	}
	if bit >= PinsPerPort || (len(name) == 4 && name[2] == '0') {
		return 0, errPinName
	}
	return GPIO(port, uint8(bit)), nil
}

func itoa(n int) string {
	if n >= 10 {
		return string(rune('0'+n/10)) + string(rune('0'+n%10))
	}
	return string(rune('0' + n))
}
