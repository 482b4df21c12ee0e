package stm32

// Registers is the register surface of one GPIO bank. Implementations map it
// onto the memory-mapped GPIO_TypeDef of the part, or onto a simulation.
type Registers interface {
	// ReadODR returns the output data register. Slow on STM32H7.
	ReadODR() uint32
	// ReadIDR returns the input data register.
	ReadIDR() uint32
	// WriteBSRR writes the bit set/reset register: the low half sets
	// bits, the high half clears them.
	WriteBSRR(v uint32)
}

// Bank declares a present GPIO bank when building a Hardware context.
type Bank struct {
	Port byte // 'A'..'I'
	Regs Registers
}

// Port is the opaque handle to a GPIO bank. It can only be obtained from a
// Hardware context, which owns it for the life of the firmware.
type Port struct {
	regs  Registers
	index uint8
	cache [PinsPerPort]bsrrCache
}

// Index returns the bank number (0 for port A).
func (p *Port) Index() int {
	return int(p.index)
}

// Letter returns the bank letter.
func (p *Port) Letter() byte {
	return 'A' + p.index
}
