package stm32

// GpioIn is a configured digital input.
type GpioIn struct {
	hw   *Hardware
	regs Registers
	port *Port
	bit  uint32
}

// SetupInput configures pin as an input with the requested bias.
func (h *Hardware) SetupInput(pin Pin, pull Pull) (GpioIn, error) {
	if !h.Valid(pin) {
		return GpioIn{}, &ConfigError{Msg: MsgNotInputPin, Pin: pin}
	}
	port, bit, _ := h.Decode(pin)
	g := GpioIn{hw: h, regs: port.regs, port: port, bit: bit}
	g.Reset(pull)
	return g, nil
}

// Reset reapplies the input configuration.
func (g GpioIn) Reset(pull Pull) {
	pin := g.hw.PinOf(g.port, g.bit)
	state := g.hw.irq.Disable()
	defer g.hw.irq.Restore(state)
	g.hw.platform.ConfigurePin(pin, ModeInput, pull)
}

// Read samples the pin level straight from IDR.
func (g GpioIn) Read() bool {
	return g.regs.ReadIDR()&g.bit != 0
}

// Pin returns the pin id of the input.
func (g GpioIn) Pin() Pin {
	return g.hw.PinOf(g.port, g.bit)
}
