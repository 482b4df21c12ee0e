package stm32

// GpioOut is a configured digital output. It is a small value that can be
// copied freely; all copies share the pin's cache entry.
type GpioOut struct {
	hw   *Hardware
	regs Registers
	port *Port
	bit  uint32
	c    *bsrrCache
}

// SetupOutput configures pin as a push-pull output driven to val.
//
// The cache entry is always reloaded from the live ODR, including when the
// pin was configured before, so the mirror starts from the real level.
func (h *Hardware) SetupOutput(pin Pin, val bool) (GpioOut, error) {
	if !h.Valid(pin) {
		return GpioOut{}, &ConfigError{Msg: MsgNotOutputPin, Pin: pin}
	}
	port, bit, _ := h.Decode(pin)
	h.platform.EnableClock(port)

	_, index := pin.Split()
	c := &port.cache[index]
	state := h.irq.Disable()
	c.load(port.regs.ReadODR(), bit)
	h.irq.Restore(state)

	g := GpioOut{hw: h, regs: port.regs, port: port, bit: bit, c: c}
	g.Reset(val)
	return g, nil
}

// Reset drives the pin to val and (re)configures it as an output.
func (g GpioOut) Reset(val bool) {
	pin := g.hw.PinOf(g.port, g.bit)
	state := g.hw.irq.Disable()
	defer g.hw.irq.Restore(state)
	g.regs.WriteBSRR(g.c.set(g.bit, val))
	g.hw.platform.ConfigurePin(pin, ModeOutput, PullNone)
}

// Write drives the pin to val.
func (g GpioOut) Write(val bool) {
	state := g.hw.irq.Disable()
	g.regs.WriteBSRR(g.c.set(g.bit, val))
	g.hw.irq.Restore(state)
}

// ToggleNoIRQ inverts the pin from the cached command. The caller must
// already have interrupts masked.
func (g GpioOut) ToggleNoIRQ() {
	g.regs.WriteBSRR(g.c.swap())
}

// Toggle inverts the pin without reading the hardware.
func (g GpioOut) Toggle() {
	state := g.hw.irq.Disable()
	g.ToggleNoIRQ()
	g.hw.irq.Restore(state)
}

// State returns the level last driven onto the pin.
func (g GpioOut) State() bool {
	return g.c.high()
}

// Pin returns the pin id of the output.
func (g GpioOut) Pin() Pin {
	return g.hw.PinOf(g.port, g.bit)
}
