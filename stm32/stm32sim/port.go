package stm32sim

import "gopperh7/stm32"

// Port simulates the registers of one GPIO bank.
type Port struct {
	chip   *Chip
	index  uint8
	odr    uint32
	ext    uint32
	driven uint32

	ODRReads int
	IDRReads int
}

// ReadODR implements stm32.Registers.
func (p *Port) ReadODR() uint32 {
	p.ODRReads++
	return p.odr
}

// ReadIDR implements stm32.Registers.
func (p *Port) ReadIDR() uint32 {
	p.IDRReads++
	var idr uint32
	for bit := uint8(0); bit < stm32.PinsPerPort; bit++ {
		pin := stm32.PinFrom(p.index, bit)
		if p.chip.Level(pin) {
			idr |= pin.Mask()
		}
	}
	p.chip.record(Read, stm32.PinFrom(p.index, 0), false)
	return idr
}

// WriteBSRR implements stm32.Registers. As on the part, a set request wins
// over a reset request for the same bit.
func (p *Port) WriteBSRR(v uint32) {
	set := v & 0xffff
	reset := v >> 16
	p.odr = (p.odr &^ reset) | set
	touched := set | reset
	for bit := uint8(0); bit < stm32.PinsPerPort; bit++ {
		pin := stm32.PinFrom(p.index, bit)
		if touched&pin.Mask() == 0 {
			continue
		}
		level := p.odr&pin.Mask() != 0
		p.chip.record(Write, pin, level)
		for _, to := range p.chip.wires[pin] {
			p.chip.drive(to, level)
		}
	}
}
