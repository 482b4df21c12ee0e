//go:build tinygo && stm32h7

package main

import (
	"runtime/volatile"
	"unsafe"

	"gopperh7/stm32"
)

// STM32H743 memory map (RM0433).
const (
	gpioBase   = 0x58020000 // GPIOA; banks follow every 0x400
	gpioStride = 0x400
	rccBase    = 0x58024400

	rccAHB4ENR  = rccBase + 0xE0
	rccAPB1LENR = rccBase + 0xE8
)

// gpioRegs is the GPIO_TypeDef register block.
type gpioRegs struct {
	MODER   volatile.Register32
	OTYPER  volatile.Register32
	OSPEEDR volatile.Register32
	PUPDR   volatile.Register32
	IDR     volatile.Register32
	ODR     volatile.Register32
	BSRR    volatile.Register32
	LCKR    volatile.Register32
	AFRL    volatile.Register32
	AFRH    volatile.Register32
}

func (r *gpioRegs) ReadODR() uint32   { return r.ODR.Get() }
func (r *gpioRegs) ReadIDR() uint32   { return r.IDR.Get() }
func (r *gpioRegs) WriteBSRR(v uint32) { r.BSRR.Set(v) }

func gpioBank(index int) *gpioRegs {
	return (*gpioRegs)(unsafe.Pointer(uintptr(gpioBase + index*gpioStride)))
}

var (
	ahb4enr  = (*volatile.Register32)(unsafe.Pointer(uintptr(rccAHB4ENR)))
	apb1lenr = (*volatile.Register32)(unsafe.Pointer(uintptr(rccAPB1LENR)))
)

// Field values of MODER, PUPDR and OSPEEDR.
const (
	moderInput     = 0
	moderOutput    = 1
	moderAlternate = 2
	pupdrUp        = 1
	pupdrDown      = 2
	ospeedrHigh    = 2
)

// platform configures pins through the RCC and GPIO mode registers.
type platform struct{}

func (platform) EnableClock(port *stm32.Port) {
	ahb4enr.SetBits(1 << uint(port.Index()))
	// Read back so the clock is running before the bank is touched.
	ahb4enr.Get()
}

func (platform) ConfigurePin(pin stm32.Pin, mode stm32.Mode, pull stm32.Pull) {
	port, bit := pin.Split()
	regs := gpioBank(int(port))
	shift := uint(bit) * 2

	var pupd uint32
	switch pull {
	case stm32.PullUp:
		pupd = pupdrUp
	case stm32.PullDown:
		pupd = pupdrDown
	}
	regs.PUPDR.ReplaceBits(pupd, 3, uint8(shift))

	if mode == stm32.ModeOutput {
		regs.OTYPER.ClearBits(1 << uint(bit))
		regs.OSPEEDR.ReplaceBits(ospeedrHigh, 3, uint8(shift))
		regs.MODER.ReplaceBits(moderOutput, 3, uint8(shift))
	} else {
		regs.MODER.ReplaceBits(moderInput, 3, uint8(shift))
	}
}

// setAlternate routes a pin to alternate function af.
func setAlternate(pin stm32.Pin, af uint32) {
	port, bit := pin.Split()
	regs := gpioBank(int(port))
	ahb4enr.SetBits(1 << uint(port))
	ahb4enr.Get()
	if bit < 8 {
		regs.AFRL.ReplaceBits(af, 0xf, uint8(bit)*4)
	} else {
		regs.AFRH.ReplaceBits(af, 0xf, uint8(bit-8)*4)
	}
	regs.OSPEEDR.ReplaceBits(ospeedrHigh, 3, uint8(bit)*2)
	regs.MODER.ReplaceBits(moderAlternate, 3, uint8(bit)*2)
}

// banks lists every GPIO bank of the part.
func banks() []stm32.Bank {
	out := make([]stm32.Bank, stm32.PortsMax)
	for i := range out {
		out[i] = stm32.Bank{Port: byte('A' + i), Regs: gpioBank(i)}
	}
	return out
}
