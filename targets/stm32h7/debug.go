//go:build tinygo && stm32h7

package main

import (
	"runtime/volatile"
	"unsafe"
)

// ITM stimulus port 0, read out over SWO by the debug probe.
const (
	itmStim0Addr = 0xE0000000
	itmTERAddr   = 0xE0000E00
	itmTCRAddr   = 0xE0000E80
	itmTCRITMENA = 1 << 0
)

var (
	itmStim0 = (*volatile.Register32)(unsafe.Pointer(uintptr(itmStim0Addr)))
	itmTER   = (*volatile.Register32)(unsafe.Pointer(uintptr(itmTERAddr)))
	itmTCR   = (*volatile.Register32)(unsafe.Pointer(uintptr(itmTCRAddr)))
)

// itmWrite sends a line over SWO. Nothing is written unless the probe has
// enabled the ITM and port 0.
func itmWrite(s string) {
	if itmTCR.Get()&itmTCRITMENA == 0 || itmTER.Get()&1 == 0 {
		return
	}
	for i := 0; i < len(s); i++ {
		itmPut(s[i])
	}
	itmPut('\n')
}

func itmPut(c byte) {
	// The port reads 1 when its FIFO can take another write.
	for itmStim0.Get() == 0 {
	}
	(*volatile.Register8)(unsafe.Pointer(uintptr(itmStim0Addr))).Set(c)
}
