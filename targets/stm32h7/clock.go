//go:build tinygo && stm32h7

package main

import (
	"runtime/volatile"
	"unsafe"

	"gopperh7/core"
)

// The core clock is set to 400MHz by the boot code; the DWT cycle counter
// runs at that rate and is the system tick.
const cpuFreq = 400000000

const (
	demcrAddr    = 0xE000EDFC
	dwtCtrlAddr  = 0xE0001000
	dwtCyccnt    = 0xE0001004
	dwtLARAddr   = 0xE0001FB0
	demcrTRCENA  = 1 << 24
	dwtCYCCNTENA = 1 << 0
	dwtLARUnlock = 0xC5ACCE55
)

var (
	demcr   = (*volatile.Register32)(unsafe.Pointer(uintptr(demcrAddr)))
	dwtCtrl = (*volatile.Register32)(unsafe.Pointer(uintptr(dwtCtrlAddr)))
	dwtCnt  = (*volatile.Register32)(unsafe.Pointer(uintptr(dwtCyccnt)))
	dwtLAR  = (*volatile.Register32)(unsafe.Pointer(uintptr(dwtLARAddr)))
)

func cycles() uint32 {
	return dwtCnt.Get()
}

// InitClock starts the cycle counter and publishes it as the tick source.
func InitClock() {
	demcr.SetBits(demcrTRCENA)
	dwtLAR.Set(dwtLARUnlock)
	dwtCnt.Set(0)
	dwtCtrl.SetBits(dwtCYCCNTENA)

	core.SetTickSource(cycles)
	core.SetTimerFreq(cpuFreq)
	core.TimerInit()

	core.RegisterConstant("MCU", "stm32h743")
	core.RegisterConstant("CLOCK_FREQ", uint32(cpuFreq))
}
