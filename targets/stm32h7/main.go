//go:build tinygo && stm32h7

package main

import (
	"runtime/volatile"
	"unsafe"

	"gopperh7/core"
	"gopperh7/irq"
	"gopperh7/protocol"
	"gopperh7/stm32"
)

// SCB_AIRCR with VECTKEY and SYSRESETREQ.
const (
	aircrAddr  = 0xE000ED0C
	aircrReset = 0x05FA0004
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	rxScratch [64]byte
	msgerrors uint32
)

func main() {
	InitClock()
	InitUART()
	core.SetDebugWriter(itmWrite)

	hw, err := stm32.NewHardware(platform{}, irq.Default, banks()...)
	if err != nil {
		halt()
	}
	core.SetHardware(hw)

	core.InitCoreCommands()
	core.InitGPIOCommands()
	core.InitSPICommands()

	if err := core.GetGlobalDictionary().BuildDictionary(); err != nil {
		halt()
	}

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, core.DispatchCommand)
	// A UART host that reconnects is nak'd onto the current sequence and
	// finds its configuration intact; config_reset clears it explicitly.
	// Acks must leave before the next block is parsed.
	transport.SetFlushCallback(flushOutput)
	transport.SetErrorCallback(func(cmdID uint16, err error) {
		msgerrors++
		core.DebugPrintln("[transport] cmd " + utoa(uint32(cmdID)) + ": " + err.Error())
	})
	core.SetGlobalTransport(transport)

	core.SetResetHandler(func() {
		(*volatile.Register32)(unsafe.Pointer(uintptr(aircrAddr))).Set(aircrReset)
		for {
		}
	})

	for {
		pollInput()
		flushOutput()
		core.CheckPendingReset()
		core.ProcessTimers()
		core.DrainDebug()
	}
}

// pollInput drains the UART into the FIFO and feeds whole blocks to the
// transport.
func pollInput() {
	n := uartRead(rxScratch[:min(inputBuffer.Free(), len(rxScratch))])
	if n > 0 && inputBuffer.Write(rxScratch[:n]) < n {
		msgerrors++
	}
	if inputBuffer.Available() == 0 {
		return
	}
	data := inputBuffer.Data()
	in := protocol.NewSliceInputBuffer(data)
	transport.Receive(in)
	if consumed := len(data) - in.Available(); consumed > 0 {
		inputBuffer.Pop(consumed)
	}
}

func flushOutput() {
	if out := outputBuffer.Result(); len(out) > 0 {
		uartWrite(out)
		outputBuffer.Reset()
	}
}

func halt() {
	for {
	}
}

// utoa formats n without pulling strconv into the image.
func utoa(n uint32) string {
	var buf [10]byte
	pos := len(buf)
	for {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return string(buf[pos:])
}
