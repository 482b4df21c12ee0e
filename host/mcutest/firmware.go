// Package mcutest runs the firmware command layer in-process on a
// simulated STM32 and exposes it as a serial port, so host tooling can be
// exercised without a board.
package mcutest

import (
	"io"
	"sync"

	"gopperh7/core"
	"gopperh7/protocol"
	"gopperh7/stm32/stm32sim"
)

// ClockFreq is the CLOCK_FREQ published by the simulated board.
const ClockFreq = 400000000

var initOnce sync.Once

// Firmware is a port whose far end is the firmware. Writes are processed
// synchronously; the firmware's output is delivered to Read.
type Firmware struct {
	Chip *stm32sim.Chip

	mu        sync.Mutex
	transport *protocol.Transport
	in        *protocol.FifoBuffer
	out       *protocol.ScratchOutput
	silent    bool

	rx      chan []byte
	pending []byte
	closed  chan struct{}
	once    sync.Once
}

// Start resets the global firmware state onto a fresh chip with the given
// banks. Only one Firmware may be live at a time.
func Start(banks string) (*Firmware, error) {
	chip := stm32sim.New(banks)
	hw, err := chip.Hardware()
	if err != nil {
		return nil, err
	}

	initOnce.Do(func() {
		core.InitCoreCommands()
		core.InitGPIOCommands()
		core.InitSPICommands()
		core.RegisterConstant("MCU", "stm32h7-sim")
		core.RegisterConstant("CLOCK_FREQ", uint32(ClockFreq))
	})
	core.SetTickSource(chip.Clock.Now)
	core.SetHardware(hw)
	core.ResetFirmwareState()

	f := &Firmware{
		Chip:   chip,
		in:     protocol.NewFifoBuffer(1024),
		out:    protocol.NewScratchOutput(),
		rx:     make(chan []byte, 256),
		closed: make(chan struct{}),
	}
	f.transport = protocol.NewTransport(f.out, core.DispatchCommand)
	core.SetGlobalTransport(f.transport)
	return f, nil
}

// Silence makes the firmware drop everything it receives.
func (f *Firmware) Silence(v bool) {
	f.mu.Lock()
	f.silent = v
	f.mu.Unlock()
}

// Write feeds host bytes to the firmware transport.
func (f *Firmware) Write(b []byte) (int, error) {
	select {
	case <-f.closed:
		return 0, io.ErrClosedPipe
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.silent {
		return len(b), nil
	}
	f.in.Write(b)
	f.transport.Receive(f.in)
	if res := f.out.Result(); len(res) > 0 {
		f.rx <- append([]byte(nil), res...)
		f.out.Reset()
	}
	return len(b), nil
}

// Read returns firmware output, blocking until some is available.
func (f *Firmware) Read(b []byte) (int, error) {
	if len(f.pending) == 0 {
		select {
		case f.pending = <-f.rx:
		case <-f.closed:
			return 0, io.ErrClosedPipe
		}
	}
	n := copy(b, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

// Reopen readies the port for a new host connection after Close. The
// firmware keeps its configuration.
func (f *Firmware) Reopen() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = make(chan struct{})
	f.once = sync.Once{}
	f.rx = make(chan []byte, 256)
	f.pending = nil
	f.in.Reset()
}

// Close unblocks pending reads.
func (f *Firmware) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// Flush satisfies serial.Port.
func (f *Firmware) Flush() error {
	return nil
}
