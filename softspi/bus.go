// Package softspi implements a bit-banged SPI master on STM32 GPIO pins.
//
// The bus supports all four clock modes. Edges are timed by busy-waiting on
// a tick counter; the bus never sleeps or yields, and a transfer always runs
// to completion. Chip select and message framing belong to the caller.
package softspi

import "gopperh7/stm32"

// MsgInvalidConfig is the shutdown reason for a rejected bus setup.
const MsgInvalidConfig = "Invalid spi config"

// Bus is a configured software SPI bus.
type Bus struct {
	miso       stm32.GpioIn
	mosi       stm32.GpioOut
	sclk       stm32.GpioOut
	clock      Clock
	halfPeriod uint32
	mode       uint8
}

// Setup configures miso as a floating input and mosi/sclk as outputs driven
// low. periodTicks is one full clock cycle; edges are spaced half of it.
func Setup(hw *stm32.Hardware, clock Clock, miso, mosi, sclk stm32.Pin, mode uint8, periodTicks uint32) (*Bus, error) {
	if mode > 3 {
		return nil, &stm32.ConfigError{Msg: MsgInvalidConfig}
	}
	in, err := hw.SetupInput(miso, stm32.PullNone)
	if err != nil {
		return nil, err
	}
	dout, err := hw.SetupOutput(mosi, false)
	if err != nil {
		return nil, err
	}
	clk, err := hw.SetupOutput(sclk, false)
	if err != nil {
		return nil, err
	}
	return &Bus{
		miso:       in,
		mosi:       dout,
		sclk:       clk,
		clock:      clock,
		halfPeriod: periodTicks >> 1,
		mode:       mode,
	}, nil
}

// Mode returns the SPI mode (CPOL in bit 1, CPHA in bit 0).
func (b *Bus) Mode() uint8 {
	return b.mode
}

// HalfPeriod returns the spacing between clock edges in ticks.
func (b *Bus) HalfPeriod() uint32 {
	return b.halfPeriod
}

// Prepare parks sclk at the idle level of the mode. Call it before the
// first transfer and whenever chip select is about to be asserted.
func (b *Bus) Prepare() {
	b.sclk.Write(b.mode&0x02 != 0)
}

// Transfer clocks len(data) bytes out MSB first while clocking the same
// number in. When receive is set the received bytes replace data.
func (b *Bus) Transfer(receive bool, data []byte) {
	gate := NewTimingGate(b.clock)
	gate.Start()
	for i := range data {
		outbuf := data[i]
		var inbuf byte
		for bit := 0; bit < 8; bit++ {
			if b.mode&0x01 != 0 {
				// Modes 1 and 3: shift out on the leading edge, sample on
				// the trailing edge.
				b.sclk.Toggle()
				b.mosi.Write(outbuf&0x80 != 0)
				outbuf <<= 1
				gate.Wait(b.halfPeriod)
				b.sclk.Toggle()
				inbuf <<= 1
				if b.miso.Read() {
					inbuf |= 1
				}
				gate.Wait(b.halfPeriod)
			} else {
				// Modes 0 and 2: data is set up before the leading edge,
				// which is also the sample edge.
				b.mosi.Write(outbuf&0x80 != 0)
				outbuf <<= 1
				b.sclk.Toggle()
				gate.Wait(b.halfPeriod)
				inbuf <<= 1
				if b.miso.Read() {
					inbuf |= 1
				}
				b.sclk.Toggle()
				gate.Wait(b.halfPeriod)
			}
		}
		if receive {
			data[i] = inbuf
		}
	}
}
