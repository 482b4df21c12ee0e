//go:build tinygo && stm32h7

package main

import (
	"runtime/volatile"
	"unsafe"

	"gopperh7/stm32"
)

// USART3 on PD8 (TX) / PD9 (RX), which the Nucleo-H743ZI routes to the
// ST-LINK virtual COM port.
const (
	usart3Base   = 0x40004800
	usart3Enable = 1 << 18 // RCC_APB1LENR.USART3EN
	usartAF      = 7

	// APB1 runs at rcc_hclk/2 with the 400MHz boot clock tree.
	apb1Freq = 100000000
	baudRate = 250000
)

const (
	cr1UE     = 1 << 0
	cr1RE     = 1 << 2
	cr1TE     = 1 << 3
	cr1FIFOEN = 1 << 29

	isrORE  = 1 << 3
	isrRXNE = 1 << 5
	isrTXE  = 1 << 7

	icrORECF = 1 << 3
)

type usartRegs struct {
	CR1   volatile.Register32
	CR2   volatile.Register32
	CR3   volatile.Register32
	BRR   volatile.Register32
	GTPR  volatile.Register32
	RTOR  volatile.Register32
	RQR   volatile.Register32
	ISR   volatile.Register32
	ICR   volatile.Register32
	RDR   volatile.Register32
	TDR   volatile.Register32
	PRESC volatile.Register32
}

var usart3 = (*usartRegs)(unsafe.Pointer(uintptr(usart3Base)))

// InitUART brings up USART3 for the host link.
func InitUART() {
	apb1lenr.SetBits(usart3Enable)
	apb1lenr.Get()

	setAlternate(stm32.GPIO('D', 8), usartAF)
	setAlternate(stm32.GPIO('D', 9), usartAF)

	usart3.CR1.Set(0)
	usart3.BRR.Set((apb1Freq + baudRate/2) / baudRate)
	usart3.CR1.Set(cr1FIFOEN | cr1RE | cr1TE | cr1UE)
}

// uartRead moves every received byte into dst and returns the count. An
// overrun is cleared; the lost bytes surface as a CRC failure upstream.
func uartRead(dst []byte) int {
	n := 0
	for n < len(dst) {
		isr := usart3.ISR.Get()
		if isr&isrORE != 0 {
			usart3.ICR.Set(icrORECF)
		}
		if isr&isrRXNE == 0 {
			break
		}
		dst[n] = byte(usart3.RDR.Get())
		n++
	}
	return n
}

// uartWrite blocks until data has been queued for transmission.
func uartWrite(data []byte) {
	for _, b := range data {
		for usart3.ISR.Get()&isrTXE == 0 {
		}
		usart3.TDR.Set(uint32(b))
	}
}
