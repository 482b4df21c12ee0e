package softspi

import (
	"errors"

	"tinygo.org/x/drivers"
)

var errTxLength = errors.New("tx and rx buffer lengths must match")

// Driver adapts a Bus to the drivers.SPI interface so TinyGo device drivers
// can talk over a bit-banged bus. Chip select and Prepare stay with the
// caller, as with machine.SPI.
type Driver struct {
	bus *Bus
}

var _ drivers.SPI = Driver{}

// AsDriver returns the drivers.SPI view of the bus.
func (b *Bus) AsDriver() Driver {
	return Driver{bus: b}
}

// Tx implements drivers.SPI. Either buffer may be nil; a nil w sends zero
// bytes.
func (d Driver) Tx(w, r []byte) error {
	switch {
	case w == nil && r == nil:
		return nil
	case w == nil:
		for i := range r {
			r[i] = 0
		}
		d.bus.Transfer(true, r)
	case r == nil:
		var chunk [16]byte
		for len(w) > 0 {
			n := copy(chunk[:], w)
			d.bus.Transfer(false, chunk[:n])
			w = w[n:]
		}
	default:
		if len(w) != len(r) {
			return errTxLength
		}
		copy(r, w)
		d.bus.Transfer(true, r)
	}
	return nil
}

// Transfer implements drivers.SPI for a single byte.
func (d Driver) Transfer(w byte) (byte, error) {
	buf := [1]byte{w}
	d.bus.Transfer(true, buf[:])
	return buf[0], nil
}
