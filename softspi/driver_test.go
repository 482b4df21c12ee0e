package softspi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers"

	"gopperh7/softspi"
)

func TestDriverTx(t *testing.T) {
	f := newFixture(t, 0, 4)
	f.chip.Wire(pinMOSI, pinMISO)
	f.bus.Prepare()
	var d drivers.SPI = f.bus.AsDriver()

	w := []byte{0xde, 0xad}
	r := make([]byte, 2)
	require.NoError(t, d.Tx(w, r))
	assert.Equal(t, []byte{0xde, 0xad}, r)
	assert.Equal(t, []byte{0xde, 0xad}, w)

	require.NoError(t, d.Tx(w, nil))
	assert.Equal(t, []byte{0xde, 0xad}, w)

	r = []byte{0xff, 0xff, 0xff}
	require.NoError(t, d.Tx(nil, r))
	assert.Equal(t, []byte{0, 0, 0}, r)

	require.NoError(t, d.Tx(nil, nil))
	assert.Error(t, d.Tx(w, make([]byte, 3)))
}

func TestDriverTxWriteOnlyLongBuffer(t *testing.T) {
	f := newFixture(t, 0, 2)
	f.bus.Prepare()
	d := f.bus.AsDriver()

	w := make([]byte, 40)
	for i := range w {
		w[i] = byte(i*37 + 5)
	}
	orig := append([]byte(nil), w...)
	f.chip.ClearEvents()
	require.NoError(t, d.Tx(w, nil))
	assert.Equal(t, orig, w)

	writes := f.chip.Writes(pinMOSI)
	require.Len(t, writes, len(w)*8)
	for i, e := range writes {
		bit := w[i/8]&(0x80>>(i%8)) != 0
		assert.Equal(t, bit, e.Level, "byte %d bit %d", i/8, i%8)
	}
}

func TestDriverTransfer(t *testing.T) {
	f := newFixture(t, 3, 4)
	f.chip.SetInput(pinMISO, true)
	f.bus.Prepare()
	d := f.bus.AsDriver()

	got, err := d.Transfer(0x42)
	require.NoError(t, err)
	assert.Equal(t, byte(0xff), got)
	assert.Len(t, f.chip.Writes(pinMOSI), 8)
}

func TestTimingGate(t *testing.T) {
	f := newFixture(t, 0, 10)
	clock := f.chip.Clock
	gate := softspi.NewTimingGate(clock)
	gate.Start()
	anchor := gate.Deadline()

	gate.Wait(10)
	assert.Equal(t, anchor+10, gate.Deadline())
	assert.False(t, clock.IsBefore(clock.Peek(), anchor+10))

	// A late caller does not push the grid back.
	clock.Advance(25)
	gate.Wait(10)
	assert.Equal(t, anchor+20, gate.Deadline())
	gate.Wait(10)
	assert.Equal(t, anchor+30, gate.Deadline())
	gate.Wait(10)
	assert.Equal(t, anchor+40, gate.Deadline())
	assert.Less(t, clock.Peek()-anchor, uint32(40+3))
}
