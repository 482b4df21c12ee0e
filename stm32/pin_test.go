package stm32_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopperh7/stm32"
	"gopperh7/stm32/stm32sim"
)

func TestPinEncodeDecode(t *testing.T) {
	chip := stm32sim.New("ABCDEFGHI")
	hw, err := chip.Hardware()
	require.NoError(t, err)

	for port := byte('A'); port <= 'I'; port++ {
		for bit := uint8(0); bit < stm32.PinsPerPort; bit++ {
			pin := stm32.GPIO(port, bit)
			gotPort, gotBit := pin.Split()
			assert.Equal(t, port-'A', gotPort)
			assert.Equal(t, bit, gotBit)

			bank, mask, err := hw.Decode(pin)
			require.NoError(t, err, pin.String())
			assert.Equal(t, port, bank.Letter())
			assert.Equal(t, uint32(1)<<bit, mask)
			assert.Equal(t, pin, hw.PinOf(bank, mask))
		}
	}
}

func TestPinKlipperNumbering(t *testing.T) {
	assert.Equal(t, stm32.Pin(0), stm32.GPIO('A', 0))
	assert.Equal(t, stm32.Pin(16+13), stm32.GPIO('B', 13))
	assert.Equal(t, stm32.Pin(8*16+15), stm32.GPIO('I', 15))
}

func TestDecodeAbsentBank(t *testing.T) {
	chip := stm32sim.New("ABC")
	hw, err := chip.Hardware()
	require.NoError(t, err)

	for _, pin := range []stm32.Pin{stm32.GPIO('D', 0), stm32.GPIO('I', 7), stm32.Pin(9 * 16), stm32.Pin(0xffffffff)} {
		_, _, err := hw.Decode(pin)
		var cerr *stm32.ConfigError
		require.ErrorAs(t, err, &cerr, "pin %d", pin)
		assert.Equal(t, pin, cerr.Pin)
		assert.False(t, hw.Valid(pin))
	}
}

func TestPinOfForeignPort(t *testing.T) {
	hw1, err := stm32sim.New("AB").Hardware()
	require.NoError(t, err)
	hw2, err := stm32sim.New("AB").Hardware()
	require.NoError(t, err)

	assert.Equal(t, stm32.GPIO('B', 4), hw1.PinOf(hw1.Port('B'), 1<<4))
	assert.Equal(t, stm32.Pin(0), hw1.PinOf(hw2.Port('B'), 1<<4))
}

func TestPinNames(t *testing.T) {
	for _, tc := range []struct {
		pin  stm32.Pin
		name string
	}{
		{stm32.GPIO('A', 0), "PA0"},
		{stm32.GPIO('C', 13), "PC13"},
		{stm32.GPIO('I', 15), "PI15"},
	} {
		assert.Equal(t, tc.name, tc.pin.String())
		got, err := stm32.ParsePin(tc.name)
		require.NoError(t, err)
		assert.Equal(t, tc.pin, got)
	}

	got, err := stm32.ParsePin("pb3")
	require.NoError(t, err)
	assert.Equal(t, stm32.GPIO('B', 3), got)

	for _, bad := range []string{"", "PA", "PA16", "PJ0", "XA1", "PA01", "PA1x", "PA123"} {
		_, err := stm32.ParsePin(bad)
		assert.Error(t, err, bad)
	}
}

func TestHardwarePinNames(t *testing.T) {
	hw, err := stm32sim.New("AC").Hardware()
	require.NoError(t, err)

	names := hw.PinNames()
	require.Len(t, names, 3*stm32.PinsPerPort)
	assert.Equal(t, "PA0", names[0])
	assert.Equal(t, "", names[stm32.GPIO('B', 2)])
	assert.Equal(t, "PC15", names[stm32.GPIO('C', 15)])
}

func TestNewHardwareRejectsBadBanks(t *testing.T) {
	chip := stm32sim.New("A")
	regs := chip.Bank('A')

	_, err := stm32.NewHardware(chip, chip, stm32.Bank{Port: 'A', Regs: regs}, stm32.Bank{Port: 'A', Regs: regs})
	assert.ErrorIs(t, err, stm32.ErrBank)

	_, err = stm32.NewHardware(chip, chip, stm32.Bank{Port: 'J', Regs: regs})
	assert.ErrorIs(t, err, stm32.ErrBank)

	_, err = stm32.NewHardware(chip, chip, stm32.Bank{Port: 'B'})
	assert.ErrorIs(t, err, stm32.ErrBank)
}
