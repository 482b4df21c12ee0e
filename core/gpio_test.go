package core

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopperh7/stm32"
)

var ledPin = stm32.GPIO('B', 0)

func levels(f *fixture, pin stm32.Pin) []bool {
	var out []bool
	for _, e := range f.chip.Writes(pin) {
		out = append(out, e.Level)
	}
	return out
}

func TestConfigDigitalOut(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, "config_digital_out", 1, uint32(ledPin), 1, 0, 0))
	assert.True(t, f.chip.Level(ledPin))
	cfg, ok := f.chip.Config(ledPin)
	require.True(t, ok)
	assert.Equal(t, stm32.ModeOutput, cfg.Mode)

	dout, ok := GetDigitalOut(1)
	require.True(t, ok)
	assert.Equal(t, uint8(DF_ON), dout.Flags)

	require.NoError(t, f.run(t, "update_digital_out", 1, 0))
	assert.False(t, f.chip.Level(ledPin))
	assert.Empty(t, f.responses(t))
}

func TestConfigDigitalOutInvalidPin(t *testing.T) {
	f := newFixture(t)
	bad := stm32.GPIO('F', 3)

	err := f.run(t, "config_digital_out", 1, uint32(bad), 1, 0, 0)
	var cerr *stm32.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.True(t, IsShutdown())

	res := f.responses(t)
	require.Len(t, res, 1, spew.Sdump(res))
	assert.Equal(t, "shutdown", res[0].Name)
	assert.Equal(t, uint32(staticStringID(stm32.MsgNotOutputPin)), res[0].Args[1])
	_, ok := GetDigitalOut(1)
	assert.False(t, ok)
}

func TestSetDigitalOut(t *testing.T) {
	f := newFixture(t)
	pin := stm32.GPIO('E', 15)
	f.chip.Preset(pin, true)

	require.NoError(t, f.run(t, "set_digital_out", uint32(pin), 0))
	assert.False(t, f.chip.Level(pin))
	require.NoError(t, f.run(t, "set_digital_out", uint32(pin), 1))
	assert.True(t, f.chip.Level(pin))
}

func TestQueueDigitalOut(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.run(t, "config_digital_out", 2, uint32(ledPin), 0, 0, 0))

	require.NoError(t, f.run(t, "queue_digital_out", 2, 5000, 1))
	dispatchAt(4999)
	assert.False(t, f.chip.Level(ledPin))
	dispatchAt(5000)
	assert.True(t, f.chip.Level(ledPin))

	require.NoError(t, f.run(t, "queue_digital_out", 2, 6000, 0))
	dispatchAt(6000)
	assert.False(t, f.chip.Level(ledPin))
	assert.False(t, IsShutdown())
}

func TestDigitalOutSoftPWM(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.run(t, "config_digital_out", 3, uint32(ledPin), 0, 0, 0))
	require.NoError(t, f.run(t, "set_digital_out_pwm_cycle", 3, 100))
	require.NoError(t, f.run(t, "queue_digital_out", 3, 1000, 30))
	f.chip.ClearEvents()
	odrReads := f.chip.Bank('B').ODRReads

	for _, now := range []uint32{1000, 1030, 1100, 1130, 1200} {
		dispatchAt(now)
	}

	want := []bool{true, false, true, false, true}
	if diff := deep.Equal(levels(f, ledPin), want); diff != nil {
		t.Errorf("pwm levels: %v\n%s", diff, spew.Sdump(f.chip.Events()))
	}
	for _, e := range f.chip.Writes(ledPin) {
		assert.True(t, e.Masked, "toggle outside the timer critical section")
	}
	assert.Equal(t, odrReads, f.chip.Bank('B').ODRReads)

	// A plain update stops toggling
	require.NoError(t, f.run(t, "update_digital_out", 3, 0))
	dispatchAt(1300)
	assert.False(t, f.chip.Level(ledPin))
	dout, _ := GetDigitalOut(3)
	assert.False(t, TimerPending(&dout.Timer))
}

func TestDigitalOutMaxDuration(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.run(t, "config_digital_out", 4, uint32(ledPin), 0, 0, 500))
	require.NoError(t, f.run(t, "queue_digital_out", 4, 1000, 1))

	dispatchAt(1000)
	assert.True(t, f.chip.Level(ledPin))
	dispatchAt(1499)
	assert.False(t, IsShutdown())

	dispatchAt(1500)
	assert.True(t, IsShutdown())
	assert.False(t, f.chip.Level(ledPin))

	res := f.responses(t)
	require.Len(t, res, 1)
	assert.Equal(t, "shutdown", res[0].Name)
	assert.Equal(t, uint32(staticStringID(MsgMissedDeadline)), res[0].Args[1])
}

func TestDigitalOutReturnToDefault(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.run(t, "config_digital_out", 5, uint32(ledPin), 1, 1, 500))

	// Back at the default level before the deadline: no shutdown
	require.NoError(t, f.run(t, "queue_digital_out", 5, 1000, 0))
	dispatchAt(1000)
	require.NoError(t, f.run(t, "queue_digital_out", 5, 1200, 1))
	dispatchAt(1200)
	dispatchAt(2000)
	assert.False(t, IsShutdown())
	assert.True(t, f.chip.Level(ledPin))
}

func TestShutdownRestoresDefaults(t *testing.T) {
	f := newFixture(t)
	heater := stm32.GPIO('A', 1)
	fan := stm32.GPIO('A', 2)
	require.NoError(t, f.run(t, "config_digital_out", 1, uint32(heater), 1, 0, 0))
	require.NoError(t, f.run(t, "config_digital_out", 2, uint32(fan), 0, 1, 0))
	require.NoError(t, f.run(t, "set_digital_out_pwm_cycle", 1, 100))
	require.NoError(t, f.run(t, "queue_digital_out", 1, 10, 50))
	dispatchAt(10)

	require.NoError(t, f.run(t, "emergency_stop"))
	assert.False(t, f.chip.Level(heater))
	assert.True(t, f.chip.Level(fan))
	dout, _ := GetDigitalOut(1)
	assert.False(t, TimerPending(&dout.Timer))
	assert.Equal(t, []string{"shutdown"}, names(f.responses(t)))
}

func TestDigitalOutUnknownOID(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.run(t, "update_digital_out", 7, 1))
	assert.Error(t, f.run(t, "queue_digital_out", 7, 100, 1))
	assert.Error(t, f.run(t, "set_digital_out_pwm_cycle", 7, 1000))
	assert.False(t, IsShutdown())
}
