package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopperh7/softspi"
	"gopperh7/stm32"
)

func TestStaticStrings(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range staticStrings {
		assert.False(t, seen[s], "duplicate static string %q", s)
		seen[s] = true
	}
	for _, msg := range []string{stm32.MsgNotOutputPin, stm32.MsgNotInputPin, stm32.MsgInvalidGPIO, softspi.MsgInvalidConfig} {
		assert.True(t, seen[msg], "%q missing", msg)
	}
	assert.Equal(t, uint16(0), staticStringID("no such reason"))
}

func TestGetConfig(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, "get_config"))
	require.NoError(t, f.run(t, "finalize_config", 0xdeadbeef))
	require.NoError(t, f.run(t, "get_config"))

	res := f.responses(t)
	require.Len(t, res, 2)
	assert.Equal(t, []uint32{0, 0, 0, 16}, res[0].Args)
	assert.Equal(t, []uint32{1, 0xdeadbeef, 0, 16}, res[1].Args)
}

func TestFinalizeTwice(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.run(t, "finalize_config", 1))
	require.NoError(t, f.run(t, "finalize_config", 2))
	assert.True(t, IsShutdown())
	assert.Equal(t, staticStringID(MsgAlreadyConfig), ShutdownReason())
}

func TestConfigReset(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.run(t, "config_digital_out", 1, uint32(ledPin), 1, 0, 0))
	require.NoError(t, f.run(t, "finalize_config", 7))

	// Only allowed while shut down
	require.NoError(t, f.run(t, "config_reset"))
	assert.True(t, IsShutdown())
	assert.Equal(t, staticStringID(MsgConfigReset), ShutdownReason())
	_, ok := GetDigitalOut(1)
	assert.True(t, ok)

	require.NoError(t, f.run(t, "config_reset"))
	assert.False(t, IsShutdown())
	_, ok = GetDigitalOut(1)
	assert.False(t, ok)

	f.responses(t)
	require.NoError(t, f.run(t, "get_config"))
	res := f.responses(t)
	require.Len(t, res, 1)
	assert.Equal(t, []uint32{0, 0, 0, 16}, res[0].Args)
}

func TestClearShutdown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.run(t, "emergency_stop"))
	require.True(t, IsShutdown())

	require.NoError(t, f.run(t, "clear_shutdown"))
	assert.False(t, IsShutdown())

	// Clearing when not shut down is itself a fault
	require.NoError(t, f.run(t, "clear_shutdown"))
	assert.True(t, IsShutdown())
	assert.Equal(t, staticStringID(MsgShutdownCleared), ShutdownReason())
}

func TestShutdownOnlyOnce(t *testing.T) {
	f := newFixture(t)
	TryShutdown(softspi.MsgInvalidConfig)
	TryShutdown(MsgCommandRequest)

	res := f.responses(t)
	require.Len(t, res, 1)
	assert.Equal(t, uint32(staticStringID(softspi.MsgInvalidConfig)), res[0].Args[1])
}

func TestGetClockAndUptime(t *testing.T) {
	f := newFixture(t)
	f.chip.Clock.Advance(5000)

	require.NoError(t, f.run(t, "get_clock"))
	require.NoError(t, f.run(t, "get_uptime"))

	res := f.responses(t)
	require.Len(t, res, 2)
	assert.Equal(t, "clock", res[0].Name)
	assert.Equal(t, []uint32{5000}, res[0].Args)
	assert.Equal(t, "uptime", res[1].Name)
	assert.Equal(t, []uint32{0, 5001}, res[1].Args)
}

func TestResetDeferred(t *testing.T) {
	f := newFixture(t)
	resets := 0
	SetResetHandler(func() { resets++ })
	defer SetResetHandler(nil)

	CheckPendingReset()
	assert.Equal(t, 0, resets)

	require.NoError(t, f.run(t, "reset"))
	assert.Equal(t, 0, resets)
	CheckPendingReset()
	assert.Equal(t, 1, resets)
}

func TestSetDebug(t *testing.T) {
	f := newFixture(t)
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})
	defer SetDebugEnabled(false)

	DebugPrintln("hidden")
	require.NoError(t, f.run(t, "set_debug", 1))
	assert.True(t, IsDebugEnabled())
	DebugPrintln("shown")
	assert.Equal(t, []string{"shown"}, lines)
}

func TestDebugAsyncQueue(t *testing.T) {
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(nil)
	SetDebugEnabled(true)
	defer SetDebugEnabled(false)

	for i := 0; i < debugQueueLen+2; i++ {
		DebugAsync("line " + itoa(i))
	}
	assert.Empty(t, lines)

	DrainDebug()
	require.Len(t, lines, debugQueueLen+1)
	assert.Equal(t, "line 0", lines[0])
	assert.Equal(t, "line 7", lines[debugQueueLen-1])
	assert.Equal(t, "[debug] dropped 2", lines[debugQueueLen])

	lines = nil
	DrainDebug()
	assert.Empty(t, lines)
}
