package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gopperh7/irq"
	"gopperh7/protocol"
	"gopperh7/stm32/stm32sim"
)

// fixture wires the global firmware state to a simulated chip and captures
// every response sent to the host.
type fixture struct {
	chip *stm32sim.Chip
	out  *protocol.ScratchOutput
}

type response struct {
	Name string
	Args []uint32
	Data []byte
}

func resetGlobals() {
	SetTickSource(nil)
	SetGlobalTransport(nil)
	hardware = nil
	globalRegistry = NewCommandRegistry()
	globalDictionary = NewDictionary(globalRegistry)
	ResetFirmwareState()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	chip := stm32sim.New("ABCDE")
	hw, err := chip.Hardware()
	require.NoError(t, err)

	saved := irq.Default
	irq.Default = chip
	t.Cleanup(func() {
		resetGlobals()
		irq.Default = saved
	})

	resetGlobals()
	SetTickSource(chip.Clock.Now)
	SetHardware(hw)
	InitCoreCommands()
	InitGPIOCommands()
	InitSPICommands()

	out := protocol.NewScratchOutput()
	SetGlobalTransport(protocol.NewTransport(out, nil))
	return &fixture{chip: chip, out: out}
}

// encode builds a command payload. uint32 and int values are VLQ encoded,
// byte slices are length prefixed.
func encode(t *testing.T, name string, args ...interface{}) (uint16, []byte) {
	t.Helper()
	cmd, ok := globalRegistry.GetCommandByName(name)
	require.True(t, ok, "command %s not registered", name)
	out := protocol.NewScratchOutput()
	for _, a := range args {
		switch v := a.(type) {
		case uint32:
			protocol.EncodeVLQUint(out, v)
		case int:
			protocol.EncodeVLQUint(out, uint32(v))
		case []byte:
			protocol.EncodeVLQBytes(out, v)
		default:
			t.Fatalf("unsupported argument %T", a)
		}
	}
	return cmd.ID, append([]byte(nil), out.Result()...)
}

// run dispatches one command and checks that it consumed its arguments.
func (f *fixture) run(t *testing.T, name string, args ...interface{}) error {
	t.Helper()
	id, data := encode(t, name, args...)
	err := DispatchCommand(id, &data)
	if err == nil {
		require.Empty(t, data, "%s left arguments unread", name)
	}
	return err
}

// responses decodes and drains the frames sent since the last call.
func (f *fixture) responses(t *testing.T) []response {
	t.Helper()
	raw := append([]byte(nil), f.out.Result()...)
	f.out.Reset()

	var res []response
	for len(raw) > 0 {
		n := int(raw[0])
		require.GreaterOrEqual(t, len(raw), n)
		require.Equal(t, byte(protocol.MessageValueSync), raw[n-1])
		frame := raw[protocol.MessageHeaderSize : n-protocol.MessageTrailerSize]
		raw = raw[n:]

		for len(frame) > 0 {
			id, err := protocol.DecodeVLQUint(&frame)
			require.NoError(t, err)
			cmd, ok := globalRegistry.GetCommand(uint16(id))
			require.True(t, ok, "unknown response id %d", id)
			r := response{Name: cmd.Name}
			for _, field := range strings.Fields(cmd.Format) {
				if strings.HasSuffix(field, "s") {
					b, err := protocol.DecodeVLQBytes(&frame)
					require.NoError(t, err)
					r.Data = append([]byte(nil), b...)
				} else {
					v, err := protocol.DecodeVLQUint(&frame)
					require.NoError(t, err)
					r.Args = append(r.Args, v)
				}
			}
			res = append(res, r)
		}
	}
	return res
}

func names(res []response) []string {
	var out []string
	for _, r := range res {
		out = append(out, r.Name)
	}
	return out
}

// dispatchAt runs the timers due at tick now.
func dispatchAt(now uint32) {
	currentTime = now
	TimerDispatch()
}
