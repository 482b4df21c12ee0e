package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	id   uint16
	args []uint32
}

// mcuFixture runs a Transport whose commands all take one integer argument.
type mcuFixture struct {
	tr    *Transport
	out   *ScratchOutput
	calls []call
	fail  map[uint16]error
	errs  []error
}

func newMCUFixture() *mcuFixture {
	f := &mcuFixture{out: NewScratchOutput(), fail: map[uint16]error{}}
	f.tr = NewTransport(f.out, func(id uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		f.calls = append(f.calls, call{id, []uint32{v}})
		if id == 99 {
			panic("boom")
		}
		return f.fail[id]
	})
	f.tr.SetErrorCallback(func(_ uint16, err error) { f.errs = append(f.errs, err) })
	return f
}

func (f *mcuFixture) feed(data []byte) *SliceInputBuffer {
	in := NewSliceInputBuffer(data)
	f.tr.Receive(in)
	return in
}

func (f *mcuFixture) drain() []byte {
	res := append([]byte(nil), f.out.Result()...)
	f.out.Reset()
	return res
}

func commands(ids ...uint32) []byte {
	out := NewScratchOutput()
	for i, id := range ids {
		EncodeVLQUint(out, id)
		EncodeVLQUint(out, uint32(i))
	}
	return append([]byte(nil), out.Result()...)
}

func TestEncodeFrame(t *testing.T) {
	frame := EncodeFrame(0x11, []byte{0x01, 0x02})
	require.Len(t, frame, 7)
	assert.Equal(t, byte(7), frame[0])
	assert.Equal(t, byte(0x11), frame[1])
	crc := CRC16(frame[:4])
	assert.Equal(t, []byte{byte(crc >> 8), byte(crc), MessageValueSync}, frame[4:])
}

func TestTransportDispatchesAndAcks(t *testing.T) {
	f := newMCUFixture()
	in := f.feed(EncodeFrame(0x10, commands(5, 6)))

	assert.Equal(t, []call{{5, []uint32{0}}, {6, []uint32{1}}}, f.calls)
	assert.Equal(t, EncodeFrame(0x11, nil), f.drain())
	assert.Equal(t, uint8(0x11), f.tr.Sequence())
	assert.Equal(t, 0, in.Available())
}

func TestTransportResponsesPrecedeAck(t *testing.T) {
	f := newMCUFixture()
	f.tr.handler = func(id uint16, data *[]byte) error {
		f.tr.SendCommand(7, func(o OutputBuffer) { EncodeVLQUint(o, 42) })
		return nil
	}
	f.feed(EncodeFrame(0x10, []byte{3}))

	want := append(EncodeFrame(0x11, []byte{7, 42}), EncodeFrame(0x11, nil)...)
	assert.Equal(t, want, f.drain())
}

func TestTransportSequenceWraps(t *testing.T) {
	f := newMCUFixture()
	seq := uint8(MessageDest)
	for i := 0; i < 17; i++ {
		f.feed(EncodeFrame(seq, commands(1)))
		seq = nextSeq(seq)
	}
	assert.Len(t, f.calls, 17)
	assert.Equal(t, uint8(0x11), f.tr.Sequence())
}

func TestTransportWrongSequenceNaks(t *testing.T) {
	f := newMCUFixture()
	f.feed(EncodeFrame(0x10, commands(1)))
	f.drain()

	f.feed(EncodeFrame(0x13, commands(2)))
	assert.Len(t, f.calls, 1)
	assert.Equal(t, EncodeFrame(0x11, nil), f.drain())
}

func TestTransportResentFirstBlockRunsOnce(t *testing.T) {
	f := newMCUFixture()
	resets := 0
	f.tr.SetResetCallback(func() { resets++ })

	block := EncodeFrame(0x10, commands(7))
	f.feed(block)
	assert.Equal(t, EncodeFrame(0x11, nil), f.drain())

	// The ack was lost and the host sends the block again.
	f.feed(block)
	assert.Equal(t, EncodeFrame(0x11, nil), f.drain())

	assert.Len(t, f.calls, 1)
	assert.Zero(t, resets)
	assert.Equal(t, uint8(0x11), f.tr.Sequence())
}

func TestTransportReset(t *testing.T) {
	f := newMCUFixture()
	resets := 0
	f.tr.SetResetCallback(func() { resets++ })

	f.feed(EncodeFrame(0x10, commands(1)))
	f.feed(EncodeFrame(0x11, commands(2)))
	f.tr.Reset()
	assert.Equal(t, 1, resets)
	assert.Equal(t, uint8(0x10), f.tr.Sequence())

	f.feed(EncodeFrame(0x10, commands(3)))
	assert.Len(t, f.calls, 3)
	assert.Equal(t, uint8(0x11), f.tr.Sequence())
}

func TestTransportPartialFrame(t *testing.T) {
	f := newMCUFixture()
	frame := EncodeFrame(0x10, commands(1, 2))

	in := f.feed(frame[:4])
	assert.Empty(t, f.calls)
	assert.Equal(t, 4, in.Available())

	in = f.feed(frame)
	assert.Len(t, f.calls, 2)
	assert.Equal(t, 0, in.Available())
}

func TestTransportResyncAfterCorruption(t *testing.T) {
	f := newMCUFixture()
	bad := EncodeFrame(0x10, commands(1))
	bad[2] ^= 0x01

	data := append(bad, MessageValueSync)
	data = append(data, EncodeFrame(0x10, commands(2))...)
	f.feed(data)

	require.Len(t, f.calls, 1)
	assert.Equal(t, uint16(2), f.calls[0].id)
	assert.True(t, f.tr.Synchronized())
	assert.Equal(t, uint8(0x11), f.tr.Sequence())
}

func TestTransportRejectsForeignDestination(t *testing.T) {
	f := newMCUFixture()
	f.feed(EncodeFrame(0x20, commands(1)))
	assert.Empty(t, f.calls)
	// The block's own sync byte resynchronizes the reader, which acks.
	assert.True(t, f.tr.Synchronized())
	assert.Equal(t, EncodeFrame(0x10, nil), f.drain())
}

func TestTransportHandlerError(t *testing.T) {
	f := newMCUFixture()
	boom := errors.New("boom")
	f.fail[5] = boom

	f.feed(EncodeFrame(0x10, commands(5, 6)))
	assert.Equal(t, []call{{5, []uint32{0}}}, f.calls)
	assert.Equal(t, []error{boom}, f.errs)
	assert.True(t, f.tr.Synchronized())
	assert.Equal(t, EncodeFrame(0x11, nil), f.drain())
}

func TestTransportHandlerPanic(t *testing.T) {
	f := newMCUFixture()
	f.feed(EncodeFrame(0x10, commands(99, 6)))

	assert.Len(t, f.calls, 1)
	assert.Equal(t, []error{ErrHandlerPanic}, f.errs)
	assert.False(t, f.tr.Synchronized())
}

func TestTransportFlushOnAck(t *testing.T) {
	f := newMCUFixture()
	flushed := 0
	f.tr.SetFlushCallback(func() { flushed++ })
	f.feed(EncodeFrame(0x10, commands(1)))
	assert.Equal(t, 1, flushed)
}
