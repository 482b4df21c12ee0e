package protocol

import (
	"errors"
	"sync/atomic"
)

// ErrHandlerPanic is reported when a command handler panics.
var ErrHandlerPanic = errors.New("command handler panicked")

// CommandHandler decodes and runs one command. It must consume exactly the
// command's arguments from data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the MCU end of the link: it validates incoming blocks,
// dispatches their commands in order and acknowledges every block.
type Transport struct {
	reader *frameReader

	// Next sequence expected from the host (0x10-0x1F). Acks and responses
	// carry the same value.
	nextSequence uint32

	output        OutputBuffer
	handler       CommandHandler
	errorCallback func(cmdID uint16, err error)
	resetCallback func()
	flushCallback func()
}

// NewTransport creates a Transport writing blocks to output.
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		reader:       newFrameReader(true),
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
	t.reader.onResync = t.encodeAckNak
	return t
}

// Receive consumes every complete block in input.
func (t *Transport) Receive(input InputBuffer) {
	rest := t.reader.scan(input.Data(), t.receiveFrame)
	if consumed := input.Available() - len(rest); consumed > 0 {
		input.Pop(consumed)
	}
}

func (t *Transport) receiveFrame(seq uint8, payload []byte) {
	// Only the expected block runs. A resend whose ack was lost, or a host
	// that restarted at 0x10, is nak'd with the expected sequence; a real
	// restart goes through Reset.
	if seq == t.Sequence() {
		atomic.StoreUint32(&t.nextSequence, uint32(nextSeq(seq)))
		t.parseFrame(payload)
	}
	// A block with the wrong sequence still gets an ack; it reads as a nak
	// naming the expected sequence.
	t.encodeAckNak()
}

// parseFrame dispatches every command in a block. A handler error abandons
// the rest of the block; a panic also drops synchronization.
func (t *Transport) parseFrame(frame []byte) {
	var cmdID uint16
	defer func() {
		if r := recover(); r != nil {
			t.reader.setSynced(false)
			t.reportError(cmdID, ErrHandlerPanic)
		}
	}()

	for len(frame) > 0 {
		id, err := DecodeVLQUint(&frame)
		if err != nil {
			t.reader.setSynced(false)
			t.reportError(0, err)
			return
		}
		cmdID = uint16(id)
		if t.handler == nil {
			return
		}
		if err := t.handler(cmdID, &frame); err != nil {
			t.reportError(cmdID, err)
			return
		}
	}
}

func (t *Transport) reportError(cmdID uint16, err error) {
	if t.errorCallback != nil {
		t.errorCallback(cmdID, err)
	}
}

// encodeAckNak sends an empty block and flushes it straight away so the
// host sees the ack before any queued responses.
func (t *Transport) encodeAckNak() {
	writeFrame(t.output, t.Sequence(), nil)
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame sends one block whose payload is written by frameData.
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	writeFrame(t.output, t.Sequence(), frameData)
}

// SendCommand sends a response block with id cmdID.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Sequence returns the sequence expected from the host.
func (t *Transport) Sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.nextSequence))
}

// Synchronized reports whether the reader is aligned on block boundaries.
func (t *Transport) Synchronized() bool {
	return t.reader.isSynced()
}

// Reset returns the transport to its power-on state, e.g. after a USB
// reconnect.
func (t *Transport) Reset() {
	t.reader.setSynced(true)
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets the function called by Reset.
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets the function that pushes pending output to the wire.
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// SetErrorCallback sets the function told about malformed blocks and
// failing handlers.
func (t *Transport) SetErrorCallback(callback func(cmdID uint16, err error)) {
	t.errorCallback = callback
}
