//go:build !tinygo

package protocol

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Host transport errors.
var (
	ErrTimeout   = errors.New("timeout")
	ErrStopped   = errors.New("transport stopped")
	ErrTooLong   = errors.New("message too long")
	ErrNak       = errors.New("nak")
	ErrShortSend = errors.New("incomplete write")
)

// ResponseHandler is called from the read loop for every response command
// in a block. data starts after the command id; the handler consumes the
// arguments or returns an error to skip the rest of the block.
type ResponseHandler func(cmdID uint16, data *[]byte) error

// HostTransport is the host end of the link: it frames commands, waits for
// the MCU's ack and queues the response blocks.
type HostTransport struct {
	port io.ReadWriteCloser

	// Sequence of the next block sent (0x10-0x1F).
	currentSeq uint32

	reader *frameReader
	input  *FifoBuffer

	ackChan      chan *Message
	responseChan chan *Message

	handlerMu       sync.Mutex
	responseHandler ResponseHandler

	writeMutex sync.Mutex
	readMutex  sync.Mutex

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewHostTransport starts a read loop on port.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		currentSeq:   MessageDest,
		reader:       newFrameReader(false),
		input:        NewFifoBuffer(1024),
		ackChan:      make(chan *Message, 1),
		responseChan: make(chan *Message, 32),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends one command and waits up to two seconds for its ack.
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, 2*time.Second)
}

// SendCommandWithTimeout sends one command and waits for its ack.
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	return t.SendPayload(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	}, timeout)
}

// SendPayload sends a block whose payload is written by payload, which may
// hold several commands, and waits for its ack.
func (t *HostTransport) SendPayload(payload func(output OutputBuffer), timeout time.Duration) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	// A nak means the MCU dropped the block; it is resent once under the
	// sequence the MCU asked for. This is also how a fresh host joins an
	// MCU that is mid-sequence.
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = t.sendOnce(payload, timeout)
		if !errors.Is(err, ErrNak) {
			return err
		}
	}
	return err
}

func (t *HostTransport) sendOnce(payload func(output OutputBuffer), timeout time.Duration) error {
	seq := t.Sequence()
	out := NewScratchOutput()
	writeFrame(out, seq, payload)
	msg := out.Result()
	if len(msg) > MessageLengthMax {
		return errors.Wrapf(ErrTooLong, "%d bytes (max %d)", len(msg), MessageLengthMax)
	}

	t.drainAcks()
	n, err := t.port.Write(msg)
	if err != nil {
		return errors.Wrap(err, "write")
	}
	if n != len(msg) {
		return errors.Wrapf(ErrShortSend, "%d/%d bytes", n, len(msg))
	}
	return errors.Wrapf(t.waitForAck(seq, timeout), "seq 0x%02x", seq)
}

func (t *HostTransport) drainAcks() {
	for {
		select {
		case <-t.ackChan:
		default:
			return
		}
	}
}

// waitForAck waits for the ack of the block sent with seq. The MCU acks
// with the sequence it expects next; any other value is a nak and the
// host adopts the MCU's sequence.
func (t *HostTransport) waitForAck(seq uint8, timeout time.Duration) error {
	select {
	case ack := <-t.ackChan:
		atomic.StoreUint32(&t.currentSeq, uint32(ack.Sequence))
		if ack.Sequence != nextSeq(seq) {
			return errors.Wrapf(ErrNak, "mcu expects 0x%02x", ack.Sequence)
		}
		return nil
	case <-time.After(timeout):
		return errors.Wrapf(ErrTimeout, "no ack after %v", timeout)
	case <-t.stopChan:
		return ErrStopped
	}
}

// ReceiveResponse returns the next response block.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-time.After(timeout):
		return nil, errors.Wrapf(ErrTimeout, "no response after %v", timeout)
	case <-t.stopChan:
		return nil, ErrStopped
	}
}

// DiscardResponses drops queued response blocks.
func (t *HostTransport) DiscardResponses() {
	for {
		select {
		case <-t.responseChan:
		default:
			return
		}
	}
}

// SetResponseHandler sets a callback run for every response command.
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMu.Lock()
	t.responseHandler = handler
	t.handlerMu.Unlock()
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			t.input.Write(buf[:n])
			t.processMessages()
		}
		if err == nil {
			continue
		}
		select {
		case <-t.stopChan:
			return
		default:
		}
		if err != io.EOF {
			return
		}
		// tarm reports a read timeout as EOF.
		time.Sleep(time.Millisecond)
	}
}

func (t *HostTransport) processMessages() {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	rest := t.reader.scan(t.input.Data(), func(seq uint8, payload []byte) {
		t.dispatchMessage(&Message{
			Sequence: seq,
			Payload:  append([]byte(nil), payload...),
		})
	})
	if consumed := t.input.Available() - len(rest); consumed > 0 {
		t.input.Pop(consumed)
	}
}

// dispatchMessage routes empty blocks to the ack channel and everything
// else to the response handler and queue.
func (t *HostTransport) dispatchMessage(msg *Message) {
	if msg.IsAck() {
		select {
		case t.ackChan <- msg:
		default:
			// Keep the newest ack.
			select {
			case <-t.ackChan:
			default:
			}
			t.ackChan <- msg
		}
		return
	}

	t.handlerMu.Lock()
	handler := t.responseHandler
	t.handlerMu.Unlock()
	if handler != nil {
		data := msg.Payload
		for len(data) > 0 {
			id, err := DecodeVLQUint(&data)
			if err != nil || handler(uint16(id), &data) != nil {
				break
			}
		}
	}

	select {
	case t.responseChan <- msg:
	default:
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- msg
	}
}

// Close stops the read loop and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		err = t.port.Close()
		<-t.doneChan
	})
	return errors.Wrap(err, "close")
}

// Reset drops queued blocks and restarts the sequence at 0x10.
func (t *HostTransport) Reset() {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	t.reader.setSynced(true)
	atomic.StoreUint32(&t.currentSeq, MessageDest)
	t.drainAcks()
	t.DiscardResponses()
	t.input.Reset()
}

// Sequence returns the sequence of the next block sent.
func (t *HostTransport) Sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}
