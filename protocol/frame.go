package protocol

import "sync/atomic"

// Message is one validated message block.
type Message struct {
	Sequence uint8
	Payload  []byte
}

// IsAck reports whether the block carries no payload.
func (m *Message) IsAck() bool {
	return len(m.Payload) == 0
}

// frameReader splits a byte stream into message blocks. A block with a bad
// length, destination, sync byte or CRC drops the reader out of sync; it
// then discards input up to the next sync byte.
type frameReader struct {
	synced    uint32
	checkDest bool
	onResync  func()
}

func newFrameReader(checkDest bool) *frameReader {
	return &frameReader{synced: 1, checkDest: checkDest}
}

func (r *frameReader) isSynced() bool {
	return atomic.LoadUint32(&r.synced) != 0
}

func (r *frameReader) setSynced(v bool) {
	if v {
		atomic.StoreUint32(&r.synced, 1)
	} else {
		atomic.StoreUint32(&r.synced, 0)
	}
}

// scan calls fn for each complete block at the front of data and returns
// the unconsumed tail. The payload passed to fn aliases data.
func (r *frameReader) scan(data []byte, fn func(seq uint8, payload []byte)) []byte {
	for len(data) > 0 {
		if !r.isSynced() {
			i := indexSync(data)
			if i < 0 {
				return nil
			}
			data = data[i+1:]
			r.setSynced(true)
			if r.onResync != nil {
				r.onResync()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		n := int(data[MessagePositionLen])
		if n < MessageLengthMin || n > MessageLengthMax {
			r.setSynced(false)
			continue
		}
		seq := data[MessagePositionSeq]
		if r.checkDest && seq&^MessageSeqMask != MessageDest {
			r.setSynced(false)
			continue
		}
		if len(data) < n {
			break
		}
		if data[n-MessageTrailerSync] != MessageValueSync {
			r.setSynced(false)
			continue
		}
		crc := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
		if crc != CRC16(data[:n-MessageTrailerSize]) {
			r.setSynced(false)
			continue
		}

		payload := data[MessageHeaderSize : n-MessageTrailerSize]
		data = data[n:]
		fn(seq, payload)
	}
	return data
}

func indexSync(data []byte) int {
	for i, b := range data {
		if b == MessageValueSync {
			return i
		}
	}
	return -1
}

// writeFrame appends one block carrying payload to output.
func writeFrame(output OutputBuffer, seq uint8, payload func(OutputBuffer)) {
	cursor := output.CurPosition()
	output.Output([]byte{0, seq})
	if payload != nil {
		payload(output)
	}
	n := len(output.DataSince(cursor))
	output.Update(cursor, uint8(n+MessageTrailerSize))
	crc := CRC16(output.DataSince(cursor))
	output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// EncodeFrame returns a standalone block for payload.
func EncodeFrame(seq uint8, payload []byte) []byte {
	out := NewScratchOutput()
	writeFrame(out, seq, func(o OutputBuffer) { o.Output(payload) })
	return append([]byte(nil), out.Result()...)
}
