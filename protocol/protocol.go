// Package protocol implements the Klipper serial protocol: VLQ argument
// encoding, CRC16 and message block framing for both ends of the link.
package protocol

// Message block layout: len, seq, payload..., crc_hi, crc_lo, sync.
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F
)

// MessageMax is the size of a ScratchOutput; several blocks may be queued
// in one before the platform flushes it.
const MessageMax = 512

// nextSeq returns the sequence that follows seq, keeping the dest bits.
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
