// Package protocol implements the Klipper serial framing used between the
// pwmgen firmware and its host tools.
//
// A message is: length, sequence, payload (VLQ encoded commands), CRC16
// (big endian) and the 0x7E sync byte. An empty payload is an ACK/NAK.
package protocol

// Version is the protocol implementation version reported by tools
const Version = "0.1.0"

const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3 // offset of the CRC from the end of the message
	MessageTrailerSync = 1 // offset of the sync byte from the end
	MessageValueSync   = 0x7E
	MessageDest        = 0x10 // high nibble of every sequence byte
	MessageSeqMask     = 0x0F

	// MessageMax sizes scratch buffers that may hold several messages
	MessageMax = 512
)

// Message is one parsed frame
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // between header and trailer
	CRC      uint16
}

// nextSequence advances a sequence byte within 0x10-0x1F
func nextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
