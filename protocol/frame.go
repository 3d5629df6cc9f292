package protocol

import "errors"

var ErrMessageTooLong = errors.New("message too long")

type scanResult int

const (
	scanOK       scanResult = iota // a complete, valid message
	scanNeedMore                   // a valid prefix, wait for more bytes
	scanBad                        // corrupt, resynchronize on the next sync byte
)

// scanMessage checks the message at the start of data. data must not begin
// with a sync byte. On scanOK n is the message length; Payload aliases data.
func scanMessage(data []byte) (msg Message, n int, res scanResult) {
	if len(data) < MessageLengthMin {
		return Message{}, 0, scanNeedMore
	}

	msgLen := int(data[MessagePositionLen])
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
		return Message{}, 0, scanBad
	}
	if data[MessagePositionSeq]&^MessageSeqMask != MessageDest {
		return Message{}, 0, scanBad
	}
	if len(data) < msgLen {
		return Message{}, 0, scanNeedMore
	}
	if data[msgLen-MessageTrailerSync] != MessageValueSync {
		return Message{}, 0, scanBad
	}

	crc := uint16(data[msgLen-MessageTrailerCRC])<<8 | uint16(data[msgLen-MessageTrailerCRC+1])
	if crc != CRC16(data[:msgLen-MessageTrailerSize]) {
		return Message{}, 0, scanBad
	}

	return Message{
		Length:   uint8(msgLen),
		Sequence: data[MessagePositionSeq],
		Payload:  data[MessageHeaderSize : msgLen-MessageTrailerSize],
		CRC:      crc,
	}, msgLen, scanOK
}

// skipToSync drops everything up to and including the next sync byte.
// It reports false when no sync byte was found.
func skipToSync(data []byte) ([]byte, bool) {
	for i, b := range data {
		if b == MessageValueSync {
			return data[i+1:], true
		}
	}
	return nil, false
}

// EncodeMessage wraps payload in a header and trailer
func EncodeMessage(seq uint8, payload []byte) ([]byte, error) {
	msgLen := MessageHeaderSize + len(payload) + MessageTrailerSize
	if msgLen > MessageLengthMax {
		return nil, ErrMessageTooLong
	}

	msg := make([]byte, 0, msgLen)
	msg = append(msg, uint8(msgLen), seq)
	msg = append(msg, payload...)
	crc := CRC16(msg)
	return append(msg, uint8(crc>>8), uint8(crc), MessageValueSync), nil
}

// EncodeCommand builds the payload for one command: its ID then its arguments
func EncodeCommand(cmdID uint16, args func(output OutputBuffer)) []byte {
	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	out := make([]byte, scratch.CurPosition())
	copy(out, scratch.Result())
	return out
}
