package protocol

import "sync/atomic"

// CommandHandler handles one decoded command; it must consume its own
// arguments from data
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the MCU side of the link: it validates incoming messages,
// dispatches their commands in sequence order and answers every message
// with an ACK (or a NAK carrying the expected sequence).
type Transport struct {
	synchronized uint32 // atomic bool
	nextSeq      uint32 // atomic; next sequence expected from the host

	output        OutputBuffer
	handler       CommandHandler
	resetCallback func() // host restarted its sequence
	flushCallback func() // push queued output to the wire now
}

// NewTransport creates a Transport that writes to output and dispatches to handler
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		synchronized: 1,
		nextSeq:      MessageDest,
		output:       output,
		handler:      handler,
	}
}

// Receive consumes every complete message in input. A trailing partial
// message is left in input for the next call.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !t.isSynchronized() {
			var found bool
			if data, found = skipToSync(data); found {
				t.setSynchronized(true)
				t.encodeAckNak()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		msg, n, res := scanMessage(data)
		if res == scanNeedMore {
			break
		}
		if res == scanBad {
			t.setSynchronized(false)
			continue
		}
		data = data[n:]
		t.handleMessage(msg)
	}

	input.Pop(input.Available() - len(data))
}

func (t *Transport) handleMessage(msg Message) {
	expected := t.sequence()

	// Sequence back at the start means the host reconnected
	if msg.Sequence == MessageDest && expected != MessageDest {
		expected = MessageDest
		atomic.StoreUint32(&t.nextSeq, MessageDest)
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}

	if msg.Sequence == expected {
		atomic.StoreUint32(&t.nextSeq, uint32(nextSequence(expected)))
		_ = t.dispatch(msg.Payload)
	}

	// Acknowledge every message; on a sequence mismatch this is the NAK
	t.encodeAckNak()
}

// dispatch runs every command in a payload. A panicking handler forces a
// resync instead of taking the firmware down.
func (t *Transport) dispatch(payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.setSynchronized(false)
		}
	}()

	for len(payload) > 0 {
		cmdID, err := DecodeVLQUint(&payload)
		if err != nil {
			t.setSynchronized(false)
			return err
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			// Arguments of the failed command cannot be skipped reliably
			return err
		}
	}
	return nil
}

func (t *Transport) encodeAckNak() {
	ack, _ := EncodeMessage(t.sequence(), nil)
	t.output.Output(ack)

	// The host waits for the ACK before it reads responses
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// SendCommand queues a message carrying one command or response.
// Responses reuse the current sequence; oversized messages are dropped.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	msg, err := EncodeMessage(t.sequence(), EncodeCommand(cmdID, args))
	if err != nil {
		return
	}
	t.output.Output(msg)
}

// Reset returns the transport to its power-on state
func (t *Transport) Reset() {
	t.setSynchronized(true)
	atomic.StoreUint32(&t.nextSeq, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets a callback for when the host restarts its sequence
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets a callback that writes queued output immediately
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

func (t *Transport) sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.nextSeq))
}

func (t *Transport) isSynchronized() bool {
	return atomic.LoadUint32(&t.synchronized) != 0
}

func (t *Transport) setSynchronized(val bool) {
	var v uint32
	if val {
		v = 1
	}
	atomic.StoreUint32(&t.synchronized, v)
}
