package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var ErrTransportClosed = errors.New("transport closed")

// ResponseHandler is called from the read loop for every response message
type ResponseHandler func(cmdID uint16, data *[]byte) error

// HostTransport is the host side of the link: it sends commands, waits for
// their ACK and collects responses from a background reader.
type HostTransport struct {
	port io.ReadWriteCloser

	seq uint32 // atomic; sequence of the next message sent

	input        *FifoBuffer
	synchronized bool // read loop only

	acks      chan Message
	responses chan Message

	handlerMu sync.RWMutex
	handler   ResponseHandler

	sendMu sync.Mutex // one command in flight at a time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewHostTransport starts a read loop on port
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		seq:          MessageDest,
		input:        NewFifoBuffer(MessageMax),
		synchronized: true,
		acks:         make(chan Message, 1),
		responses:    make(chan Message, 16),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends one command and waits for its ACK
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, 2*time.Second)
}

// SendCommandWithTimeout sends one command and waits up to timeout for its ACK
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	seq := uint8(atomic.LoadUint32(&t.seq))
	msg, err := EncodeMessage(seq, EncodeCommand(cmdID, args))
	if err != nil {
		return fmt.Errorf("failed to build command %d: %w", cmdID, err)
	}

	n, err := t.port.Write(msg)
	if err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}

	return t.waitForAck(seq, timeout)
}

// waitForAck expects the MCU to acknowledge with the sequence after seq
func (t *HostTransport) waitForAck(seq uint8, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	want := nextSequence(seq)
	select {
	case ack := <-t.acks:
		if ack.Sequence != want {
			return fmt.Errorf("sequence mismatch: expected 0x%02x, got 0x%02x", want, ack.Sequence)
		}
		atomic.StoreUint32(&t.seq, uint32(want))
		return nil
	case <-timer.C:
		return fmt.Errorf("ACK timeout after %v", timeout)
	case <-t.stop:
		return ErrTransportClosed
	}
}

// ReceiveResponse returns the next response message
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-t.responses:
		return resp, nil
	case <-timer.C:
		return Message{}, fmt.Errorf("response timeout after %v", timeout)
	case <-t.stop:
		return Message{}, ErrTransportClosed
	}
}

// WaitResponse skips responses until one with cmdID arrives and returns its
// arguments (the payload after the command ID)
func (t *HostTransport) WaitResponse(cmdID uint16, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("no response %d within %v", cmdID, timeout)
		}
		msg, err := t.ReceiveResponse(remaining)
		if err != nil {
			return nil, err
		}
		payload := msg.Payload
		id, err := DecodeVLQUint(&payload)
		if err != nil {
			continue
		}
		if uint16(id) == cmdID {
			return payload, nil
		}
	}
}

// SetResponseHandler sets a callback run for every response
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.handler = handler
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	buf := make([]byte, 256)
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n > 0 {
			t.input.Write(buf[:n])
			t.processInput()
		}
	}
}

// processInput parses complete messages out of the input FIFO
func (t *HostTransport) processInput() {
	data := t.input.Data()
	avail := len(data)

	for len(data) > 0 {
		if !t.synchronized {
			var found bool
			if data, found = skipToSync(data); found {
				t.synchronized = true
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
			t.synchronized = false
			continue
		}
		// Payload aliases the FIFO; detach it before the FIFO is reused
		msg.Payload = append([]byte(nil), msg.Payload...)
		data = data[n:]
		t.dispatch(msg)
	}

	t.input.Pop(avail - len(data))
}

func (t *HostTransport) dispatch(msg Message) {
	if len(msg.Payload) == 0 {
		select {
		case t.acks <- msg:
		default:
			// Stale ACK nobody waits for
		}
		return
	}

	t.handlerMu.RLock()
	handler := t.handler
	t.handlerMu.RUnlock()
	if handler != nil {
		payload := msg.Payload
		if cmdID, err := DecodeVLQUint(&payload); err == nil {
			_ = handler(uint16(cmdID), &payload)
		}
	}

	// Keep the newest responses when nobody drains the channel
	select {
	case t.responses <- msg:
	default:
		select {
		case <-t.responses:
		default:
		}
		t.responses <- msg
	}
}

// Close stops the read loop and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}
