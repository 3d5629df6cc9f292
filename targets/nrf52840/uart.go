//go:build nrf52840

package main

import "machine"

// Debug UART on spare pins; USB CDC carries the protocol
const (
	uartBaud   = 115200
	uartTXPin  = machine.P0_06
	uartRXPin  = machine.P0_08
	uartQueued = 16
)

// uartSink writes report lines to a UART. Lines are queued and written by
// a goroutine so the command handler never waits on the wire.
type uartSink struct {
	uart  *machine.UART
	lines chan string
}

// newUARTSink returns nil when the UART cannot be configured
func newUARTSink(uart *machine.UART) *uartSink {
	err := uart.Configure(machine.UARTConfig{
		BaudRate: uartBaud,
		TX:       uartTXPin,
		RX:       uartRXPin,
	})
	if err != nil {
		return nil
	}

	s := &uartSink{
		uart:  uart,
		lines: make(chan string, uartQueued),
	}
	go s.run()
	return s
}

// Println queues a line, dropping it when the queue is full
func (s *uartSink) Println(line string) {
	select {
	case s.lines <- line:
	default:
	}
}

func (s *uartSink) run() {
	for line := range s.lines {
		s.uart.Write([]byte(line))
		s.uart.Write([]byte("\r\n"))
	}
}
