//go:build nrf52840

package main

import (
	"machine"

	"tinygo.org/x/drivers/hd44780i2c"
)

const (
	lcdAddr   = 0x27
	lcdWidth  = 16
	lcdHeight = 2
)

// lcdSink shows the last two report lines on a 16x2 HD44780 behind a
// PCF8574 I2C expander. Lines are queued and drawn by a goroutine so the
// command handler never waits on I2C.
type lcdSink struct {
	dev   hd44780i2c.Device
	lines chan string
}

// newLCDSink returns nil when no display answers on the bus
func newLCDSink(bus *machine.I2C) *lcdSink {
	// Backlight-on expander write doubles as a presence check
	if err := bus.Tx(lcdAddr, []byte{0x08}, nil); err != nil {
		return nil
	}

	s := &lcdSink{
		dev:   hd44780i2c.New(bus, lcdAddr),
		lines: make(chan string, 8),
	}
	if err := s.dev.Configure(hd44780i2c.Config{Width: lcdWidth, Height: lcdHeight}); err != nil {
		return nil
	}
	s.dev.ClearDisplay()
	go s.run()
	return s
}

// Println queues a line, dropping it when the queue is full
func (s *lcdSink) Println(line string) {
	select {
	case s.lines <- line:
	default:
	}
}

func (s *lcdSink) run() {
	var top, bottom string
	for line := range s.lines {
		top, bottom = bottom, line
		s.dev.ClearDisplay()
		s.draw(0, top)
		s.draw(1, bottom)
	}
}

func (s *lcdSink) draw(row uint8, text string) {
	if len(text) > lcdWidth {
		text = text[:lcdWidth]
	}
	s.dev.SetCursor(0, row)
	s.dev.Print([]byte(text))
}
