// Package serial opens the USB CDC link to a pwmgen board
package serial

import (
	"errors"
	"io"
	"time"
)

var ErrNoDevice = errors.New("no serial device configured")

// Port is the byte stream the host transport runs on.
// Tests substitute an in-memory pipe.
type Port interface {
	io.ReadWriteCloser

	// Flush pushes out any buffered writes
	Flush() error
}

// Config holds serial port settings
type Config struct {
	// Device path, e.g. "/dev/ttyACM0" or "COM3"
	Device string

	// Baud rate; USB CDC ignores it but tarm/serial requires one
	Baud int

	// ReadTimeout bounds each Read so the reader can notice Close
	ReadTimeout time.Duration
}

// DefaultConfig returns the settings used when none are configured
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Validate checks that cfg can be opened
func (c *Config) Validate() error {
	if c.Device == "" {
		return ErrNoDevice
	}
	if c.Baud <= 0 {
		return errors.New("baud rate must be positive")
	}
	if c.ReadTimeout < 0 {
		return errors.New("read timeout must not be negative")
	}
	return nil
}
