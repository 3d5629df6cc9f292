package core

// PWMPeripheral is the hardware PWM instance a PWMGenerator programs.
// All pins added to one peripheral share its counter top and clock divider,
// so every pin on it runs at the same frequency.
// Platform-specific implementations handle the actual register writes.
type PWMPeripheral interface {
	// AddPin routes a pin to one of the peripheral's output channels.
	// Must be called before the pin is written or the peripheral started.
	AddPin(pin uint8) error

	// Begin enables the peripheral and starts the output sequence
	Begin() error

	// SetMaxValue sets the counter top (period in prescaled ticks)
	SetMaxValue(top uint16)

	// SetClockDiv sets the prescaler exponent, divider = 1 << shift
	SetClockDiv(shift uint8)

	// WritePin sets the compare value for a pin's channel
	WritePin(pin uint8, value uint16, invert bool)
}
