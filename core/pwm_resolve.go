package core

import (
	"errors"
	"math"
)

// nRF52840 PWM clock and counter limits
const (
	PWMBaseClock         = 16000000 // PWM_CLK before the prescaler, in Hz
	PWMMaxTop            = 0x7FFF   // COUNTERTOP is 15 bits
	PWMMaxPrescalerShift = 7        // PRESCALER DIV_1 .. DIV_128
	PWMMinTop            = 255      // smallest period that keeps 8-bit duty resolution (PWM_MAX)
)

var (
	ErrInvalidDutyCycle   = errors.New("duty cycle must be between 0 and 1")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrTopValueOutOfRange = errors.New("invalid top value")
	ErrPeripheralFault    = errors.New("pwm peripheral fault")
)

// PWMError carries the value that caused a PWM configuration failure.
// It unwraps to one of the Err* sentinels above.
type PWMError struct {
	Err   error
	Value float64
}

func (e *PWMError) Error() string {
	return e.Err.Error() + ": " + ftoa(e.Value, 6)
}

func (e *PWMError) Unwrap() error {
	return e.Err
}

func newPWMError(err error, value float64) error {
	return &PWMError{Err: err, Value: value}
}

// PWMResolution is the register-level result of resolving a frequency and
// duty cycle: the prescaler exponent, the counter top and the compare value.
type PWMResolution struct {
	Shift uint8  // prescaler exponent, divider is 1<<Shift
	Top   uint16 // COUNTERTOP, ticks per period
	Duty  uint16 // compare value, ticks the output is active
}

// Prescaler returns the clock divider selected by Shift.
func (r PWMResolution) Prescaler() uint32 {
	return uint32(1) << r.Shift
}

// Frequency returns the output frequency the resolution actually produces.
func (r PWMResolution) Frequency() float64 {
	return RealizedFrequency(r.Shift, r.Top)
}

// DutyCycle returns the duty ratio the resolution actually produces.
func (r PWMResolution) DutyCycle() float64 {
	return RealizedDuty(r.Duty, r.Top)
}

// SelectPrescaler picks the smallest prescaler exponent whose divided clock
// lets the requested period fit in the 15-bit counter.
//
// Frequencies whose period fits without any division get shift 0, unless the
// period is shorter than PWMMinTop ticks, in which case the frequency is too
// high to generate with useful duty resolution.
func SelectPrescaler(frequency float64) (uint8, error) {
	if !(frequency > 0) || math.IsInf(frequency, 1) {
		return 0, newPWMError(ErrInvalidFrequency, frequency)
	}

	ratio := PWMBaseClock / (PWMMaxTop * frequency)
	shift := math.Ceil(math.Log2(ratio))

	if shift > PWMMaxPrescalerShift {
		// Too slow even for DIV_128
		return 0, newPWMError(ErrInvalidFrequency, frequency)
	}
	if shift < 0 {
		if math.Floor(PWMBaseClock/frequency) < PWMMinTop {
			return 0, newPWMError(ErrInvalidFrequency, frequency)
		}
		return 0, nil
	}

	// log2 rounding can overshoot by one step right at a power-of-two boundary
	s := uint8(shift)
	for s > 0 && math.Floor(PWMBaseClock/(float64(uint32(1)<<(s-1))*frequency)) <= PWMMaxTop {
		s--
	}
	return s, nil
}

// ComputeTopValue returns the counter top for the given prescaler exponent.
// The period is truncated to whole ticks, so the realized frequency is never
// below the request. A top that does not fit the counter is reported, never
// clamped.
func ComputeTopValue(shift uint8, frequency float64) (uint16, error) {
	if shift > PWMMaxPrescalerShift {
		return 0, newPWMError(ErrTopValueOutOfRange, float64(shift))
	}

	clock := PWMBaseClock / float64(uint32(1)<<shift)
	top := math.Floor(clock / frequency)
	if !(top >= 1 && top <= PWMMaxTop) {
		return 0, newPWMError(ErrTopValueOutOfRange, top)
	}
	return uint16(top), nil
}

// QuantizeDuty converts a duty ratio into compare ticks, truncating.
func QuantizeDuty(top uint16, dutyCycle float64) uint16 {
	if !(dutyCycle > 0) {
		return 0
	}
	ticks := math.Floor(dutyCycle * float64(top))
	if ticks >= float64(top) {
		return top
	}
	return uint16(ticks)
}

// RealizedFrequency back-computes the output frequency from register values.
func RealizedFrequency(shift uint8, top uint16) float64 {
	if top == 0 {
		return 0
	}
	return PWMBaseClock / (float64(uint32(1)<<shift) * float64(top))
}

// RealizedDuty back-computes the duty ratio from register values.
func RealizedDuty(duty, top uint16) float64 {
	if top == 0 {
		return 0
	}
	return float64(duty) / float64(top)
}

// ValidDutyCycle reports whether dutyCycle lies in [0, 1].
func ValidDutyCycle(dutyCycle float64) bool {
	return dutyCycle >= 0 && dutyCycle <= 1
}

// ResolvePWM maps a frequency and duty cycle to register values without
// touching any hardware.
func ResolvePWM(frequency, dutyCycle float64) (PWMResolution, error) {
	if !ValidDutyCycle(dutyCycle) {
		return PWMResolution{}, newPWMError(ErrInvalidDutyCycle, dutyCycle)
	}

	shift, err := SelectPrescaler(frequency)
	if err != nil {
		return PWMResolution{}, err
	}

	top, err := ComputeTopValue(shift, frequency)
	if err != nil {
		return PWMResolution{}, err
	}

	return PWMResolution{
		Shift: shift,
		Top:   top,
		Duty:  QuantizeDuty(top, dutyCycle),
	}, nil
}

// Status codes reported in pwm_gen_state
const (
	PWMStatusOK                 int32 = 0
	PWMStatusInvalidDutyCycle   int32 = -1
	PWMStatusInvalidFrequency   int32 = -2
	PWMStatusTopValueOutOfRange int32 = -3
	PWMStatusPeripheralFault    int32 = -4
)

// PWMStatus converts a configuration error into its wire status code.
func PWMStatus(err error) int32 {
	switch {
	case err == nil:
		return PWMStatusOK
	case errors.Is(err, ErrInvalidDutyCycle):
		return PWMStatusInvalidDutyCycle
	case errors.Is(err, ErrInvalidFrequency):
		return PWMStatusInvalidFrequency
	case errors.Is(err, ErrTopValueOutOfRange):
		return PWMStatusTopValueOutOfRange
	default:
		return PWMStatusPeripheralFault
	}
}

// PWMStatusError is the inverse of PWMStatus. Unknown codes map to
// ErrPeripheralFault.
func PWMStatusError(status int32) error {
	switch status {
	case PWMStatusOK:
		return nil
	case PWMStatusInvalidDutyCycle:
		return ErrInvalidDutyCycle
	case PWMStatusInvalidFrequency:
		return ErrInvalidFrequency
	case PWMStatusTopValueOutOfRange:
		return ErrTopValueOutOfRange
	default:
		return ErrPeripheralFault
	}
}
