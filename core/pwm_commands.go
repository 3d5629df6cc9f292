package core

import (
	"errors"
	"math"

	"pwmgen/protocol"
)

// Fixed-point units used on the wire, the protocol carries no floats
const (
	PWMFrequencyScale = 1000    // freq_mhz: millihertz per Hz
	PWMDutyScale      = 1000000 // duty_ppm: parts per million of a period
)

// ErrPinOutOfRange is returned when a decoded pin does not fit the %c field
var ErrPinOutOfRange = errors.New("pin out of range")

// PWMState is the pwm_gen_state response: the outcome of one config_pwm_gen
type PWMState struct {
	Pin        uint8
	Status     int32
	Resolution PWMResolution
}

// Err returns the typed error for a non-zero status
func (s PWMState) Err() error {
	return PWMStatusError(s.Status)
}

// InitPWMCommands registers the PWM generator commands for gen
func InitPWMCommands(gen *PWMGenerator) {
	// Format: config_pwm_gen pin=%c freq_mhz=%u duty_ppm=%i
	RegisterCommand("config_pwm_gen", "pin=%c freq_mhz=%u duty_ppm=%i", func(data *[]byte) error {
		return handleConfigPWMGen(gen, data)
	})
	RegisterResponse("pwm_gen_state", "pin=%c status=%i shift=%c top=%hu duty=%hu")

	RegisterConstant("PWM_BASE_CLOCK", uint32(PWMBaseClock))
	RegisterConstant("PWM_MAX_TOP", uint32(PWMMaxTop))
	RegisterConstant("PWM_MIN_TOP", uint32(PWMMinTop))
	RegisterConstant("PWM_MAX_SHIFT", uint32(PWMMaxPrescalerShift))
}

// handleConfigPWMGen configures the generator and always answers with
// pwm_gen_state; configuration failures travel in the status field
func handleConfigPWMGen(gen *PWMGenerator, data *[]byte) error {
	req, err := DecodePWMRequest(data)
	if err != nil {
		return err
	}

	report, err := gen.Configure(req)
	state := PWMState{Pin: req.Pin, Status: PWMStatus(err)}
	if err == nil {
		state.Resolution = report.Resolution
	}

	SendResponse("pwm_gen_state", func(output protocol.OutputBuffer) {
		EncodePWMState(output, state)
	})
	return nil
}

// EncodePWMRequest writes config_pwm_gen arguments
func EncodePWMRequest(output protocol.OutputBuffer, req PWMRequest) {
	protocol.EncodeVLQUint(output, uint32(req.Pin))
	protocol.EncodeVLQUint(output, frequencyToMilliHz(req.Frequency))
	protocol.EncodeVLQInt(output, dutyToPPM(req.DutyCycle))
}

// DecodePWMRequest reads config_pwm_gen arguments
func DecodePWMRequest(data *[]byte) (PWMRequest, error) {
	pin, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return PWMRequest{}, err
	}
	freq, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return PWMRequest{}, err
	}
	duty, err := protocol.DecodeVLQInt(data)
	if err != nil {
		return PWMRequest{}, err
	}
	if pin > math.MaxUint8 {
		return PWMRequest{}, newPWMError(ErrPinOutOfRange, float64(pin))
	}

	return PWMRequest{
		Pin:       uint8(pin),
		Frequency: milliHzToFrequency(freq),
		DutyCycle: ppmToDuty(duty),
	}, nil
}

// QuantizeRequest returns req as the firmware sees it after the
// fixed-point rounding of config_pwm_gen
func QuantizeRequest(req PWMRequest) PWMRequest {
	return PWMRequest{
		Pin:       req.Pin,
		Frequency: milliHzToFrequency(frequencyToMilliHz(req.Frequency)),
		DutyCycle: ppmToDuty(dutyToPPM(req.DutyCycle)),
	}
}

// EncodePWMState writes pwm_gen_state arguments
func EncodePWMState(output protocol.OutputBuffer, s PWMState) {
	protocol.EncodeVLQUint(output, uint32(s.Pin))
	protocol.EncodeVLQInt(output, s.Status)
	protocol.EncodeVLQUint(output, uint32(s.Resolution.Shift))
	protocol.EncodeVLQUint(output, uint32(s.Resolution.Top))
	protocol.EncodeVLQUint(output, uint32(s.Resolution.Duty))
}

// DecodePWMState reads pwm_gen_state arguments
func DecodePWMState(data *[]byte) (PWMState, error) {
	var v [5]int32
	for i := range v {
		n, err := protocol.DecodeVLQInt(data)
		if err != nil {
			return PWMState{}, err
		}
		v[i] = n
	}

	return PWMState{
		Pin:    uint8(v[0]),
		Status: v[1],
		Resolution: PWMResolution{
			Shift: uint8(v[2]),
			Top:   uint16(v[3]),
			Duty:  uint16(v[4]),
		},
	}, nil
}

// frequencyToMilliHz saturates instead of wrapping for out-of-range input,
// so the firmware still sees an invalid frequency rather than a valid one
func frequencyToMilliHz(hz float32) uint32 {
	mhz := math.Round(float64(hz) * PWMFrequencyScale)
	switch {
	case !(mhz > 0):
		return 0
	case mhz >= math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(mhz)
	}
}

// dutyToPPM saturates like frequencyToMilliHz; NaN maps to an invalid duty
func dutyToPPM(duty float32) int32 {
	ppm := math.Round(float64(duty) * PWMDutyScale)
	switch {
	case math.IsNaN(ppm) || ppm >= math.MaxInt32:
		return math.MaxInt32
	case ppm <= math.MinInt32:
		return math.MinInt32
	default:
		return int32(ppm)
	}
}

func milliHzToFrequency(mhz uint32) float32 {
	return float32(float64(mhz) / PWMFrequencyScale)
}

func ppmToDuty(ppm int32) float32 {
	return float32(float64(ppm) / PWMDutyScale)
}
