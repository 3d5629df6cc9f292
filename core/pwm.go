// PWM generation at a requested frequency and duty cycle
// Resolves the request to prescaler/top/compare values and programs a PWMPeripheral
package core

import "math"

// PWMRequest is one caller request for a PWM output
type PWMRequest struct {
	Pin       uint8
	Frequency float32 // Hz
	DutyCycle float32 // ratio, 0.0 to 1.0
}

// PWMReport describes how closely a resolved configuration matches its request
type PWMReport struct {
	Request    PWMRequest
	Resolution PWMResolution

	Frequency      float64 // realized output frequency, Hz
	DutyCycle      float64 // realized duty ratio
	FrequencyError float64 // |realized - requested|, Hz
	DutyCycleError float64 // |realized - requested|, ratio
}

// NewPWMReport back-computes realized values and absolute errors for a resolution
func NewPWMReport(req PWMRequest, res PWMResolution) PWMReport {
	freq := res.Frequency()
	duty := res.DutyCycle()
	return PWMReport{
		Request:        req,
		Resolution:     res,
		Frequency:      freq,
		DutyCycle:      duty,
		FrequencyError: math.Abs(freq - float64(req.Frequency)),
		DutyCycleError: math.Abs(duty - float64(req.DutyCycle)),
	}
}

// Lines renders the report as diagnostic text, duty values in percent
func (r PWMReport) Lines() []string {
	return []string{
		"PWM Initialization Success!",
		"Prescaler: " + utoa(r.Resolution.Prescaler()),
		"Top Value: " + utoa(uint32(r.Resolution.Top)),
		"Duty Cycle Value: " + utoa(uint32(r.Resolution.Duty)),
		"Actual Frequency: " + ftoa(r.Frequency, 2),
		"Actual Duty Cycle: " + ftoa(r.DutyCycle*100, 2) + " %",
		"Frequency Error: " + ftoa(r.FrequencyError, 2),
		"Duty Cycle Error: " + ftoa(r.DutyCycleError*100, 2) + " %",
	}
}

// peripheralError wraps a failure returned by the PWMPeripheral itself
type peripheralError struct {
	op  string
	err error
}

func (e *peripheralError) Error() string {
	return ErrPeripheralFault.Error() + ": " + e.op + ": " + e.err.Error()
}

func (e *peripheralError) Unwrap() error {
	return e.err
}

func (e *peripheralError) Is(target error) bool {
	return target == ErrPeripheralFault
}

// PWMGenerator configures one PWM peripheral. It is owned by the caller;
// there is one generator per hardware PWM instance.
type PWMGenerator struct {
	periph PWMPeripheral
	report DebugWriter
}

// NewPWMGenerator creates a generator for periph that writes its diagnostics
// to report. A nil report discards them.
func NewPWMGenerator(periph PWMPeripheral, report DebugWriter) *PWMGenerator {
	if report == nil {
		report = func(string) {}
	}
	return &PWMGenerator{
		periph: periph,
		report: report,
	}
}

// Configure resolves req and programs the peripheral with the result.
// Validation failures return before any peripheral call is made.
func (g *PWMGenerator) Configure(req PWMRequest) (PWMReport, error) {
	res, err := ResolvePWM(float64(req.Frequency), float64(req.DutyCycle))
	if err != nil {
		g.report("Error: " + err.Error())
		return PWMReport{Request: req}, err
	}

	if err := g.apply(req.Pin, res); err != nil {
		g.report("Error: " + err.Error())
		return PWMReport{Request: req, Resolution: res}, err
	}

	report := NewPWMReport(req, res)
	for _, line := range report.Lines() {
		g.report(line)
	}
	return report, nil
}

// apply pushes a resolution to the peripheral. The pin is registered first;
// the peripheral is started last, after top, divider and compare are loaded.
func (g *PWMGenerator) apply(pin uint8, res PWMResolution) error {
	if err := g.periph.AddPin(pin); err != nil {
		return &peripheralError{op: "add pin " + utoa(uint32(pin)), err: err}
	}

	g.periph.SetMaxValue(res.Top)
	g.periph.SetClockDiv(res.Shift)
	g.periph.WritePin(pin, res.Duty, false)

	if err := g.periph.Begin(); err != nil {
		return &peripheralError{op: "begin", err: err}
	}
	return nil
}
