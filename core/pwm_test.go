package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// recordingPeripheral logs every call made to it
type recordingPeripheral struct {
	calls    []string
	addErr   error
	beginErr error
}

func (p *recordingPeripheral) AddPin(pin uint8) error {
	p.calls = append(p.calls, fmt.Sprintf("AddPin(%d)", pin))
	return p.addErr
}

func (p *recordingPeripheral) Begin() error {
	p.calls = append(p.calls, "Begin()")
	return p.beginErr
}

func (p *recordingPeripheral) SetMaxValue(top uint16) {
	p.calls = append(p.calls, fmt.Sprintf("SetMaxValue(%d)", top))
}

func (p *recordingPeripheral) SetClockDiv(shift uint8) {
	p.calls = append(p.calls, fmt.Sprintf("SetClockDiv(%d)", shift))
}

func (p *recordingPeripheral) WritePin(pin uint8, value uint16, invert bool) {
	p.calls = append(p.calls, fmt.Sprintf("WritePin(%d, %d, %t)", pin, value, invert))
}

func TestConfigureProgramsPeripheral(t *testing.T) {
	periph := &recordingPeripheral{}
	var lines []string
	gen := NewPWMGenerator(periph, func(s string) { lines = append(lines, s) })

	report, err := gen.Configure(PWMRequest{Pin: 13, Frequency: 100, DutyCycle: 0.25})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	expectedCalls := []string{
		"AddPin(13)",
		"SetMaxValue(20000)",
		"SetClockDiv(3)",
		"WritePin(13, 5000, false)",
		"Begin()",
	}
	if !reflect.DeepEqual(periph.calls, expectedCalls) {
		t.Errorf("Peripheral calls = %v, expected %v", periph.calls, expectedCalls)
	}

	if report.Resolution != (PWMResolution{Shift: 3, Top: 20000, Duty: 5000}) {
		t.Errorf("Unexpected resolution %+v", report.Resolution)
	}
	if report.Frequency != 100 || report.FrequencyError != 0 {
		t.Errorf("Expected exact 100 Hz, got %v (error %v)", report.Frequency, report.FrequencyError)
	}

	expectedLines := []string{
		"PWM Initialization Success!",
		"Prescaler: 8",
		"Top Value: 20000",
		"Duty Cycle Value: 5000",
		"Actual Frequency: 100.00",
		"Actual Duty Cycle: 25.00 %",
		"Frequency Error: 0.00",
		"Duty Cycle Error: 0.00 %",
	}
	if !reflect.DeepEqual(lines, expectedLines) {
		t.Errorf("Report lines = %q, expected %q", lines, expectedLines)
	}
}

func TestConfigureReportsRealizedError(t *testing.T) {
	gen := NewPWMGenerator(&recordingPeripheral{}, nil)

	// 16 MHz / 3 does not divide evenly
	report, err := gen.Configure(PWMRequest{Pin: 1, Frequency: 3000, DutyCycle: 0.3})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	if report.Resolution.Top != 5333 {
		t.Errorf("Expected top 5333, got %d", report.Resolution.Top)
	}
	if report.Frequency < 3000 || report.FrequencyError > 1 {
		t.Errorf("Realized %v Hz, error %v", report.Frequency, report.FrequencyError)
	}
	if report.DutyCycleError > 1/float64(report.Resolution.Top) {
		t.Errorf("Duty error %v larger than one tick", report.DutyCycleError)
	}
}

func TestConfigureValidationTouchesNoHardware(t *testing.T) {
	testCases := []struct {
		name string
		req  PWMRequest
		want error
	}{
		{"duty", PWMRequest{Pin: 2, Frequency: 1000, DutyCycle: 1.5}, ErrInvalidDutyCycle},
		{"too fast", PWMRequest{Pin: 2, Frequency: 500000, DutyCycle: 0.5}, ErrInvalidFrequency},
		{"too slow", PWMRequest{Pin: 2, Frequency: 0.001, DutyCycle: 0.5}, ErrInvalidFrequency},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			periph := &recordingPeripheral{}
			var lines []string
			gen := NewPWMGenerator(periph, func(s string) { lines = append(lines, s) })

			report, err := gen.Configure(tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Expected %v, got %v", tc.want, err)
			}
			if len(periph.calls) != 0 {
				t.Errorf("Peripheral was touched: %v", periph.calls)
			}
			if report.Request != tc.req || report.Resolution != (PWMResolution{}) {
				t.Errorf("Unexpected report on failure: %+v", report)
			}
			if len(lines) != 1 || lines[0] != "Error: "+err.Error() {
				t.Errorf("Expected one error line, got %q", lines)
			}
		})
	}
}

func TestConfigureIdempotent(t *testing.T) {
	periph := &recordingPeripheral{}
	gen := NewPWMGenerator(periph, nil)
	req := PWMRequest{Pin: 4, Frequency: 1000, DutyCycle: 0.5}

	first, err := gen.Configure(req)
	if err != nil {
		t.Fatalf("first Configure failed: %v", err)
	}
	firstCalls := append([]string(nil), periph.calls...)
	periph.calls = nil

	second, err := gen.Configure(req)
	if err != nil {
		t.Fatalf("second Configure failed: %v", err)
	}

	if first != second {
		t.Errorf("Reports differ: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(firstCalls, periph.calls) {
		t.Errorf("Calls differ: %v vs %v", firstCalls, periph.calls)
	}
}

func TestConfigurePeripheralFault(t *testing.T) {
	busy := errors.New("no free channel")

	t.Run("add pin", func(t *testing.T) {
		periph := &recordingPeripheral{addErr: busy}
		gen := NewPWMGenerator(periph, nil)

		_, err := gen.Configure(PWMRequest{Pin: 9, Frequency: 1000, DutyCycle: 0.5})
		if !errors.Is(err, ErrPeripheralFault) || !errors.Is(err, busy) {
			t.Fatalf("Expected peripheral fault wrapping %v, got %v", busy, err)
		}
		if len(periph.calls) != 1 {
			t.Errorf("Expected to stop after AddPin, got %v", periph.calls)
		}
		if PWMStatus(err) != PWMStatusPeripheralFault {
			t.Errorf("Expected status %d, got %d", PWMStatusPeripheralFault, PWMStatus(err))
		}
	})

	t.Run("begin", func(t *testing.T) {
		periph := &recordingPeripheral{beginErr: busy}
		gen := NewPWMGenerator(periph, nil)

		report, err := gen.Configure(PWMRequest{Pin: 9, Frequency: 1000, DutyCycle: 0.5})
		if !errors.Is(err, ErrPeripheralFault) {
			t.Fatalf("Expected peripheral fault, got %v", err)
		}
		if len(periph.calls) != 5 {
			t.Errorf("Expected all five calls, got %v", periph.calls)
		}
		if report.Resolution.Top != 16000 {
			t.Errorf("Resolution should be kept on a peripheral fault, got %+v", report.Resolution)
		}
	})
}

func TestMultiDebugWriter(t *testing.T) {
	var a, b []string
	w := MultiDebugWriter(func(s string) { a = append(a, s) }, nil, func(s string) { b = append(b, s) })
	w("hello")

	if len(a) != 1 || len(b) != 1 || a[0] != "hello" || b[0] != "hello" {
		t.Errorf("Expected both sinks to get the line, got %q and %q", a, b)
	}
}

func TestConfigureReportsToEverySink(t *testing.T) {
	var uart, lcd []string
	report := MultiDebugWriter(
		func(s string) { uart = append(uart, s) },
		func(s string) { lcd = append(lcd, s) },
	)
	gen := NewPWMGenerator(&recordingPeripheral{}, report)

	ok, err := gen.Configure(PWMRequest{Pin: 13, Frequency: 100, DutyCycle: 0.25})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if _, err := gen.Configure(PWMRequest{Pin: 13, Frequency: 100, DutyCycle: 1.5}); err == nil {
		t.Fatal("Expected invalid duty cycle")
	}

	want := append(ok.Lines(), "Error: "+newPWMError(ErrInvalidDutyCycle, 1.5).Error())
	for name, got := range map[string][]string{"uart": uart, "lcd": lcd} {
		if len(got) != len(want) {
			t.Fatalf("%s sink got %q, expected %q", name, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s line %d = %q, expected %q", name, i, got[i], want[i])
			}
		}
	}

	// A board without an LCD still reports through the UART alone
	uart = nil
	gen = NewPWMGenerator(&recordingPeripheral{}, MultiDebugWriter(func(s string) { uart = append(uart, s) }, nil))
	if _, err := gen.Configure(PWMRequest{Pin: 13, Frequency: 0.1, DutyCycle: 0.5}); err == nil {
		t.Fatal("Expected invalid frequency")
	}
	if len(uart) != 1 || !strings.HasPrefix(uart[0], "Error: "+ErrInvalidFrequency.Error()) {
		t.Errorf("Expected one error line, got %q", uart)
	}
}
