// Package config loads pwmgen-host settings and named PWM outputs from YAML
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"pwmgen/core"
	"pwmgen/host/serial"
)

// Config is the pwmgen-host configuration file
type Config struct {
	Serial          SerialConfig      `yaml:"serial"`
	ResponseTimeout time.Duration     `yaml:"response_timeout"`
	Outputs         map[string]Output `yaml:"outputs"`
}

// SerialConfig selects the board's serial port
type SerialConfig struct {
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// Output is one named PWM profile
type Output struct {
	Pin       uint8   `yaml:"pin"`
	Frequency float64 `yaml:"frequency"`
	DutyCycle float64 `yaml:"duty_cycle"`
}

// LoadError reports a configuration file that could not be used
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Default returns the configuration used without a file
func Default() *Config {
	s := serial.DefaultConfig("/dev/ttyACM0")
	return &Config{
		Serial: SerialConfig{
			Device:      s.Device,
			Baud:        s.Baud,
			ReadTimeout: s.ReadTimeout,
		},
		ResponseTimeout: time.Second,
		Outputs:         map[string]Output{},
	}
}

// Parse decodes YAML on top of the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if cfg.Outputs == nil {
		cfg.Outputs = map[string]Output{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Message: "invalid configuration", Cause: err}
	}
	return cfg, nil
}

// Load reads and parses the file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks the serial settings and resolves every output as the
// board will receive it, so a profile the board would reject fails before
// anything is sent
func (c *Config) Validate() error {
	if err := c.SerialPort().Validate(); err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	if c.ResponseTimeout <= 0 {
		return errors.New("response_timeout must be positive")
	}

	var errs []error
	for _, name := range c.OutputNames() {
		req := core.QuantizeRequest(c.Outputs[name].Request())
		if _, err := core.ResolvePWM(float64(req.Frequency), float64(req.DutyCycle)); err != nil {
			errs = append(errs, fmt.Errorf("output %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// SerialPort converts the serial section for host/serial
func (c *Config) SerialPort() *serial.Config {
	return &serial.Config{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeout,
	}
}

// OutputNames returns the configured output names in sorted order
func (c *Config) OutputNames() []string {
	names := make([]string, 0, len(c.Outputs))
	for name := range c.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Request returns the PWM request for a named output
func (c *Config) Request(name string) (core.PWMRequest, error) {
	out, ok := c.Outputs[name]
	if !ok {
		return core.PWMRequest{}, fmt.Errorf("unknown output: %s", name)
	}
	return out.Request(), nil
}

// Request converts the profile to a core request
func (o Output) Request() core.PWMRequest {
	return core.PWMRequest{
		Pin:       o.Pin,
		Frequency: float32(o.Frequency),
		DutyCycle: float32(o.DutyCycle),
	}
}
