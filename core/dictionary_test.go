package core

import (
	"bytes"
	"encoding/json"
	"testing"
)

type dictionaryJSON struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations"`
}

func newTestDictionary() *Dictionary {
	registry := NewCommandRegistry()
	registry.Register("identify_response", "offset=%u data=%*s", nil)
	registry.Register("identify", "offset=%u count=%c", func(data *[]byte) error { return nil })
	registry.Register("config_pwm_gen", "pin=%c freq_mhz=%u duty_ppm=%i", func(data *[]byte) error { return nil })
	registry.Register("pwm_gen_state", "pin=%c status=%i shift=%c top=%hu duty=%hu", nil)

	d := NewDictionary(registry)
	d.AddConstant("MCU", "nrf52840")
	d.AddConstant("PWM_MAX_TOP", uint32(PWMMaxTop))
	d.AddConstant("PWM_BASE_CLOCK", uint32(PWMBaseClock))
	d.AddEnumeration("pin", []string{"P0.00", "", "P0.02"})
	return d
}

func TestDictionaryGenerate(t *testing.T) {
	d := newTestDictionary()

	var dict dictionaryJSON
	if err := json.Unmarshal(d.Generate(), &dict); err != nil {
		t.Fatalf("Dictionary is not valid JSON: %v\n%s", err, d.Generate())
	}

	if dict.Version != "pwmgen-0.1.0" {
		t.Errorf("Unexpected version %q", dict.Version)
	}
	if dict.Config["MCU"] != "nrf52840" || dict.Config["PWM_MAX_TOP"] != "32767" || dict.Config["PWM_BASE_CLOCK"] != "16000000" {
		t.Errorf("Unexpected config section %v", dict.Config)
	}
	if dict.Commands["config_pwm_gen pin=%c freq_mhz=%u duty_ppm=%i"] != 2 {
		t.Errorf("config_pwm_gen missing or misnumbered: %v", dict.Commands)
	}
	if id, ok := dict.Responses["identify_response offset=%u data=%*s"]; !ok || id != 0 {
		t.Errorf("identify_response must be ID 0: %v", dict.Responses)
	}
	if _, ok := dict.Responses["pwm_gen_state pin=%c status=%i shift=%c top=%hu duty=%hu"]; !ok {
		t.Errorf("pwm_gen_state missing: %v", dict.Responses)
	}

	pins := dict.Enumerations["pin"]
	if len(pins) != 2 || pins["P0.00"] != 0 || pins["P0.02"] != 2 {
		t.Errorf("Unexpected pin enumeration %v", pins)
	}
}

func TestDictionaryChunks(t *testing.T) {
	d := newTestDictionary()
	d.BuildDictionary()
	full := d.Generate()

	var joined []byte
	for offset := uint32(0); ; offset += 40 {
		chunk := d.GetChunk(offset, 40)
		if len(chunk) == 0 {
			break
		}
		joined = append(joined, chunk...)
	}

	if !bytes.Equal(joined, full) {
		t.Errorf("Reassembled chunks differ from the dictionary")
	}

	// Chunks are copies
	chunk := d.GetChunk(0, 1)
	chunk[0] = 'X'
	if d.Generate()[0] != '{' {
		t.Error("Modifying a chunk changed the cached dictionary")
	}
}

func TestDictionaryCacheInvalidation(t *testing.T) {
	d := newTestDictionary()
	d.BuildDictionary()

	d.AddConstant("PWM_MIN_TOP", uint32(PWMMinTop))
	d.SetVersion("pwmgen-test")

	var dict dictionaryJSON
	if err := json.Unmarshal(d.Generate(), &dict); err != nil {
		t.Fatalf("Dictionary is not valid JSON: %v", err)
	}
	if dict.Config["PWM_MIN_TOP"] != "255" {
		t.Errorf("Constant added after build is missing: %v", dict.Config)
	}
	if dict.Version != "pwmgen-test" {
		t.Errorf("Version not updated: %q", dict.Version)
	}
}
