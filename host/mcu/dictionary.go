package mcu

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Dictionary is the parsed data dictionary of a connected board
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// ParseDictionary decodes the JSON served through identify
func ParseDictionary(data []byte) (*Dictionary, error) {
	dict := &Dictionary{}
	if err := json.Unmarshal(data, dict); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dictionary: %w", err)
	}
	return dict, nil
}

// lookupID finds an entry by bare name. Keys carry the argument format after
// the name ("config_pwm_gen pin=%c ..."), so the name must be followed by a
// space or end the key.
func lookupID(entries map[string]int, name string) (uint16, bool) {
	if id, ok := entries[name]; ok {
		return uint16(id), true
	}
	prefix := name + " "
	for key, id := range entries {
		if strings.HasPrefix(key, prefix) {
			return uint16(id), true
		}
	}
	return 0, false
}

// CommandID returns the ID of the named host -> board command
func (d *Dictionary) CommandID(name string) (uint16, error) {
	id, ok := lookupID(d.Commands, name)
	if !ok {
		return 0, fmt.Errorf("unknown command: %s", name)
	}
	return id, nil
}

// ResponseID returns the ID of the named board -> host response
func (d *Dictionary) ResponseID(name string) (uint16, error) {
	id, ok := lookupID(d.Responses, name)
	if !ok {
		return 0, fmt.Errorf("unknown response: %s", name)
	}
	return id, nil
}

// Constant returns a config constant such as PWM_MAX_TOP
func (d *Dictionary) Constant(name string) (string, bool) {
	v, ok := d.Config[name]
	return v, ok
}

// WriteSummary prints the dictionary with entries ordered by ID
func (d *Dictionary) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "Version: %s\n", d.Version)
	fmt.Fprintf(w, "Build: %s\n", d.BuildVersions)

	fmt.Fprintln(w, "\nConfig:")
	keys := make([]string, 0, len(d.Config))
	for k := range d.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", k, d.Config[k])
	}

	fmt.Fprintf(w, "\nCommands (%d):\n", len(d.Commands))
	writeByID(w, d.Commands)
	fmt.Fprintf(w, "\nResponses (%d):\n", len(d.Responses))
	writeByID(w, d.Responses)

	if len(d.Enumerations) > 0 {
		fmt.Fprintf(w, "\nEnumerations (%d):\n", len(d.Enumerations))
		names := make([]string, 0, len(d.Enumerations))
		for name := range d.Enumerations {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d values\n", name, len(d.Enumerations[name]))
		}
	}
}

func writeByID(w io.Writer, entries map[string]int) {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return entries[keys[i]] < entries[keys[j]] })
	for _, k := range keys {
		fmt.Fprintf(w, "  [%d] %s\n", entries[k], k)
	}
}
