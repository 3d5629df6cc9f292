package core

import (
	"sort"
	"strconv"
	"sync"
)

// Dictionary is the data dictionary served to the host through identify.
// It lists constants, commands, responses and enumerations as JSON.
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]interface{}
	enumerations  map[string][]string
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cached        []byte
}

var globalDictionary = NewDictionary(globalRegistry)

// NewDictionary creates a dictionary that describes cmdReg
func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]interface{}),
		enumerations:  make(map[string][]string),
		commandReg:    cmdReg,
		version:       "pwmgen-0.1.0",
		buildVersions: "go-tinygo",
	}
}

// RegisterConstant registers a constant in the global dictionary
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// RegisterEnumeration registers an enumeration in the global dictionary
func RegisterEnumeration(name string, values []string) {
	globalDictionary.AddEnumeration(name, values)
}

// GetGlobalDictionary returns the global dictionary instance
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}

// AddConstant adds or replaces a constant
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = value
	d.cached = nil
}

// AddEnumeration adds an enumeration; empty values are skipped when rendered
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Keep a private copy, the caller's slice may be reused
	valuesCopy := make([]string, len(values))
	copy(valuesCopy, values)
	d.enumerations[name] = valuesCopy
	d.cached = nil
}

// SetVersion sets the firmware version string
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cached = nil
}

// BuildDictionary renders and caches the dictionary.
// Call it once after every command has been registered.
func (d *Dictionary) BuildDictionary() {
	// Fetch registry data before taking our own lock
	commands, responses := d.commandReg.GetCommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = d.renderLocked(commands, responses)
	DebugPrintln("[dict] built, " + itoa(len(d.cached)) + " bytes")
}

// Generate returns the dictionary JSON, rendering it if not cached
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cached
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}

	commands, responses := d.commandReg.GetCommandsAndResponses()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.renderLocked(commands, responses)
}

// GetChunk returns a copy of count bytes of the dictionary starting at offset.
// Past the end it returns an empty chunk, which tells the host it is done.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}

	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}

	// Copy so the transport never holds a slice of the cache
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}

// renderLocked builds the JSON by hand; caller must hold the lock
func (d *Dictionary) renderLocked(commands, responses map[string]int) []byte {
	out := make([]byte, 0, 1024)

	out = append(out, `{"version":`...)
	out = strconv.AppendQuote(out, d.version)
	out = append(out, `,"build_versions":`...)
	out = strconv.AppendQuote(out, d.buildVersions)

	out = append(out, `,"config":{`...)
	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendQuote(out, name)
		out = append(out, ':')
		out = strconv.AppendQuote(out, valueToString(d.constants[name]))
	}
	out = append(out, '}')

	out = append(out, `,"commands":`...)
	out = appendIDMap(out, commands)
	out = append(out, `,"responses":`...)
	out = appendIDMap(out, responses)

	if len(d.enumerations) > 0 {
		out = append(out, `,"enumerations":{`...)
		enumNames := make([]string, 0, len(d.enumerations))
		for name := range d.enumerations {
			enumNames = append(enumNames, name)
		}
		sort.Strings(enumNames)
		for i, name := range enumNames {
			if i > 0 {
				out = append(out, ',')
			}
			out = strconv.AppendQuote(out, name)
			out = append(out, ':')
			values := make(map[string]int)
			for idx, v := range d.enumerations[name] {
				if v != "" {
					values[v] = idx
				}
			}
			out = appendIDMap(out, values)
		}
		out = append(out, '}')
	}

	return append(out, '}')
}

// appendIDMap renders {"key":id,...} ordered by id
func appendIDMap(out []byte, m map[string]int) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return m[keys[i]] < m[keys[j]] })

	out = append(out, '{')
	for i, k := range keys {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendQuote(out, k)
		out = append(out, ':')
		out = strconv.AppendInt(out, int64(m[k]), 10)
	}
	return append(out, '}')
}
