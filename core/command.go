package core

import "sync"

// UnknownCommandError is returned when a frame names an ID with no handler
type UnknownCommandError struct {
	ID uint16
}

func (e UnknownCommandError) Error() string {
	return "unknown command ID: " + itoa(int(e.ID))
}

// CommandHandler decodes its own arguments from the frame data and advances it
type CommandHandler func(data *[]byte) error

// Command is one entry of the data dictionary. Entries without a handler
// are responses (MCU -> host).
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "pin=%c freq_mhz=%u"
	Handler CommandHandler
}

// Signature returns "name format", the key used in the dictionary JSON
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// IsResponse reports whether the entry is an MCU -> host message
func (c *Command) IsResponse() bool {
	return c.Handler == nil
}

// CommandRegistry assigns sequential IDs to commands and responses
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command
	nameToID map[string]uint16
}

var globalRegistry = NewCommandRegistry()

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		nameToID: make(map[string]uint16),
	}
}

// Register adds a command and returns its ID. Registering the same name
// twice returns the existing ID.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}

	id := uint16(len(r.commands))
	r.commands = append(r.commands, &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	})
	r.nameToID[name] = id
	return id
}

// GetCommand retrieves a command by ID
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

// GetCommandByName retrieves a command by name
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered entries
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for cmdID
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.IsResponse() {
		return UnknownCommandError{ID: cmdID}
	}
	return cmd.Handler(data)
}

// GetCommandsAndResponses splits the registry into the two dictionary maps,
// keyed by signature
func (r *CommandRegistry) GetCommandsAndResponses() (map[string]int, map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make(map[string]int)
	responses := make(map[string]int)
	for _, cmd := range r.commands {
		if cmd.IsResponse() {
			responses[cmd.Signature()] = int(cmd.ID)
		} else {
			commands[cmd.Signature()] = int(cmd.ID)
		}
	}
	return commands, responses
}

// RegisterCommand registers a command with the global registry
func RegisterCommand(name string, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse registers a response message (MCU -> host)
func RegisterResponse(name string, format string) uint16 {
	return globalRegistry.Register(name, format, nil)
}

// DispatchCommand dispatches using the global registry
func DispatchCommand(cmdID uint16, data *[]byte) error {
	return globalRegistry.Dispatch(cmdID, data)
}

// GetGlobalRegistry returns the global command registry
func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}
