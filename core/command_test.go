package core

import (
	"errors"
	"testing"

	"pwmgen/protocol"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	// Register a command
	var called bool
	handler := func(data *[]byte) error {
		called = true
		return nil
	}

	id := registry.Register("test_command", "arg=%u", handler)

	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	// Verify command can be retrieved
	cmd, ok := registry.GetCommand(id)
	if !ok {
		t.Error("Failed to retrieve registered command")
	}

	if cmd.Name != "test_command" {
		t.Errorf("Expected command name 'test_command', got '%s'", cmd.Name)
	}

	// Test dispatch
	var data []byte
	err := registry.Dispatch(id, &data)
	if err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}

	if !called {
		t.Error("Command handler was not called")
	}

	// Test unknown command
	err = registry.Dispatch(999, &data)
	if err == nil {
		t.Error("Expected error for unknown command ID")
	}
}

func TestCommandRegistryMultiple(t *testing.T) {
	registry := NewCommandRegistry()

	id1 := registry.Register("command1", "arg1=%u", func(data *[]byte) error { return nil })
	id2 := registry.Register("command2", "arg2=%u", func(data *[]byte) error { return nil })
	id3 := registry.Register("command3", "arg3=%u", func(data *[]byte) error { return nil })

	if id1 != 0 || id2 != 1 || id3 != 2 {
		t.Errorf("Command IDs not sequential: %d, %d, %d", id1, id2, id3)
	}

	// Verify all commands exist
	for i := uint16(0); i < 3; i++ {
		if _, ok := registry.GetCommand(i); !ok {
			t.Errorf("Command %d not found", i)
		}
	}
}

func TestCommandRegistrySplit(t *testing.T) {
	registry := NewCommandRegistry()

	registry.Register("identify_response", "offset=%u data=%*s", nil)
	registry.Register("get_uptime", "", func(data *[]byte) error { return nil })
	registry.Register("config_pwm_gen", "pin=%c freq_mhz=%u duty_ppm=%i", func(data *[]byte) error { return nil })

	commands, responses := registry.GetCommandsAndResponses()

	if id, ok := responses["identify_response offset=%u data=%*s"]; !ok || id != 0 {
		t.Errorf("identify_response missing from responses: %v", responses)
	}
	if _, ok := commands["get_uptime"]; !ok {
		t.Errorf("Command without arguments should be keyed by its bare name: %v", commands)
	}
	if id := commands["config_pwm_gen pin=%c freq_mhz=%u duty_ppm=%i"]; id != 2 {
		t.Errorf("Expected config_pwm_gen to have ID 2, got %d", id)
	}
	if len(commands) != 2 || len(responses) != 1 {
		t.Errorf("Expected 2 commands and 1 response, got %d and %d", len(commands), len(responses))
	}
}

func TestCommandRegistryDuplicateName(t *testing.T) {
	registry := NewCommandRegistry()

	first := registry.Register("dup", "a=%u", func(data *[]byte) error { return nil })
	second := registry.Register("dup", "b=%u", func(data *[]byte) error { return nil })

	if first != second {
		t.Errorf("Duplicate registration got a new ID: %d vs %d", first, second)
	}
	if registry.Count() != 1 {
		t.Errorf("Expected 1 entry, got %d", registry.Count())
	}
}

func TestDispatchResponseRejected(t *testing.T) {
	registry := NewCommandRegistry()
	id := registry.Register("clock", "clock=%u", nil)

	var data []byte
	err := registry.Dispatch(id, &data)

	var unknown UnknownCommandError
	if !errors.As(err, &unknown) || unknown.ID != id {
		t.Errorf("Expected UnknownCommandError for a response ID, got %v", err)
	}
}

func TestCommandWithArguments(t *testing.T) {
	registry := NewCommandRegistry()

	var receivedValue uint32

	handler := func(data *[]byte) error {
		val, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		receivedValue = val
		return nil
	}

	id := registry.Register("test_args", "value=%u", handler)

	// Create test data
	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 12345)
	data := output.Result()

	err := registry.Dispatch(id, &data)
	if err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}

	if receivedValue != 12345 {
		t.Errorf("Expected value 12345, got %d", receivedValue)
	}
}

func TestGlobalRegistry(t *testing.T) {
	id := RegisterCommand("global_test", "arg=%u", func(data *[]byte) error {
		return nil
	})

	cmd, ok := GetGlobalRegistry().GetCommandByName("global_test")
	if !ok || cmd.ID != id {
		t.Fatalf("global_test not found in global registry")
	}
	if cmd.Signature() != "global_test arg=%u" {
		t.Errorf("Unexpected signature %q", cmd.Signature())
	}

	var data []byte
	if err := DispatchCommand(id, &data); err != nil {
		t.Errorf("DispatchCommand failed: %v", err)
	}
}
