// Package mcu talks to a pwmgen board over its serial link
package mcu

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"pwmgen/core"
	"pwmgen/host/serial"
	"pwmgen/protocol"
)

var ErrNotConnected = errors.New("not connected to MCU")

// identify and identify_response have fixed IDs so the dictionary can be
// fetched before anything else is known
const (
	identifyResponseID = 0
	identifyID         = 1

	identifyChunkSize = 40
	maxIdentifyChunks = 1000
)

// MCU is a connection to one pwmgen board
type MCU struct {
	transport *protocol.HostTransport
	port      io.ReadWriteCloser

	dictionary     *Dictionary
	dictionaryData []byte

	responseTimeout time.Duration
	logger          *slog.Logger

	connected bool
}

// NewMCU creates an unconnected MCU. A nil logger discards output.
func NewMCU(logger *slog.Logger) *MCU {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MCU{
		responseTimeout: time.Second,
		logger:          logger,
	}
}

// SetResponseTimeout sets how long to wait for each response
func (m *MCU) SetResponseTimeout(d time.Duration) {
	m.responseTimeout = d
}

// ConnectWithConfig opens the serial port described by cfg
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	m.logger.Info("serial port open", slog.String("device", cfg.Device), slog.Int("baud", cfg.Baud))

	m.Attach(port)

	// Give a freshly enumerated board time to start its main loop
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Attach runs the host transport on an already open port
func (m *MCU) Attach(port io.ReadWriteCloser) {
	m.port = port
	m.transport = protocol.NewHostTransport(port)
	m.transport.SetResponseHandler(m.handleResponse)
	m.connected = true
}

// Close stops the transport and closes the port
func (m *MCU) Close() error {
	if !m.connected {
		return nil
	}
	m.connected = false
	return m.transport.Close()
}

// IsConnected returns whether a port is attached
func (m *MCU) IsConnected() bool {
	return m.connected
}

// RetrieveDictionary downloads and parses the board's data dictionary
func (m *MCU) RetrieveDictionary() error {
	if !m.connected {
		return ErrNotConnected
	}

	var buf bytes.Buffer
	for i := 0; i < maxIdentifyChunks; i++ {
		offset := uint32(buf.Len())
		chunk, err := m.identify(offset, identifyChunkSize)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", offset, err)
		}
		buf.Write(chunk)
		if len(chunk) < identifyChunkSize {
			break
		}
	}
	m.logger.Debug("dictionary retrieved", slog.Int("bytes", buf.Len()))

	dict, err := ParseDictionary(buf.Bytes())
	if err != nil {
		return err
	}
	m.dictionaryData = buf.Bytes()
	m.dictionary = dict
	m.logger.Info("dictionary loaded",
		slog.String("version", dict.Version),
		slog.Int("commands", len(dict.Commands)),
		slog.Int("responses", len(dict.Responses)))
	return nil
}

func (m *MCU) identify(offset uint32, count uint8) ([]byte, error) {
	err := m.transport.SendCommand(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send identify: %w", err)
	}

	args, err := m.transport.WaitResponse(identifyResponseID, m.responseTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to receive identify_response: %w", err)
	}

	respOffset, err := protocol.DecodeVLQUint(&args)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response offset: %w", err)
	}
	if respOffset != offset {
		return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
	}

	data, err := protocol.DecodeVLQBytes(&args)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response data: %w", err)
	}
	return data, nil
}

func (m *MCU) handleResponse(cmdID uint16, data *[]byte) error {
	m.logger.Debug("response", slog.Int("id", int(cmdID)), slog.Int("bytes", len(*data)))
	return nil
}

// GetDictionary returns the parsed dictionary, nil before RetrieveDictionary
func (m *MCU) GetDictionary() *Dictionary {
	return m.dictionary
}

// GetDictionaryRaw returns the dictionary JSON as received
func (m *MCU) GetDictionaryRaw() []byte {
	return m.dictionaryData
}

func (m *MCU) ready() error {
	if !m.connected {
		return ErrNotConnected
	}
	if m.dictionary == nil {
		return errors.New("dictionary not loaded")
	}
	return nil
}

// SendCommand sends a command by name and waits for its ACK
func (m *MCU) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	if err := m.ready(); err != nil {
		return err
	}
	cmdID, err := m.dictionary.CommandID(name)
	if err != nil {
		return err
	}
	return m.transport.SendCommand(cmdID, args)
}

// Query sends command name and returns the arguments of the named response
func (m *MCU) Query(name string, args func(output protocol.OutputBuffer), response string) ([]byte, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	respID, err := m.dictionary.ResponseID(response)
	if err != nil {
		return nil, err
	}
	if err := m.SendCommand(name, args); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", name, err)
	}
	data, err := m.transport.WaitResponse(respID, m.responseTimeout)
	if err != nil {
		return nil, fmt.Errorf("no %s response: %w", response, err)
	}
	return data, nil
}

// ConfigurePWM asks the board to generate req. The returned state is the
// board's report; a non-zero status is returned as an error that matches
// the core.Err* sentinels.
func (m *MCU) ConfigurePWM(req core.PWMRequest) (core.PWMState, error) {
	data, err := m.Query("config_pwm_gen", func(output protocol.OutputBuffer) {
		core.EncodePWMRequest(output, req)
	}, "pwm_gen_state")
	if err != nil {
		return core.PWMState{}, err
	}

	state, err := core.DecodePWMState(&data)
	if err != nil {
		return core.PWMState{}, fmt.Errorf("failed to decode pwm_gen_state: %w", err)
	}
	if state.Pin != req.Pin {
		return state, fmt.Errorf("pwm_gen_state for pin %d, expected %d", state.Pin, req.Pin)
	}

	m.logger.Debug("pwm configured",
		slog.Int("pin", int(state.Pin)),
		slog.Int("status", int(state.Status)),
		slog.Int("shift", int(state.Resolution.Shift)),
		slog.Int("top", int(state.Resolution.Top)),
		slog.Int("duty", int(state.Resolution.Duty)))

	if err := state.Err(); err != nil {
		return state, fmt.Errorf("pin %d: %w", req.Pin, err)
	}
	return state, nil
}

// GetClock returns the board's 32-bit tick counter
func (m *MCU) GetClock() (uint32, error) {
	data, err := m.Query("get_clock", nil, "clock")
	if err != nil {
		return 0, err
	}
	return protocol.DecodeVLQUint(&data)
}

// GetUptime returns the board's 64-bit tick count since boot
func (m *MCU) GetUptime() (uint64, error) {
	data, err := m.Query("get_uptime", nil, "uptime")
	if err != nil {
		return 0, err
	}
	high, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return 0, err
	}
	low, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return 0, err
	}
	return uint64(high)<<32 | uint64(low), nil
}

// GetConfig returns whether the board holds a finalized config and its CRC
func (m *MCU) GetConfig() (bool, uint32, error) {
	data, err := m.Query("get_config", nil, "config")
	if err != nil {
		return false, 0, err
	}
	isConfig, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return false, 0, err
	}
	crc, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return false, 0, err
	}
	return isConfig != 0, crc, nil
}
