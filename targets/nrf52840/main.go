//go:build nrf52840

package main

import (
	"machine"
	"time"

	"device/arm"
	"device/nrf"

	"pwmgen/core"
	"pwmgen/protocol"
	"pwmgen/targets/nrf52840/pins"
)

const firmwareVersion = "pwmgen-0.1.0-nrf52840"

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	msgerrors uint32

	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	InitUSB()
	InitClock()

	// Report and debug lines go to the UART and, when fitted, the LCD
	var uartWriter, lcdWriter core.DebugWriter
	if uart := newUARTSink(machine.UART0); uart != nil {
		uartWriter = uart.Println
	}
	machine.I2C0.Configure(machine.I2CConfig{Frequency: 100 * machine.KHz})
	if lcd := newLCDSink(machine.I2C0); lcd != nil {
		lcdWriter = lcd.Println
	}
	report := core.MultiDebugWriter(uartWriter, lcdWriter)
	core.SetDebugWriter(report)
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()

	// identify_response and identify must be registered first
	core.InitCoreCommands()

	generator := core.NewPWMGenerator(newNRFPWM(nrf.PWM0), report)
	core.InitPWMCommands(generator)
	core.RegisterEnumeration("pin", pins.Names())

	dict := core.GetGlobalDictionary()
	dict.SetVersion(firmwareVersion)
	dict.BuildDictionary()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, handleCommand)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
		core.ResetFirmwareState()
		core.DebugAsync("host reconnected")
	})
	// The host waits for the ACK before reading responses
	transport.SetFlushCallback(writeUSB)
	core.SetGlobalTransport(transport)

	core.SetResetHandler(func() {
		arm.SystemReset()
	})

	go usbReaderLoop()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			UpdateSystemTime()

			if !inputBuffer.IsEmpty() {
				transport.Receive(inputBuffer)
			}

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
			}

			// After the ACK has gone out
			core.CheckPendingReset()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		// Leave bytes in the USB buffer until the main loop drains ours
		if inputBuffer.Free() == 0 {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(time.Millisecond)
				continue
			}

			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				core.ResetFirmwareState()
				consecutiveWriteFailures = 0
			}

			inputBuffer.Write([]byte{data})
		}
		time.Sleep(100 * time.Microsecond)
	}
}

func handleCommand(cmdID uint16, data *[]byte) error {
	return core.DispatchCommand(cmdID, data)
}

// writeUSB drains the output buffer. Repeated failures mark the link as
// disconnected so the reader resets state on the next byte.
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
