//go:build nrf52840

package main

import (
	"device/nrf"

	"pwmgen/core"
)

// TIMER1 runs at 16 MHz / 2^4 = 1 MHz, matching core.ClockFreq.
// The TinyGo runtime keeps RTC1 for itself.
const timerPrescaler = 4

// InitClock starts the free-running microsecond counter
func InitClock() {
	nrf.TIMER1.TASKS_STOP.Set(1)
	nrf.TIMER1.MODE.Set(nrf.TIMER_MODE_MODE_Timer)
	nrf.TIMER1.BITMODE.Set(nrf.TIMER_BITMODE_BITMODE_32Bit)
	nrf.TIMER1.PRESCALER.Set(timerPrescaler)
	nrf.TIMER1.TASKS_CLEAR.Set(1)
	nrf.TIMER1.TASKS_START.Set(1)

	core.RegisterConstant("MCU", "nrf52840")
	core.RegisterConstant("CLOCK_FREQ", uint32(core.ClockFreq))
}

// GetHardwareTime captures and returns the counter
func GetHardwareTime() uint32 {
	nrf.TIMER1.TASKS_CAPTURE[0].Set(1)
	return nrf.TIMER1.CC[0].Get()
}

// UpdateSystemTime feeds the hardware counter to the core clock
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
