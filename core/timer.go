package core

// ClockFreq is the rate of the tick counter reported as CLOCK_FREQ
const ClockFreq = 1000000

var (
	systemTicks uint32
	uptimeHigh  uint32 // counts wraps of the 32-bit tick counter
	lastTicks   uint32
)

// GetTime returns the current system time in ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime stores the latest hardware tick count, tracking 32-bit wraps
// so GetUptime stays monotonic
func SetTime(ticks uint32) {
	state := disableInterrupts()
	if ticks < lastTicks {
		uptimeHigh++
	}
	lastTicks = ticks
	setSystemTicks(ticks)
	restoreInterrupts(state)
}

// GetUptime returns the 64-bit tick count since boot
func GetUptime() uint64 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return uint64(uptimeHigh)<<32 | uint64(getSystemTicks())
}

// resetClock clears wrap tracking (tests)
func resetClock() {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	uptimeHigh = 0
	lastTicks = 0
	setSystemTicks(0)
}
