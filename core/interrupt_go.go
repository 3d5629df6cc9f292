//go:build !tinygo

package core

import "sync"

// Off target the clock is guarded by a mutex instead of masking interrupts
var clockMu sync.Mutex

type irqState struct{}

func disableInterrupts() irqState {
	clockMu.Lock()
	return irqState{}
}

func restoreInterrupts(irqState) {
	clockMu.Unlock()
}
