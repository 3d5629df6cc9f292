//go:build nrf52840

package main

import (
	"errors"
	"machine"
	"runtime/volatile"
	"unsafe"

	"device/nrf"

	"pwmgen/targets/nrf52840/pins"
)

const (
	pwmChannels  = 4
	polarityRise = 0x8000 // compare value bit 15: output high until the match
	compareMask  = 0x7FFF
)

var (
	errNoFreeChannel = errors.New("all pwm channels in use")
	errNoPins        = errors.New("no pin routed to the pwm instance")
	errInvalidPin    = errors.New("pin does not exist on the nrf52840")
)

// nrfPWM drives one nRF52840 PWM instance. All four channels share the
// instance's PRESCALER and COUNTERTOP.
type nrfPWM struct {
	regs *nrf.PWM_Type

	// EasyDMA reads one compare value per channel from here
	channelValues [pwmChannels]volatile.Register16
	pins          [pwmChannels]int16 // -1 when free
}

func newNRFPWM(regs *nrf.PWM_Type) *nrfPWM {
	p := &nrfPWM{regs: regs}
	for ch := range p.pins {
		p.pins[ch] = -1
	}
	return p
}

func (p *nrfPWM) channel(pin uint8) (int, bool) {
	for ch, routed := range p.pins {
		if routed == int16(pin) {
			return ch, true
		}
	}
	return 0, false
}

// AddPin routes pin to a free channel. Adding a routed pin is a no-op.
func (p *nrfPWM) AddPin(pin uint8) error {
	if !pins.Valid(pin) {
		return errInvalidPin
	}
	if _, ok := p.channel(pin); ok {
		return nil
	}
	for ch, routed := range p.pins {
		if routed >= 0 {
			continue
		}
		machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.regs.PSEL.OUT[ch].Set(uint32(pin))
		p.channelValues[ch].Set(polarityRise)
		p.pins[ch] = int16(pin)
		return nil
	}
	return errNoFreeChannel
}

func (p *nrfPWM) SetMaxValue(top uint16) {
	p.regs.COUNTERTOP.Set(uint32(top) & compareMask)
}

// SetClockDiv takes the exponent; PRESCALER DIV_1..DIV_128 encode as 0..7
func (p *nrfPWM) SetClockDiv(shift uint8) {
	p.regs.PRESCALER.Set(uint32(shift))
}

func (p *nrfPWM) WritePin(pin uint8, value uint16, invert bool) {
	ch, ok := p.channel(pin)
	if !ok {
		return
	}
	v := value & compareMask
	if !invert {
		v |= polarityRise
	}
	p.channelValues[ch].Set(v)
}

// Begin enables the instance and plays the compare values as a one-entry
// sequence; the last value is held once the sequence ends.
func (p *nrfPWM) Begin() error {
	routed := false
	for _, pin := range p.pins {
		if pin >= 0 {
			routed = true
			break
		}
	}
	if !routed {
		return errNoPins
	}

	p.regs.ENABLE.Set(nrf.PWM_ENABLE_ENABLE_Enabled << nrf.PWM_ENABLE_ENABLE_Pos)
	p.regs.MODE.Set(nrf.PWM_MODE_UPDOWN_Up << nrf.PWM_MODE_UPDOWN_Pos)
	p.regs.DECODER.Set(nrf.PWM_DECODER_LOAD_Individual<<nrf.PWM_DECODER_LOAD_Pos |
		nrf.PWM_DECODER_MODE_RefreshCount<<nrf.PWM_DECODER_MODE_Pos)
	p.regs.LOOP.Set(0)

	p.regs.SEQ[0].PTR.Set(uint32(uintptr(unsafe.Pointer(&p.channelValues[0]))))
	p.regs.SEQ[0].CNT.Set(pwmChannels)
	p.regs.SEQ[0].REFRESH.Set(0)
	p.regs.SEQ[0].ENDDELAY.Set(0)

	// Also latches a new COUNTERTOP when the instance was already running
	p.regs.TASKS_SEQSTART[0].Set(1)
	return nil
}
