// Package ps2 implements a polled driver for PS/2 keyboards.
package ps2

import (
	"io"
	"kfs/device"
	"kfs/device/input"
	"kfs/kernel"
	"kfs/kernel/cpu"
)

const (
	dataPort   uint16 = 0x60
	statusPort uint16 = 0x64

	// statusOutputFull is set while a byte is waiting in the data port.
	statusOutputFull uint8 = 1 << 0
)

var (
	portReadByteFn = cpu.PortReadByte

	keyboard Keyboard

	// DriverInfo is used by the hal package to probe for a keyboard.
	DriverInfo = device.DriverInfo{
		Order: device.DetectOrderNormal,
		Probe: probeForKeyboard,
	}
)

// Keyboard decodes scan code set 1 bytes read from the PS/2 controller into
// input.Key events. It tracks the shift and caps lock state.
type Keyboard struct {
	portReadByte func(port uint16) uint8

	leftShift, rightShift bool
	capsLock              bool
	extended              bool
}

// Poll implements input.Source. It consumes at most one byte from the
// controller and returns a key if that byte completed a key press.
func (kb *Keyboard) Poll() (input.Key, bool) {
	if kb.portReadByte(statusPort)&statusOutputFull == 0 {
		return input.Key{}, false
	}

	return kb.decode(kb.portReadByte(dataPort))
}

// decode updates the modifier state with scan code sc and returns the key it
// produced, if any.
func (kb *Keyboard) decode(sc uint8) (input.Key, bool) {
	if sc == scExtended {
		kb.extended = true
		return input.Key{}, false
	}

	// Extended keys are not mapped; keypad enter shares its make code
	// with enter so it is still reported.
	if kb.extended {
		kb.extended = false
		if sc != scEnter {
			return input.Key{}, false
		}
	}

	released := sc&breakBit != 0
	sc &^= breakBit

	switch sc {
	case scLeftShift:
		kb.leftShift = !released
		return input.Key{}, false
	case scRightShift:
		kb.rightShift = !released
		return input.Key{}, false
	}

	if released {
		return input.Key{}, false
	}

	switch sc {
	case scCapsLock:
		kb.capsLock = !kb.capsLock
		return input.Key{}, false
	case scBackspace:
		return input.Key{Kind: input.KeyBackspace}, true
	case scEnter:
		return input.Key{Kind: input.KeyEnter}, true
	}

	if int(sc) >= len(scanCodeMap) || scanCodeMap[sc] == 0 {
		return input.Key{}, false
	}

	shift := kb.leftShift || kb.rightShift
	ch := scanCodeMap[sc]
	if ch >= 'a' && ch <= 'z' && kb.capsLock {
		shift = !shift
	}
	if shift {
		ch = shiftedScanCodeMap[sc]
	}

	return input.Key{Kind: input.KeyChar, Char: ch}, true
}

// DriverName returns the name of this driver.
func (kb *Keyboard) DriverName() string {
	return "ps2_keyboard"
}

// DriverVersion returns the version of this driver.
func (kb *Keyboard) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit drains any bytes left in the controller output buffer by the
// firmware so that the first Poll sees a fresh key press.
func (kb *Keyboard) DriverInit(_ io.Writer) *kernel.Error {
	for i := 0; i < 16 && kb.portReadByte(statusPort)&statusOutputFull != 0; i++ {
		kb.portReadByte(dataPort)
	}

	return nil
}

func probeForKeyboard() device.Driver {
	keyboard = Keyboard{portReadByte: portReadByteFn}
	return &keyboard
}
