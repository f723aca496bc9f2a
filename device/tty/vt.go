package tty

import (
	"io"
	"kfs/device"
	"kfs/device/input"
	"kfs/kernel"
)

// lineBufferSize bounds the number of characters that can be pending between
// two Flush calls. It matches the console width.
const lineBufferSize = 80

// VT implements a line-echoing terminal on top of a Display. Typed characters
// are buffered and written to the display on Flush; backspace and enter are
// applied in order with respect to the buffered characters.
type VT struct {
	display Display

	pending    [lineBufferSize]byte
	pendingLen int
}

// AttachTo connects the terminal to a display. Any pending output is
// discarded.
func (t *VT) AttachTo(display Display) {
	t.display = display
	t.pendingLen = 0
}

// HandleKey implements Device.
func (t *VT) HandleKey(key input.Key) {
	if t.display == nil {
		return
	}

	switch key.Kind {
	case input.KeyChar:
		if t.pendingLen == len(t.pending) {
			t.Flush()
		}
		t.pending[t.pendingLen] = key.Char
		t.pendingLen++
	case input.KeyBackspace:
		if t.pendingLen > 0 {
			t.pendingLen--
			return
		}
		t.display.DeleteChar()
	case input.KeyEnter:
		t.Flush()
		t.display.NewLine()
	}
}

// Flush writes the buffered characters to the display.
func (t *VT) Flush() {
	if t.display == nil {
		return
	}

	for i := 0; i < t.pendingLen; i++ {
		t.display.WriteChar(t.pending[i])
	}
	t.pendingLen = 0
}

// DriverName returns the name of this driver.
func (t *VT) DriverName() string {
	return "vt"
}

// DriverVersion returns the version of this driver.
func (t *VT) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit initializes this driver.
func (t *VT) DriverInit(_ io.Writer) *kernel.Error { return nil }

var (
	vt VT

	// DriverInfo is used by the hal package to set up the terminal.
	DriverInfo = device.DriverInfo{
		Order: device.DetectOrderLast,
		Probe: probeForVT,
	}
)

func probeForVT() device.Driver {
	vt = VT{}
	return &vt
}
