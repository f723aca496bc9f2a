package tty

import "kfs/device/input"

// Display is implemented by the text console that a terminal echoes input
// to.
type Display interface {
	WriteChar(ch byte)
	DeleteChar()
	NewLine()
}

// Device is implemented by objects that can be used as a terminal device.
type Device interface {
	// AttachTo connects the terminal to the display it echoes input to.
	AttachTo(Display)

	// HandleKey processes a single key press.
	HandleKey(input.Key)

	// Flush writes any buffered output to the attached display.
	Flush()
}
