package console

import "io"

// Color is an index into the 16-color text-mode palette.
type Color uint8

// The text-mode palette. Backgrounds are limited to the first 8 entries as
// bit 7 of the attribute byte is the blink bit.
const (
	Black Color = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGrey
	DarkGrey
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	LightBrown
	White
)

const (
	// Width is the number of character columns.
	Width = 80

	// Height is the number of character rows.
	Height = 25

	// CellCount is the number of 16-bit cells in display memory.
	CellCount = Width * Height

	// DefaultFramebufferAddr is the physical address of the color text
	// framebuffer.
	DefaultFramebufferAddr uintptr = 0xb8000
)

// Cursor is implemented by objects that can move the hardware text cursor.
// Implementations must ignore positions outside the Width x Height grid.
type Cursor interface {
	SetPosition(x, y uint32)
}

// Device is implemented by text consoles that own a cursor position and an
// active color attribute. Writes interpret line feeds and backspaces so a
// Device can serve as the kernel log sink.
type Device interface {
	io.Writer

	// Init resets the position to the top-left cell and the colors to
	// white on black.
	Init()

	// WriteChar writes ch at the current position and advances it.
	WriteChar(ch byte)

	// DeleteChar moves the position back by one cell and blanks it.
	DeleteChar()

	// NewLine moves the position to the first column of the next row.
	NewLine()

	// ClearScreen blanks every cell without moving the position.
	ClearScreen()

	// SetForeground and SetBackground update one half of the active
	// color attribute.
	SetForeground(Color)
	SetBackground(Color)
}
