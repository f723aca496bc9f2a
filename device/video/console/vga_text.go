package console

import (
	"io"
	"kfs/device"
	"kfs/kernel"
	"kfs/kernel/hal/multiboot"
	"kfs/kernel/kfmt"
	"unsafe"
)

var (
	// ErrOutOfBounds is returned by WriteCellAt for cell addresses outside
	// the grid. Cursor movement never produces such an address so callers
	// are free to discard it.
	ErrOutOfBounds = &kernel.Error{Module: "vga_text_console", Message: "cell address out of bounds"}

	errFramebufferTooSmall = &kernel.Error{Module: "vga_text_console", Message: "framebuffer smaller than 80x25 cells"}
)

// VgaTextConsole drives the 80x25 color text mode. It owns the current
// position and color attribute and keeps the hardware cursor in sync with the
// position after every move.
//
// Each cell in the framebuffer is a 16-bit value: the character code in the
// low byte and the attribute in the high byte (foreground in bits 0-3,
// background in bits 4-6). Bit 7 (blink) is never set.
//
// There is no scrollback: advancing past the last cell wraps around to the
// top-left cell and subsequent writes overwrite whatever is there.
type VgaTextConsole struct {
	fb     []uint16
	cursor Cursor

	attr uint8
	x, y uint32
}

// NewVgaTextConsole creates a console that renders to fb and reports position
// changes to cursor. The console expects to be the only writer to both.
func NewVgaTextConsole(fb []uint16, cursor Cursor) *VgaTextConsole {
	if cursor == nil {
		cursor = nopCursor{}
	}

	return &VgaTextConsole{
		fb:     fb,
		cursor: cursor,
	}
}

// MapFramebuffer overlays a CellCount-sized slice on top of identity-mapped
// display memory at physAddr.
func MapFramebuffer(physAddr uintptr) []uint16 {
	return unsafe.Slice((*uint16)(unsafe.Pointer(physAddr)), CellCount)
}

// Init moves the position to (0, 0), selects white on black and syncs the
// hardware cursor.
func (cons *VgaTextConsole) Init() {
	cons.x, cons.y = 0, 0
	cons.attr = 0
	cons.SetForeground(White)
	cons.SetBackground(Black)
	cons.cursor.SetPosition(0, 0)
}

// Position returns the current column and row.
func (cons *VgaTextConsole) Position() (x, y uint32) {
	return cons.x, cons.y
}

// Attr returns the active attribute byte.
func (cons *VgaTextConsole) Attr() uint8 {
	return cons.attr
}

// SetForeground replaces the low nibble of the active attribute.
func (cons *VgaTextConsole) SetForeground(fg Color) {
	cons.attr = (cons.attr & 0xF0) | (uint8(fg) & 0x0F)
}

// SetBackground replaces the high nibble of the active attribute. Only the
// low 3 bits of bg are used so the blink bit stays clear.
func (cons *VgaTextConsole) SetBackground(bg Color) {
	cons.attr = (cons.attr & 0x0F) | (uint8(bg)&0x07)<<4
}

// WriteChar writes ch at the current position using the active attribute and
// advances the position by one cell.
func (cons *VgaTextConsole) WriteChar(ch byte) {
	_ = cons.WriteCellAt(cons.y, cons.x, ch)
	cons.advance()
}

// DeleteChar moves the position back by one cell and blanks the cell at the
// new position.
func (cons *VgaTextConsole) DeleteChar() {
	cons.retreat()
	_ = cons.WriteCellAt(cons.y, cons.x, 0)
}

// WriteCellAt writes ch with the active attribute to the cell at (row, col).
// It returns ErrOutOfBounds without touching the framebuffer if the address
// falls outside the grid.
func (cons *VgaTextConsole) WriteCellAt(row, col uint32, ch byte) *kernel.Error {
	if row >= Height || col >= Width {
		return ErrOutOfBounds
	}

	index := row*Width + col
	if index >= uint32(len(cons.fb)) {
		return ErrOutOfBounds
	}

	cons.fb[index] = uint16(cons.attr)<<8 | uint16(ch)
	return nil
}

// CellAt returns the character and attribute stored at (row, col). Cells
// outside the grid read as zero.
func (cons *VgaTextConsole) CellAt(row, col uint32) (ch byte, attr uint8) {
	if row >= Height || col >= Width || row*Width+col >= uint32(len(cons.fb)) {
		return 0, 0
	}

	cell := cons.fb[row*Width+col]
	return byte(cell), byte(cell >> 8)
}

// WriteBytes writes the bytes in p one at a time via WriteChar. A zero byte
// terminates the output even if more bytes follow it. WriteBytes returns the
// number of characters written.
func (cons *VgaTextConsole) WriteBytes(p []byte) int {
	for i, ch := range p {
		if ch == 0 {
			return i
		}
		cons.WriteChar(ch)
	}

	return len(p)
}

// Write implements io.Writer so the console can act as the kfmt output sink.
// Line feeds and backspaces are mapped to NewLine and DeleteChar; all other
// bytes are written as-is. Write never fails.
func (cons *VgaTextConsole) Write(p []byte) (int, error) {
	for _, ch := range p {
		switch ch {
		case '\n':
			cons.NewLine()
		case '\b':
			cons.DeleteChar()
		default:
			cons.WriteChar(ch)
		}
	}

	return len(p), nil
}

// ClearScreen zeroes every cell. The current position is left unchanged.
func (cons *VgaTextConsole) ClearScreen() {
	for row := uint32(0); row < Height; row++ {
		for col := uint32(0); col < Width; col++ {
			_ = cons.WriteCellAt(row, col, 0)
		}
	}
}

// NewLine advances the position to column 0 of the next row, wrapping to the
// top row after the last one.
func (cons *VgaTextConsole) NewLine() {
	for row := cons.y; row == cons.y; {
		cons.advance()
	}
}

// advance moves the position forward by one cell, wrapping to the next row
// at the end of a row and to the top row at the end of the screen.
func (cons *VgaTextConsole) advance() {
	cons.x++
	if cons.x >= Width {
		cons.x = 0
		cons.y++
	}
	if cons.y >= Height {
		cons.y = 0
	}

	cons.cursor.SetPosition(cons.x, cons.y)
}

// retreat moves the position back by one cell. Moving back from column 0
// lands on the last non-blank cell of the previous row so that backspacing
// over a line break resumes after the text on that row. retreat is a no-op
// at (0, 0).
func (cons *VgaTextConsole) retreat() {
	switch {
	case cons.x == 0 && cons.y == 0:
		return
	case cons.x == 0:
		cons.y--
		cons.x = cons.lastUsedColumn(cons.y)
	default:
		cons.x--
	}

	cons.cursor.SetPosition(cons.x, cons.y)
}

// lastUsedColumn returns the rightmost column of row whose character byte is
// non-zero, or 0 if the row is blank.
func (cons *VgaTextConsole) lastUsedColumn(row uint32) uint32 {
	for col := uint32(Width); col > 0; col-- {
		if ch, _ := cons.CellAt(row, col-1); ch != 0 {
			return col - 1
		}
	}

	return 0
}

// DriverName returns the name of this driver.
func (cons *VgaTextConsole) DriverName() string {
	return "vga_text_console"
}

// DriverVersion returns the version of this driver.
func (cons *VgaTextConsole) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit initializes this driver.
func (cons *VgaTextConsole) DriverInit(w io.Writer) *kernel.Error {
	if len(cons.fb) < CellCount {
		return errFramebufferTooSmall
	}

	cons.Init()
	kfmt.Fprintf(w, "%dx%d text console at 0x%x\n", Width, Height, uintptr(unsafe.Pointer(&cons.fb[0])))

	return nil
}

type nopCursor struct{}

func (nopCursor) SetPosition(_, _ uint32) {}

// probeForVgaTextConsole checks whether the boot loader left the display in
// 80x25 text mode. The console and cursor live in package variables as the
// probe runs before an allocator is available.
func probeForVgaTextConsole() device.Driver {
	fbAddr := DefaultFramebufferAddr
	if fbInfo := getFramebufferInfoFn(); fbInfo != nil {
		if fbInfo.Type != multiboot.FramebufferTypeEGA || fbInfo.Width != Width || fbInfo.Height != Height {
			return nil
		}
		fbAddr = uintptr(fbInfo.PhysAddr)
	}

	crtCursor = CRTCursor{portWriteByte: portWriteByteFn}
	vgaConsole = VgaTextConsole{
		fb:     mapFramebufferFn(fbAddr),
		cursor: &crtCursor,
	}

	return &vgaConsole
}
