package console

// CRT controller ports and cursor location registers.
// See https://wiki.osdev.org/Text_Mode_Cursor
const (
	crtcIndexPort uint16 = 0x3d4
	crtcDataPort  uint16 = 0x3d5

	crtcCursorLocationHigh uint8 = 0x0e
	crtcCursorLocationLow  uint8 = 0x0f
)

// CRTCursor moves the hardware text cursor by programming the cursor location
// registers of the CRT controller. It keeps no state of its own.
type CRTCursor struct {
	portWriteByte func(port uint16, val uint8)
}

// SetPosition moves the cursor to column x of row y. Positions outside the
// grid are ignored.
func (c *CRTCursor) SetPosition(x, y uint32) {
	if x >= Width || y >= Height {
		return
	}

	pos := uint16(y*Width + x)

	c.portWriteByte(crtcIndexPort, crtcCursorLocationLow)
	c.portWriteByte(crtcDataPort, uint8(pos&0xff))
	c.portWriteByte(crtcIndexPort, crtcCursorLocationHigh)
	c.portWriteByte(crtcDataPort, uint8(pos>>8))
}
