package console

import (
	"io"
	"kfs/device"
	"kfs/kernel/hal/multiboot"
	"kfs/kernel/kfmt"
	"testing"
)

type mockCursor struct {
	x, y  uint32
	calls int
}

func (c *mockCursor) SetPosition(x, y uint32) {
	c.x, c.y = x, y
	c.calls++
}

func newTestConsole() (*VgaTextConsole, []uint16, *mockCursor) {
	fb := make([]uint16, CellCount)
	cur := &mockCursor{}
	cons := NewVgaTextConsole(fb, cur)
	cons.Init()
	return cons, fb, cur
}

func TestVgaTextInit(t *testing.T) {
	cons, _, cur := newTestConsole()
	cons.x, cons.y, cons.attr = 12, 7, 0x42
	cur.x, cur.y = 12, 7

	cons.Init()

	if x, y := cons.Position(); x != 0 || y != 0 {
		t.Errorf("expected Init() to reset the position to (0, 0); got (%d, %d)", x, y)
	}

	if exp, got := uint8(White)|uint8(Black)<<4, cons.Attr(); got != exp {
		t.Errorf("expected Init() to set attribute 0x%x; got 0x%x", exp, got)
	}

	if cur.x != 0 || cur.y != 0 {
		t.Errorf("expected Init() to move the hardware cursor to (0, 0); got (%d, %d)", cur.x, cur.y)
	}
}

func TestVgaTextWriteCellAt(t *testing.T) {
	cons, fb, _ := newTestConsole()

	t.Run("read back", func(t *testing.T) {
		colors := []struct {
			fg, bg Color
		}{
			{White, Black},
			{LightGreen, Blue},
			{Red, LightGrey},
		}

		for specIndex, spec := range colors {
			cons.SetForeground(spec.fg)
			cons.SetBackground(spec.bg)
			expAttr := uint8(spec.fg) | uint8(spec.bg)<<4

			for row := uint32(0); row < Height; row++ {
				for col := uint32(0); col < Width; col++ {
					ch := byte('A' + (row+col)%26)
					if err := cons.WriteCellAt(row, col, ch); err != nil {
						t.Fatalf("[spec %d] unexpected error writing (%d, %d): %v", specIndex, row, col, err)
					}

					if gotCh, gotAttr := cons.CellAt(row, col); gotCh != ch || gotAttr != expAttr {
						t.Fatalf("[spec %d] expected cell (%d, %d) to contain (%q, 0x%x); got (%q, 0x%x)", specIndex, row, col, ch, expAttr, gotCh, gotAttr)
					}

					if exp, got := uint16(expAttr)<<8|uint16(ch), fb[row*Width+col]; got != exp {
						t.Fatalf("[spec %d] expected fb[%d] to be 0x%x; got 0x%x", specIndex, row*Width+col, exp, got)
					}
				}
			}
		}
	})

	t.Run("out of bounds", func(t *testing.T) {
		specs := []struct {
			row, col uint32
		}{
			{Height, 0},
			{0, Width},
			{Height, Width},
			{100, 100},
			{^uint32(0), 0},
		}

		for i := range fb {
			fb[i] = 0xDEAD
		}

		for specIndex, spec := range specs {
			if err := cons.WriteCellAt(spec.row, spec.col, '!'); err != ErrOutOfBounds {
				t.Errorf("[spec %d] expected ErrOutOfBounds for (%d, %d); got %v", specIndex, spec.row, spec.col, err)
			}
		}

		for i, cell := range fb {
			if cell != 0xDEAD {
				t.Fatalf("expected out of bounds writes not to modify the framebuffer; fb[%d] = 0x%x", i, cell)
			}
		}
	})

	t.Run("short framebuffer", func(t *testing.T) {
		short := NewVgaTextConsole(make([]uint16, Width), nil)
		if err := short.WriteCellAt(1, 0, '!'); err != ErrOutOfBounds {
			t.Fatalf("expected ErrOutOfBounds when writing past the end of the framebuffer; got %v", err)
		}
		if err := short.WriteCellAt(0, Width-1, '!'); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestVgaTextAdvance(t *testing.T) {
	specs := []struct {
		steps      int
		expX, expY uint32
	}{
		{1, 1, 0},
		{79, 79, 0},
		{Width, 0, 1},
		{Width + 1, 1, 1},
		{CellCount - 1, Width - 1, Height - 1},
		{CellCount, 0, 0},
		{CellCount + Width, 0, 1},
	}

	for specIndex, spec := range specs {
		cons, _, cur := newTestConsole()
		cur.calls = 0

		for i := 0; i < spec.steps; i++ {
			cons.advance()
		}

		if x, y := cons.Position(); x != spec.expX || y != spec.expY {
			t.Errorf("[spec %d] expected %d advance() calls to land at (%d, %d); got (%d, %d)", specIndex, spec.steps, spec.expX, spec.expY, x, y)
		}

		if cur.calls != spec.steps {
			t.Errorf("[spec %d] expected the hardware cursor to be updated %d times; got %d", specIndex, spec.steps, cur.calls)
		}

		if cur.x != spec.expX || cur.y != spec.expY {
			t.Errorf("[spec %d] expected the hardware cursor at (%d, %d); got (%d, %d)", specIndex, spec.expX, spec.expY, cur.x, cur.y)
		}
	}
}

func TestVgaTextRetreat(t *testing.T) {
	t.Run("at origin", func(t *testing.T) {
		cons, _, cur := newTestConsole()
		cur.calls = 0

		cons.retreat()

		if x, y := cons.Position(); x != 0 || y != 0 {
			t.Fatalf("expected retreat() at (0, 0) to be a no-op; got (%d, %d)", x, y)
		}
		if cur.calls != 0 {
			t.Fatalf("expected retreat() at (0, 0) not to touch the hardware cursor")
		}
	})

	t.Run("within row", func(t *testing.T) {
		cons, _, cur := newTestConsole()
		cons.x, cons.y = 10, 3

		cons.retreat()

		if x, y := cons.Position(); x != 9 || y != 3 {
			t.Fatalf("expected retreat() to move to (9, 3); got (%d, %d)", x, y)
		}
		if cur.x != 9 || cur.y != 3 {
			t.Fatalf("expected hardware cursor at (9, 3); got (%d, %d)", cur.x, cur.y)
		}
	})

	t.Run("across rows", func(t *testing.T) {
		specs := []struct {
			// columns of the previous row holding non-zero characters
			used   []uint32
			expCol uint32
		}{
			{[]uint32{0, 1, 2, 3, 4, 5}, 5},
			{nil, 0},
			{[]uint32{0}, 0},
			{[]uint32{3, 40}, 40},
			{[]uint32{Width - 1}, Width - 1},
		}

		for specIndex, spec := range specs {
			cons, _, cur := newTestConsole()
			for _, col := range spec.used {
				_ = cons.WriteCellAt(4, col, 'x')
			}
			cons.x, cons.y = 0, 5

			cons.retreat()

			if x, y := cons.Position(); x != spec.expCol || y != 4 {
				t.Errorf("[spec %d] expected retreat() to land at (%d, 4); got (%d, %d)", specIndex, spec.expCol, x, y)
			}
			if cur.x != spec.expCol || cur.y != 4 {
				t.Errorf("[spec %d] expected hardware cursor at (%d, 4); got (%d, %d)", specIndex, spec.expCol, cur.x, cur.y)
			}
		}
	})

	t.Run("attribute only cells are blank", func(t *testing.T) {
		cons, fb, _ := newTestConsole()
		_ = cons.WriteCellAt(0, 2, 'x')
		fb[10] = 0x0f00
		cons.x, cons.y = 0, 1

		cons.retreat()

		if x, y := cons.Position(); x != 2 || y != 0 {
			t.Fatalf("expected retreat() to ignore cells with a zero character byte; got (%d, %d)", x, y)
		}
	})
}

func TestVgaTextWriteChar(t *testing.T) {
	cons, _, cur := newTestConsole()
	cons.SetForeground(LightCyan)

	for _, ch := range []byte("hi") {
		cons.WriteChar(ch)
	}

	if x, y := cons.Position(); x != 2 || y != 0 {
		t.Fatalf("expected position (2, 0); got (%d, %d)", x, y)
	}
	if cur.x != 2 || cur.y != 0 {
		t.Fatalf("expected hardware cursor at (2, 0); got (%d, %d)", cur.x, cur.y)
	}

	for col, exp := range []byte("hi") {
		if ch, attr := cons.CellAt(0, uint32(col)); ch != exp || attr != uint8(LightCyan) {
			t.Errorf("expected cell (0, %d) to be (%q, 0x%x); got (%q, 0x%x)", col, exp, uint8(LightCyan), ch, attr)
		}
	}

	t.Run("wraps at the end of the screen", func(t *testing.T) {
		cons, _, _ := newTestConsole()
		cons.x, cons.y = Width-1, Height-1

		cons.WriteChar('z')

		if ch, _ := cons.CellAt(Height-1, Width-1); ch != 'z' {
			t.Fatalf("expected last cell to contain 'z'; got %q", ch)
		}
		if x, y := cons.Position(); x != 0 || y != 0 {
			t.Fatalf("expected position to wrap to (0, 0); got (%d, %d)", x, y)
		}
	})
}

func TestVgaTextDeleteChar(t *testing.T) {
	t.Run("within row", func(t *testing.T) {
		cons, _, _ := newTestConsole()
		cons.WriteBytes([]byte("abc"))

		cons.DeleteChar()

		if x, y := cons.Position(); x != 2 || y != 0 {
			t.Fatalf("expected position (2, 0); got (%d, %d)", x, y)
		}
		if ch, _ := cons.CellAt(0, 2); ch != 0 {
			t.Fatalf("expected deleted cell to be blank; got %q", ch)
		}
		if ch, _ := cons.CellAt(0, 1); ch != 'b' {
			t.Fatalf("expected cell (0, 1) to be untouched; got %q", ch)
		}
	})

	t.Run("across rows", func(t *testing.T) {
		cons, _, _ := newTestConsole()
		cons.WriteBytes([]byte("abcdef"))
		cons.NewLine()

		cons.DeleteChar()

		if x, y := cons.Position(); x != 5 || y != 0 {
			t.Fatalf("expected position (5, 0); got (%d, %d)", x, y)
		}
		if ch, _ := cons.CellAt(0, 5); ch != 0 {
			t.Fatalf("expected cell (0, 5) to be blanked; got %q", ch)
		}
	})

	t.Run("at origin", func(t *testing.T) {
		cons, fb, _ := newTestConsole()
		fb[0] = uint16('q')

		cons.DeleteChar()

		if x, y := cons.Position(); x != 0 || y != 0 {
			t.Fatalf("expected position (0, 0); got (%d, %d)", x, y)
		}
		if ch, _ := cons.CellAt(0, 0); ch != 0 {
			t.Fatalf("expected cell (0, 0) to be blanked; got %q", ch)
		}
	})
}

func TestVgaTextWriteBytes(t *testing.T) {
	specs := []struct {
		input    []byte
		expCount int
	}{
		{[]byte("hello"), 5},
		{[]byte("hel\x00lo"), 3},
		{[]byte("\x00hello"), 0},
		{[]byte("hello\x00"), 5},
		{nil, 0},
	}

	for specIndex, spec := range specs {
		cons, fb, _ := newTestConsole()

		if got := cons.WriteBytes(spec.input); got != spec.expCount {
			t.Errorf("[spec %d] expected WriteBytes to return %d; got %d", specIndex, spec.expCount, got)
		}

		if x, y := cons.Position(); x != uint32(spec.expCount) || y != 0 {
			t.Errorf("[spec %d] expected position (%d, 0); got (%d, %d)", specIndex, spec.expCount, x, y)
		}

		for i, cell := range fb {
			if i < spec.expCount {
				if byte(cell) != spec.input[i] {
					t.Errorf("[spec %d] expected fb[%d] to contain %q; got %q", specIndex, i, spec.input[i], byte(cell))
				}
				continue
			}

			if cell != 0 {
				t.Errorf("[spec %d] expected fb[%d] to be untouched; got 0x%x", specIndex, i, cell)
				break
			}
		}
	}
}

func TestVgaTextWrite(t *testing.T) {
	cons, _, _ := newTestConsole()

	data := []byte("ab\ncd\bx\x00y")
	n, err := cons.Write(data)
	if err != nil || n != len(data) {
		t.Fatalf("expected Write to return (%d, nil); got (%d, %v)", len(data), n, err)
	}

	expRows := [][]byte{
		[]byte("ab"),
		[]byte("cx\x00y"),
	}

	for row, exp := range expRows {
		for col, expCh := range exp {
			if ch, _ := cons.CellAt(uint32(row), uint32(col)); ch != expCh {
				t.Errorf("expected cell (%d, %d) to contain %q; got %q", row, col, expCh, ch)
			}
		}
	}

	if x, y := cons.Position(); x != 4 || y != 1 {
		t.Fatalf("expected position (4, 1); got (%d, %d)", x, y)
	}
}

func TestVgaTextClearScreen(t *testing.T) {
	cons, fb, cur := newTestConsole()
	for i := range fb {
		fb[i] = 0xDEAD
	}
	cons.x, cons.y = 33, 12
	cur.calls = 0

	cons.ClearScreen()

	for i, cell := range fb {
		if byte(cell) != 0 {
			t.Fatalf("expected ClearScreen to zero the character of fb[%d]; got 0x%x", i, cell)
		}
	}

	if x, y := cons.Position(); x != 33 || y != 12 {
		t.Fatalf("expected ClearScreen to leave the position at (33, 12); got (%d, %d)", x, y)
	}

	if cur.calls != 0 {
		t.Fatalf("expected ClearScreen not to move the hardware cursor")
	}
}

func TestVgaTextNewLine(t *testing.T) {
	specs := []struct {
		x, y       uint32
		expX, expY uint32
	}{
		{0, 0, 0, 1},
		{5, 0, 0, 1},
		{Width - 1, 3, 0, 4},
		{17, Height - 1, 0, 0},
		{0, Height - 1, 0, 0},
	}

	for specIndex, spec := range specs {
		cons, _, cur := newTestConsole()
		cons.x, cons.y = spec.x, spec.y

		cons.NewLine()

		if x, y := cons.Position(); x != spec.expX || y != spec.expY {
			t.Errorf("[spec %d] expected NewLine from (%d, %d) to land at (%d, %d); got (%d, %d)", specIndex, spec.x, spec.y, spec.expX, spec.expY, x, y)
		}
		if cur.x != spec.expX || cur.y != spec.expY {
			t.Errorf("[spec %d] expected hardware cursor at (%d, %d); got (%d, %d)", specIndex, spec.expX, spec.expY, cur.x, cur.y)
		}
	}
}

func TestVgaTextColors(t *testing.T) {
	cons, _, _ := newTestConsole()

	for fg := Color(0); fg < 16; fg++ {
		for bg := Color(0); bg < 16; bg++ {
			cons.SetForeground(fg)
			cons.SetBackground(bg)
			expBg := uint8(bg) & 0x7

			if got := cons.Attr() & 0x0F; got != uint8(fg) {
				t.Fatalf("expected SetBackground(%d) to keep foreground %d; got %d", bg, fg, got)
			}

			cons.SetForeground(15 - fg)
			if got := cons.Attr() >> 4; got != expBg {
				t.Fatalf("expected SetForeground(%d) to keep background %d; got %d", 15-fg, expBg, got)
			}

			if cons.Attr()&0x80 != 0 {
				t.Fatalf("expected blink bit to stay clear for bg %d", bg)
			}
		}
	}
}

func TestVgaTextDriverInterface(t *testing.T) {
	var dev device.Driver = NewVgaTextConsole(make([]uint16, CellCount), nil)

	if dev.DriverName() == "" {
		t.Fatal("DriverName() returned an empty string")
	}

	if major, minor, patch := dev.DriverVersion(); major+minor+patch == 0 {
		t.Fatal("DriverVersion() returned an invalid version number")
	}

	t.Run("init success", func(t *testing.T) {
		if err := dev.DriverInit(nil); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("init fail", func(t *testing.T) {
		dev := NewVgaTextConsole(make([]uint16, 10), nil)
		if err := dev.DriverInit(nil); err != errFramebufferTooSmall {
			t.Fatalf("expected error: %v; got %v", errFramebufferTooSmall, err)
		}
	})
}

func TestVgaTextProbe(t *testing.T) {
	defer func() {
		getFramebufferInfoFn = multiboot.GetFramebufferInfo
		mapFramebufferFn = MapFramebuffer
	}()

	var mappedAddr uintptr
	mapFramebufferFn = func(addr uintptr) []uint16 {
		mappedAddr = addr
		return make([]uint16, CellCount)
	}

	specs := []struct {
		info      *multiboot.FramebufferInfo
		expDriver bool
		expAddr   uintptr
	}{
		{nil, true, DefaultFramebufferAddr},
		{&multiboot.FramebufferInfo{Width: 80, Height: 25, Pitch: 160, PhysAddr: 0xb8000, Type: multiboot.FramebufferTypeEGA}, true, 0xb8000},
		{&multiboot.FramebufferInfo{Width: 80, Height: 25, Pitch: 160, PhysAddr: 0xc0000, Type: multiboot.FramebufferTypeEGA}, true, 0xc0000},
		{&multiboot.FramebufferInfo{Width: 1024, Height: 768, Pitch: 4096, PhysAddr: 0xfd000000, Type: multiboot.FramebufferTypeRGB}, false, 0},
		{&multiboot.FramebufferInfo{Width: 40, Height: 25, Pitch: 80, PhysAddr: 0xb8000, Type: multiboot.FramebufferTypeEGA}, false, 0},
	}

	for specIndex, spec := range specs {
		mappedAddr = 0
		getFramebufferInfoFn = func() *multiboot.FramebufferInfo { return spec.info }

		drv := probeForVgaTextConsole()
		if (drv != nil) != spec.expDriver {
			t.Errorf("[spec %d] expected driver presence to be %t; got %t", specIndex, spec.expDriver, drv != nil)
			continue
		}

		if mappedAddr != spec.expAddr {
			t.Errorf("[spec %d] expected framebuffer to be mapped at 0x%x; got 0x%x", specIndex, spec.expAddr, mappedAddr)
		}
	}
}

func TestVgaTextAsOutputSink(t *testing.T) {
	defer kfmt.SetOutputSink(nil)

	// drain anything logged by earlier DriverInit calls
	kfmt.SetOutputSink(io.Discard)

	cons, _, _ := newTestConsole()
	kfmt.SetOutputSink(cons)

	kfmt.Printf("[%s] code: 0x%x\nnext", "gdt", uint16(0x9a))

	expRows := []string{
		"[gdt] code: 0x9a",
		"next",
	}

	for row, exp := range expRows {
		var got []byte
		for col := uint32(0); col < Width; col++ {
			ch, _ := cons.CellAt(uint32(row), col)
			if ch == 0 {
				break
			}
			got = append(got, ch)
		}

		if string(got) != exp {
			t.Errorf("expected row %d to contain %q; got %q", row, exp, got)
		}
	}
}
