// Package kfmt provides allocation-free formatted output for code that runs
// before, or without, the Go allocator.
package kfmt

import (
	"io"
	"unsafe"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

const (
	errMissingArg   = "(MISSING)"
	errWrongArgType = "%!(WRONGTYPE)"
	errNoVerb       = "%!(NOVERB)"
	errExtraArg     = "%!(EXTRA)"
	trueValue       = "true"
	falseValue      = "false"
)

var (
	numFmtBuf [maxBufSize + 1]byte

	// singleByte is a shared one-byte buffer for writing out characters
	// without converting strings to slices.
	singleByte [1]byte

	// replayBuf is used by SetOutputSink to move data out of the early
	// print buffer.
	replayBuf [64]byte

	// earlyPrintBuffer captures Printf output until an output sink (the
	// text console) has been detected.
	earlyPrintBuffer ringBuffer

	// outputSink receives the output of Printf. While nil, output is
	// redirected to earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the target for calls to Printf to w and replays any
// output that was captured in the early print buffer.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w == nil {
		return
	}

	for {
		n, err := earlyPrintBuffer.Read(replayBuf[:])
		if n > 0 {
			w.Write(replayBuf[:n])
		}
		if err != nil || n == 0 {
			return
		}
	}
}

// GetOutputSink returns the writer that receives Printf output. Before a
// sink is registered, the early print buffer is returned.
func GetOutputSink() io.Writer {
	if outputSink == nil {
		return &earlyPrintBuffer
	}
	return outputSink
}

// Printf provides a minimal Printf implementation that can be safely used
// before the Go runtime has been properly initialized. It does not allocate.
//
// The supported verbs are a subset of the fmt package verbs:
//
//	%s the uninterpreted bytes of a string or byte slice
//	%c a single byte
//	%d base 10 integer
//	%o base 8 integer
//	%x base 16 integer, lower-case a-f
//	%t "true" or "false"
//
// An optional decimal width may precede the verb. Strings and base-10
// integers are left-padded with spaces; base-8 and base-16 integers are
// left-padded with zeroes.
//
// Arguments are never checked for io.Stringer and pointers (%p) are not
// supported as both would pull in reflect and with it heap allocations.
//
// Output goes to the sink registered via SetOutputSink, or to the early
// print buffer if no sink is registered yet.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but writes the formatted output to w.
// If w is nil, the output is captured by the early print buffer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		padLen   int
		n        = len(format)
	)

	for i := 0; i < n; i++ {
		if format[i] != '%' {
			writeByte(w, format[i])
			continue
		}

		padLen = 0
	parseVerb:
		for i++; ; i++ {
			if i >= n {
				writeString(w, errNoVerb)
				break
			}

			ch := format[i]
			switch {
			case ch == '%':
				writeByte(w, '%')
				break parseVerb
			case ch >= '0' && ch <= '9':
				padLen = padLen*10 + int(ch-'0')
			case ch == 'd' || ch == 'x' || ch == 'o' || ch == 's' || ch == 't' || ch == 'c':
				if argIndex >= len(args) {
					writeString(w, errMissingArg)
					break parseVerb
				}

				arg := args[argIndex]
				argIndex++

				switch ch {
				case 'o':
					fmtInt(w, arg, 8, padLen)
				case 'd':
					fmtInt(w, arg, 10, padLen)
				case 'x':
					fmtInt(w, arg, 16, padLen)
				case 's':
					fmtString(w, arg, padLen)
				case 't':
					fmtBool(w, arg)
				case 'c':
					fmtChar(w, arg)
				}
				break parseVerb
			default:
				writeString(w, errNoVerb)
				break parseVerb
			}
		}
	}

	for ; argIndex < len(args); argIndex++ {
		writeString(w, errExtraArg)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	bVal, ok := v.(bool)
	switch {
	case !ok:
		writeString(w, errWrongArgType)
	case bVal:
		writeString(w, trueValue)
	default:
		writeString(w, falseValue)
	}
}

func fmtChar(w io.Writer, v interface{}) {
	switch ch := v.(type) {
	case byte:
		writeByte(w, ch)
	case rune:
		if ch < 0 || ch > 0xff {
			writeByte(w, '?')
			return
		}
		writeByte(w, byte(ch))
	default:
		writeString(w, errWrongArgType)
	}
}

// fmtString prints a string or []byte value v left-padded to padLen.
func fmtString(w io.Writer, v interface{}, padLen int) {
	switch castedVal := v.(type) {
	case string:
		fmtRepeat(w, ' ', padLen-len(castedVal))
		writeString(w, castedVal)
	case []byte:
		fmtRepeat(w, ' ', padLen-len(castedVal))
		doWrite(w, castedVal)
	default:
		writeString(w, errWrongArgType)
	}
}

// fmtRepeat writes count copies of ch.
func fmtRepeat(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		writeByte(w, ch)
	}
}

// fmtInt prints v in the requested base, left-padded to padLen. All
// built-in integer types are supported.
func fmtInt(w io.Writer, v interface{}, base, padLen int) {
	var (
		uval     uint64
		negative bool
		padCh    = byte('0')
	)

	if base == 10 {
		padCh = ' '
	}
	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	switch val := v.(type) {
	case uint8:
		uval = uint64(val)
	case uint16:
		uval = uint64(val)
	case uint32:
		uval = uint64(val)
	case uint64:
		uval = val
	case uint:
		uval = uint64(val)
	case uintptr:
		uval = uint64(val)
	case int8:
		uval, negative = abs(int64(val))
	case int16:
		uval, negative = abs(int64(val))
	case int32:
		uval, negative = abs(int64(val))
	case int64:
		uval, negative = abs(val)
	case int:
		uval, negative = abs(int64(val))
	default:
		writeString(w, errWrongArgType)
		return
	}

	// Digits are generated right to left, starting at the end of the
	// buffer.
	start := len(numFmtBuf)
	for {
		digit := byte(uval % uint64(base))
		if digit < 10 {
			digit += '0'
		} else {
			digit += 'a' - 10
		}
		start--
		numFmtBuf[start] = digit

		uval /= uint64(base)
		if uval == 0 || start == 1 {
			break
		}
	}

	for len(numFmtBuf)-start < padLen {
		start--
		numFmtBuf[start] = padCh
	}

	// The sign replaces the leftmost space padding character when one is
	// available; otherwise it widens the output by one.
	if negative {
		signPos := start
		for signPos < len(numFmtBuf)-1 && numFmtBuf[signPos] == ' ' && numFmtBuf[signPos+1] == ' ' {
			signPos++
		}
		switch {
		case numFmtBuf[signPos] == ' ':
			numFmtBuf[signPos] = '-'
		default:
			start--
			numFmtBuf[start] = '-'
		}
	}

	doWrite(w, numFmtBuf[start:])
}

func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

func writeByte(w io.Writer, b byte) {
	singleByte[0] = b
	doWrite(w, singleByte[:])
}

// writeString writes s one byte at a time as converting it to a byte slice
// would allocate.
func writeString(w io.Writer, s string) {
	for i := 0; i < len(s); i++ {
		writeByte(w, s[i])
	}
}

// doWrite is a proxy that uses the runtime.noescape hack to hide p from the
// compiler's escape analysis. Without it, p is flagged as escaping through
// the io.Writer call and every Printf call would allocate its argument
// slice on the heap.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
