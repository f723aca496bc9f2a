// Package input defines the logical key events produced by keyboard drivers.
package input

// KeyKind identifies the action a Key represents.
type KeyKind uint8

// The supported key kinds.
const (
	// KeyChar carries a printable character in Key.Char.
	KeyChar KeyKind = iota

	// KeyBackspace requests deletion of the previous character.
	KeyBackspace

	// KeyEnter terminates the current line.
	KeyEnter
)

// Key is a decoded key press.
type Key struct {
	Kind KeyKind

	// Char is only meaningful for KeyChar events.
	Char byte
}

// Source is implemented by input devices that can be polled for key presses.
type Source interface {
	// Poll returns the next decoded key press. The second result is false
	// if no key press is pending. Poll never blocks.
	Poll() (Key, bool)
}
