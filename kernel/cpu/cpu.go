//go:build 386 || amd64

// Package cpu exposes the handful of privileged instructions that the boot
// core needs. All functions are implemented in assembly.
package cpu

// Halt disables interrupts and stops instruction execution. Halt never
// returns.
func Halt()

// PortWriteByte writes a uint8 value to the requested I/O port.
func PortWriteByte(port uint16, val uint8)

// PortReadByte reads a uint8 value from the requested I/O port.
func PortReadByte(port uint16) uint8
