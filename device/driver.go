package device

import (
	"io"
	"kfs/kernel"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. If the driver init code
	// needs to log some output, it can use the supplied io.Writer in
	// conjunction with a call to kfmt.Fprint.
	DriverInit(io.Writer) *kernel.Error
}

// ProbeFn is a function that scans for the presence of a particular
// piece of hardware and returns a driver for it.
type ProbeFn func() Driver

// DetectOrder specifies when each driver's probe function will be invoked
// by the hal package.
type DetectOrder int8

// The list of supported detection orders.
const (
	// DetectOrderEarly is used by drivers that must be available before
	// anything else, such as the console that receives boot output.
	DetectOrderEarly DetectOrder = -64

	// DetectOrderNormal is used by input devices.
	DetectOrderNormal DetectOrder = 0

	// DetectOrderLast is used by drivers that link to devices detected
	// earlier, such as terminals.
	DetectOrderLast DetectOrder = 127
)

// DriverInfo describes how and when the hal package should probe for a
// driver. Driver packages export a statically initialized DriverInfo value as
// package init functions do not run before the kernel takes over.
type DriverInfo struct {
	// Order specifies at which stage of the HW detection step should the
	// probe function be invoked.
	Order DetectOrder

	// Probe is invoked to check whether the hardware is present and
	// returns a Driver for it or nil.
	Probe ProbeFn
}

// DriverInfoList is a list of registered drivers that implements
// sort.Interface.
type DriverInfoList []*DriverInfo

// Len returns the length of the driver info list.
func (l DriverInfoList) Len() int { return len(l) }

// Swap exchanges 2 elements in the driver info list.
func (l DriverInfoList) Swap(i, j int) { l[i], l[j] = l[j], l[i] }

// Less compares 2 elements of the driver info list.
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }
