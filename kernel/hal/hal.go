// Package hal detects the devices the boot core drives and links them
// together.
package hal

import (
	"kfs/device"
	"kfs/device/input"
	"kfs/device/input/ps2"
	"kfs/device/tty"
	"kfs/device/video/console"
	"kfs/kernel/hal/multiboot"
	"kfs/kernel/kfmt"
)

// managedDevices contains the devices discovered by the HAL.
type managedDevices struct {
	activeConsole  console.Device
	activeTTY      tty.Device
	activeKeyboard input.Source

	// activeDrivers tracks all initialized device drivers.
	activeDrivers [8]device.Driver
	driverCount   int
}

// prefixBuf is a fixed-size io.Writer used for building log line prefixes.
// Anything that does not fit is dropped.
type prefixBuf struct {
	data [64]byte
	len  int
}

func (b *prefixBuf) Reset() { b.len = 0 }

func (b *prefixBuf) Bytes() []byte { return b.data[:b.len] }

func (b *prefixBuf) Write(p []byte) (int, error) {
	n := copy(b.data[b.len:], p)
	b.len += n
	return len(p), nil
}

var (
	devices managedDevices
	strBuf  prefixBuf

	// driverInfoList is laid out by the compiler; nothing here may depend
	// on package init functions.
	driverInfoList = device.DriverInfoList{
		&console.DriverInfo,
		&ps2.DriverInfo,
		&tty.DriverInfo,
	}

	// colorTarget is the console that visitColorOption updates.
	colorTarget console.Device

	visitBootCmdLineFn = multiboot.VisitBootCmdLine
)

// ActiveConsole returns the console that receives kernel output or nil if
// no console was detected.
func ActiveConsole() console.Device {
	return devices.activeConsole
}

// ActiveTTY returns the currently active TTY.
func ActiveTTY() tty.Device {
	return devices.activeTTY
}

// ActiveKeyboard returns the keyboard that feeds the active TTY.
func ActiveKeyboard() input.Source {
	return devices.activeKeyboard
}

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers.
func DetectHardware() {
	sortByDetectOrder(driverInfoList)
	probe(driverInfoList)
}

// sortByDetectOrder performs an in-place insertion sort. Passing the list to
// sort.Sort would box it into an interface value which needs the heap.
func sortByDetectOrder(list device.DriverInfoList) {
	for i := 1; i < list.Len(); i++ {
		for j := i; j > 0 && list.Less(j, j-1); j-- {
			list.Swap(j, j-1)
		}
	}
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func probe(driverInfoList device.DriverInfoList) {
	var w = kfmt.PrefixWriter{Sink: kfmt.GetOutputSink()}

	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		strBuf.Reset()
		major, minor, patch := drv.DriverVersion()
		kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
		w.Prefix = strBuf.Bytes()

		if err := drv.DriverInit(&w); err != nil {
			kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
			continue
		}

		onDriverInit(drv)

		// The console may have just become the output sink.
		w.Sink = kfmt.GetOutputSink()
		kfmt.Fprintf(&w, "initialized\n")

		if devices.driverCount < len(devices.activeDrivers) {
			devices.activeDrivers[devices.driverCount] = drv
			devices.driverCount++
		}
	}
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized.
func onDriverInit(drv device.Driver) {
	switch drvImpl := drv.(type) {
	case console.Device:
		onConsoleInit(drvImpl)
	case input.Source:
		if devices.activeKeyboard == nil {
			devices.activeKeyboard = drvImpl
		}
	case tty.Device:
		if devices.activeTTY != nil {
			return
		}

		devices.activeTTY = drvImpl
		if devices.activeConsole != nil {
			devices.activeTTY.AttachTo(devices.activeConsole)
		}
	}
}

// onConsoleInit is invoked whenever a console is initialized. The first
// console becomes the active console and the kfmt output sink. Colors
// requested on the boot command line are applied to it.
func onConsoleInit(cons console.Device) {
	if devices.activeConsole != nil {
		return
	}

	devices.activeConsole = cons
	applyConsoleColors(cons)
	cons.ClearScreen()
	kfmt.SetOutputSink(cons)

	if devices.activeTTY != nil {
		devices.activeTTY.AttachTo(cons)
	}
}

// applyConsoleColors looks for consoleFg and consoleBg options on the boot
// command line. Malformed or out-of-range values are ignored.
func applyConsoleColors(cons console.Device) {
	colorTarget = cons
	visitBootCmdLineFn(visitColorOption)
	colorTarget = nil
}

func visitColorOption(key, value []byte) bool {
	color, ok := parseColor(value)
	if !ok {
		return true
	}

	switch string(key) {
	case "consoleFg":
		colorTarget.SetForeground(color)
	case "consoleBg":
		if color <= console.LightGrey {
			colorTarget.SetBackground(color)
		}
	}
	return true
}

// parseColor parses a decimal palette index in the range 0-15.
func parseColor(value []byte) (console.Color, bool) {
	if len(value) == 0 || len(value) > 2 {
		return 0, false
	}

	var v uint8
	for _, b := range value {
		if b < '0' || b > '9' {
			return 0, false
		}
		v = v*10 + (b - '0')
	}

	if v > uint8(console.White) {
		return 0, false
	}

	return console.Color(v), true
}
