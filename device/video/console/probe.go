package console

import (
	"kfs/device"
	"kfs/kernel/cpu"
	"kfs/kernel/hal/multiboot"
)

var (
	mapFramebufferFn     = MapFramebuffer
	portWriteByteFn      = cpu.PortWriteByte
	getFramebufferInfoFn = multiboot.GetFramebufferInfo

	vgaConsole VgaTextConsole
	crtCursor  CRTCursor

	// DriverInfo is used by the hal package to probe for a text console.
	DriverInfo = device.DriverInfo{
		Order: device.DetectOrderEarly,
		Probe: probeForVgaTextConsole,
	}
)
