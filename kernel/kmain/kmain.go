package kmain

import (
	"kfs/device/input"
	"kfs/device/tty"
	"kfs/kernel"
	"kfs/kernel/gdt"
	"kfs/kernel/hal"
	"kfs/kernel/hal/multiboot"
	"kfs/kernel/kfmt"
)

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
	errNoConsole     = &kernel.Error{Module: "kmain", Message: "no text console detected"}

	// Overridden by tests.
	detectHardwareFn = hal.DetectHardware
	activeConsoleFn  = func() bool { return hal.ActiveConsole() != nil }
	panicFn          = kfmt.Panic
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. It is invoked by the rt0 assembly code after it has
// loaded gdt.Table and set up a stack for Go code.
//
// The rt0 code passes the address of the multiboot info payload provided by
// the boot loader.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	if !boot() {
		return
	}

	kbd, term := hal.ActiveKeyboard(), hal.ActiveTTY()
	if kbd == nil || term == nil {
		kfmt.Printf("[kmain] no keyboard input available\n")
		// Use panicFn instead of returning so that the halt is reported
		// on the console.
		panicFn(errKmainReturned)
		return
	}

	for {
		pollInput(kbd, term)
	}
}

// boot detects the hardware and prints the banner. It returns false if no
// console could be found.
func boot() bool {
	detectHardwareFn()

	if !activeConsoleFn() {
		panicFn(errNoConsole)
		return false
	}

	printBanner()
	return true
}

// printBanner also keeps gdt.Table reachable so the linker retains the
// symbol that the rt0 code loads.
func printBanner() {
	gdtPtr := gdt.Pointer()

	kfmt.Printf("kfs 42\n")
	kfmt.Printf("[kmain] gdt at 0x%x (limit %d): %d entries, code selector 0x%2x, data selector 0x%2x\n",
		gdtPtr.Base(), gdtPtr.Limit(), gdt.Length, gdt.KernelCodeSelector, gdt.KernelDataSelector)
}

// pollInput forwards at most one pending key press to the terminal and
// flushes it.
func pollInput(src input.Source, term tty.Device) {
	key, ok := src.Poll()
	if !ok {
		return
	}

	term.HandleKey(key)
	term.Flush()
}
