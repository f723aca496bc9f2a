package gdt

import "unsafe"

// TableLen is the number of descriptors in Table.
const TableLen = 3

// Segment selectors for the descriptors in Table (index * 8, RPL 0).
const (
	KernelCodeSelector uint16 = 1 << 3
	KernelDataSelector uint16 = 2 << 3
)

// Pre-encoded flat 4 GiB segments. They are spelled out as constants so that
// Table is laid out by the linker and is valid before any Go code runs;
// TestStaticTable keeps them in sync with Encode.
const (
	kernelCodeSegment uint64 = 0x00CF9A000000FFFF
	kernelDataSegment uint64 = 0x00CF92000000FFFF
)

var (
	// Table holds the null, kernel code and kernel data descriptors. The
	// boot code references it as kfs/kernel/gdt.Table.
	Table = [TableLen]uint64{
		0,
		kernelCodeSegment,
		kernelDataSegment,
	}

	// Length holds the number of entries in Table. The boot code
	// references it as kfs/kernel/gdt.Length.
	Length uint32 = TableLen
)

// PtrSize is the size of the packed pseudo-descriptor: a 16-bit limit
// followed by a pointer-sized base address (6 bytes on 386, 10 on amd64).
const PtrSize = 2 + unsafe.Sizeof(uintptr(0))

// Ptr is the packed pseudo-descriptor operand of the table-load instruction.
// The limit is stored little-endian at offset 0 and the base at offset 2.
type Ptr [PtrSize]byte

// Limit returns the table size in bytes minus one.
func (p *Ptr) Limit() uint16 {
	return uint16(p[0]) | uint16(p[1])<<8
}

// Base returns the linear address of the table.
func (p *Ptr) Base() uintptr {
	var base uintptr
	for i := PtrSize - 1; i >= 2; i-- {
		base = base<<8 | uintptr(p[i])
	}
	return base
}

// Pointer returns the pseudo-descriptor that describes Table.
func Pointer() Ptr {
	var (
		ptr   Ptr
		limit = uint16(Length*8 - 1)
		base  = uintptr(unsafe.Pointer(&Table))
	)

	ptr[0], ptr[1] = byte(limit), byte(limit>>8)
	for i := uintptr(2); i < PtrSize; i++ {
		ptr[i] = byte(base)
		base >>= 8
	}

	return ptr
}
