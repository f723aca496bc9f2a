// Package gdt builds the flat segment descriptor table that the boot code
// loads into the CPU before handing control to the kernel.
//
// The table itself is never loaded from Go; the boot code locates it through
// the Table and Length symbols exported by this package.
package gdt

import "encoding/binary"

// Flags describes the 4-bit flag nibble of a segment descriptor.
type Flags uint8

const (
	// FlagAvailable is reserved for system software use.
	FlagAvailable Flags = 1 << iota

	// FlagLongMode marks a 64-bit code segment. When set, FlagSize32
	// must be cleared.
	FlagLongMode

	// FlagSize32 selects 32-bit protected mode operands for the segment.
	FlagSize32

	// FlagGranularity4K scales the segment limit by 4 KiB pages.
	FlagGranularity4K

	// FlagsFlat32 describes a 32-bit segment whose limit is expressed in
	// pages; combined with a 0xFFFFF limit it spans the full 4 GiB space.
	FlagsFlat32 = FlagGranularity4K | FlagSize32
)

// Access describes the access byte of a segment descriptor.
type Access uint8

const (
	// AccessAccessed is set by the CPU when the segment is accessed.
	AccessAccessed Access = 1 << iota

	// AccessRW makes code segments readable and data segments writable.
	AccessRW

	// AccessDC is the direction bit for data segments and the conforming
	// bit for code segments.
	AccessDC

	// AccessExecutable marks a code segment.
	AccessExecutable

	// AccessCodeOrData distinguishes code/data segments from system
	// segments such as TSS descriptors.
	AccessCodeOrData

	// AccessRing3 sets the descriptor privilege level to 3. Ring 0 is the
	// zero value.
	AccessRing3 Access = 3 << 5

	// AccessPresent must be set for every usable segment.
	AccessPresent Access = 1 << 7
)

const (
	// AccessKernelCode describes a present, ring 0, executable and
	// readable segment (0x9A).
	AccessKernelCode = AccessPresent | AccessCodeOrData | AccessExecutable | AccessRW

	// AccessKernelData describes a present, ring 0, writable data segment
	// (0x92).
	AccessKernelData = AccessPresent | AccessCodeOrData | AccessRW
)

// Descriptor is an x86 segment descriptor. Its fields follow the in-memory
// order of the 8-byte hardware layout, lowest byte first.
type Descriptor struct {
	limitLow  uint16 // bytes 0-1: limit[15:0]
	baseLow   uint16 // bytes 2-3: base[15:0]
	baseMid   uint8  // byte 4:    base[23:16]
	access    Access // byte 5
	flagLimit uint8  // byte 6:    flags << 4 | limit[19:16]
	baseHigh  uint8  // byte 7:    base[31:24]
}

// Encode packs a 32-bit base, a 20-bit limit, a flag nibble and an access
// byte into a segment descriptor. Limit bits above bit 19 and flag bits
// above bit 3 are discarded.
func Encode(base, limit uint32, flags Flags, access Access) Descriptor {
	return Descriptor{
		limitLow:  uint16(limit & 0xFFFF),
		baseLow:   uint16(base & 0xFFFF),
		baseMid:   uint8((base >> 16) & 0xFF),
		access:    access,
		flagLimit: uint8(flags&0xF)<<4 | uint8((limit>>16)&0xF),
		baseHigh:  uint8((base >> 24) & 0xFF),
	}
}

// Null returns the all-zero descriptor that must occupy index 0 of the
// table. It must never be loaded into an active segment register.
func Null() Descriptor {
	return Descriptor{}
}

// Value assembles the descriptor into the 64-bit value that the CPU reads
// from the table.
func (d Descriptor) Value() uint64 {
	return uint64(d.baseHigh)<<56 |
		uint64(d.flagLimit)<<48 |
		uint64(d.access)<<40 |
		uint64(d.baseMid)<<32 |
		uint64(d.baseLow)<<16 |
		uint64(d.limitLow)
}

// Bytes returns the in-memory image of the descriptor.
func (d Descriptor) Bytes() [8]byte {
	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], d.Value())
	return out
}

// Base returns the 32-bit segment base address.
func (d Descriptor) Base() uint32 {
	return uint32(d.baseHigh)<<24 | uint32(d.baseMid)<<16 | uint32(d.baseLow)
}

// Limit returns the 20-bit segment limit.
func (d Descriptor) Limit() uint32 {
	return uint32(d.flagLimit&0xF)<<16 | uint32(d.limitLow)
}

// Flags returns the flag nibble.
func (d Descriptor) Flags() Flags {
	return Flags(d.flagLimit >> 4)
}

// Access returns the access byte.
func (d Descriptor) Access() Access {
	return d.access
}
