// Package multiboot reads the multiboot2 information block that the boot
// loader hands over to the kernel.
package multiboot

import "unsafe"

var infoData uintptr

type tagType uint32

// nolint
const (
	tagMbSectionEnd tagType = iota
	tagBootCmdLine
	tagBootLoaderName
	tagModules
	tagBasicMemoryInfo
	tagBiosBootDevice
	tagMemoryMap
	tagVbeInfo
	tagFramebufferInfo
)

// tagHeader describes the header that precedes each tag.
type tagHeader struct {
	// The type of the tag
	tagType tagType

	// The size of the tag including the header but *not* including any
	// padding. Each tag starts at an 8-byte aligned address.
	size uint32
}

// FramebufferType defines the type of the initialized framebuffer.
type FramebufferType uint8

const (
	// FramebufferTypeIndexed specifies a 256-color palette.
	FramebufferTypeIndexed FramebufferType = iota

	// FramebufferTypeRGB specifies direct RGB mode.
	FramebufferTypeRGB

	// FramebufferTypeEGA specifies EGA text mode.
	FramebufferTypeEGA
)

// FramebufferInfo provides information about the initialized framebuffer.
type FramebufferInfo struct {
	// The framebuffer physical address.
	PhysAddr uint64

	// Row pitch in bytes.
	Pitch uint32

	// Width and height in pixels (or characters if Type = FramebufferTypeEGA)
	Width, Height uint32

	// Bits per pixel (non EGA modes only).
	Bpp uint8

	// Framebuffer type.
	Type FramebufferType
}

// SetInfoPtr updates the internal multiboot information pointer to the given
// value. This function must be invoked before invoking any other function
// exported by this package.
func SetInfoPtr(ptr uintptr) {
	infoData = ptr
}

// GetFramebufferInfo returns information about the framebuffer initialized by
// the boot loader or nil if the boot loader did not report one.
func GetFramebufferInfo() *FramebufferInfo {
	curPtr, size := findTagByType(tagFramebufferInfo)
	if size == 0 {
		return nil
	}

	return (*FramebufferInfo)(unsafe.Pointer(curPtr))
}

// CmdLineVisitor is invoked by VisitBootCmdLine for each key=value pair on
// the kernel command line. Options without a '=' are reported with the key
// repeated as the value. Returning false stops the iteration. The slices
// point into the multiboot info block and must not be retained.
type CmdLineVisitor func(key, value []byte) bool

// VisitBootCmdLine invokes visitor for each whitespace-separated option in
// the kernel command line. It does not allocate.
func VisitBootCmdLine(visitor CmdLineVisitor) {
	curPtr, size := findTagByType(tagBootCmdLine)
	if size == 0 {
		return
	}

	// The command line is a C-style NULL-terminated string
	cmdLine := unsafe.Slice((*byte)(unsafe.Pointer(curPtr)), size)
	for i, b := range cmdLine {
		if b == 0 {
			cmdLine = cmdLine[:i]
			break
		}
	}

	for len(cmdLine) != 0 {
		var field []byte
		field, cmdLine = nextField(cmdLine)
		if len(field) == 0 {
			continue
		}

		key, value := field, field
		for i, b := range field {
			if b == '=' {
				key, value = field[:i], field[i+1:]
				break
			}
		}

		if !visitor(key, value) {
			return
		}
	}
}

// nextField skips leading whitespace in buf and returns the next
// whitespace-delimited field together with the remainder of buf.
func nextField(buf []byte) ([]byte, []byte) {
	start := 0
	for start < len(buf) && isSpace(buf[start]) {
		start++
	}

	end := start
	for end < len(buf) && !isSpace(buf[end]) {
		end++
	}

	return buf[start:end], buf[end:]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// findTagByType scans the multiboot info data looking for the start of of the
// specified type. It returns a pointer to the tag contents start offset and
// the content length excluding the tag header.
//
// If the tag is not present in the multiboot info, findTagByType returns
// (0,0).
func findTagByType(tagType tagType) (uintptr, uint32) {
	if infoData == 0 {
		return 0, 0
	}

	var ptrTagHeader *tagHeader

	curPtr := infoData + 8
	for ptrTagHeader = (*tagHeader)(unsafe.Pointer(curPtr)); ptrTagHeader.tagType != tagMbSectionEnd; ptrTagHeader = (*tagHeader)(unsafe.Pointer(curPtr)) {
		if ptrTagHeader.tagType == tagType {
			return curPtr + 8, ptrTagHeader.size - 8
		}

		// Tags are aligned at 8-byte aligned addresses
		curPtr += uintptr(int32(ptrTagHeader.size+7) & ^7)
	}

	return 0, 0
}
