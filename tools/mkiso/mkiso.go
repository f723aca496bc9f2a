package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	diskfs "github.com/diskfs/go-diskfs"
	diskpkg "github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/filesystem/iso9660"
	"github.com/diskfs/go-diskfs/partition/gpt"
)

const (
	kernelImagePath = "/boot/kfs.elf"
	limineCfgPath   = "/boot/limine.cfg"

	blkSize       = 2048
	espSize       = 2 << 20
	isoOverhead   = 2 << 20
	gptBackupSize = 64 << 10
)

var (
	errBadColor = errors.New("console colors must be decimal palette indices (fg 0-15, bg 0-7)")
)

// imageFile describes a file that is copied from the host into the image.
type imageFile struct {
	src string
	dst string
}

// bootOptions holds the kernel command line settings that are baked into
// the generated limine config.
type bootOptions struct {
	consoleFg int
	consoleBg int
	extra     string
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[mkiso] error: %s\n", err.Error())
	os.Exit(1)
}

// cmdLine returns the kernel command line for opts. Negative colors are
// omitted so the kernel keeps its defaults.
func (opts bootOptions) cmdLine() string {
	var buf bytes.Buffer
	if opts.consoleFg >= 0 {
		fmt.Fprintf(&buf, "consoleFg=%d", opts.consoleFg)
	}
	if opts.consoleBg >= 0 {
		if buf.Len() != 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "consoleBg=%d", opts.consoleBg)
	}
	if opts.extra != "" {
		if buf.Len() != 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(opts.extra)
	}
	return buf.String()
}

func (opts bootOptions) validate() error {
	if opts.consoleFg > 15 || opts.consoleBg > 7 {
		return errBadColor
	}
	return nil
}

// renderLimineConfig generates a limine config that boots the kernel using
// the multiboot2 protocol in VGA text mode.
func renderLimineConfig(opts bootOptions) []byte {
	var buf bytes.Buffer

	buf.WriteString("TIMEOUT=0\n")
	buf.WriteString("TEXTMODE=yes\n\n")
	buf.WriteString(":kfs\n")
	buf.WriteString("    PROTOCOL=multiboot2\n")
	fmt.Fprintf(&buf, "    KERNEL_PATH=boot://%s\n", kernelImagePath)
	if cmdLine := opts.cmdLine(); cmdLine != "" {
		fmt.Fprintf(&buf, "    CMDLINE=%s\n", cmdLine)
	}

	return buf.Bytes()
}

// imageFiles returns the host files that make up the image. The limine
// files are looked up in limineDir.
func imageFiles(kernelPath, limineDir string) []imageFile {
	return []imageFile{
		{kernelPath, kernelImagePath},
		{filepath.Join(limineDir, "limine-bios.sys"), "/boot/limine-bios.sys"},
		{filepath.Join(limineDir, "limine-bios-cd.bin"), "/boot/limine-bios-cd.bin"},
		{filepath.Join(limineDir, "limine-uefi-cd.bin"), "/boot/limine-uefi-cd.bin"},
		{filepath.Join(limineDir, "BOOTX64.EFI"), "/EFI/BOOT/BOOTX64.EFI"},
		{filepath.Join(limineDir, "BOOTIA32.EFI"), "/EFI/BOOT/BOOTIA32.EFI"},
	}
}

// checkInputs ensures that all files exist before the image is created.
func checkInputs(files []imageFile) error {
	for _, f := range files {
		info, err := os.Stat(f.src)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%s: is a directory", f.src)
		}
	}
	return nil
}

func copyFile(fs filesystem.FileSystem, item imageFile) error {
	dst, err := fs.OpenFile(item.dst, os.O_CREATE|os.O_RDWR)
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	src, err := os.Open(item.src)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	_, err = io.Copy(dst, src)
	return err
}

func writeFile(fs filesystem.FileSystem, dstPath string, data []byte) error {
	dst, err := fs.OpenFile(dstPath, os.O_CREATE|os.O_RDWR)
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	_, err = dst.Write(data)
	return err
}

// imageLayout describes where the ISO9660 data and the EFI system
// partition live inside the image. All sector values are in blkSize units.
type imageLayout struct {
	diskSize       int64
	partitionStart uint64
	partitionEnd   uint64
}

// computeLayout reserves room for payloadSize bytes of ISO9660 data plus
// isoOverhead for its metadata, followed by the EFI system partition and the
// backup GPT.
func computeLayout(payloadSize int64) imageLayout {
	isoSectors := (payloadSize + isoOverhead + blkSize - 1) / blkSize
	partitionSectors := int64(espSize / blkSize)

	partitionStart := isoSectors
	partitionEnd := partitionStart + partitionSectors - 1

	return imageLayout{
		diskSize:       (partitionEnd+1)*blkSize + gptBackupSize,
		partitionStart: uint64(partitionStart),
		partitionEnd:   uint64(partitionEnd),
	}
}

// buildImage writes a hybrid BIOS/UEFI bootable ISO9660 image to imgPath.
func buildImage(imgPath, volumeID string, files []imageFile, limineCfg []byte) error {
	var size int64
	for _, f := range files {
		info, err := os.Stat(f.src)
		if err != nil {
			return err
		}
		size += info.Size()
	}
	layout := computeLayout(size + int64(len(limineCfg)))

	_ = os.Remove(imgPath)

	disk, err := diskfs.Create(imgPath, layout.diskSize, diskfs.Raw, diskfs.SectorSize(blkSize))
	if err != nil {
		return err
	}

	fs, err := disk.CreateFilesystem(diskpkg.FilesystemSpec{Partition: 0, FSType: filesystem.TypeISO9660})
	if err != nil {
		return err
	}

	for _, dir := range []string{"/boot", "/EFI/BOOT"} {
		if err = fs.Mkdir(dir); err != nil {
			return err
		}
	}

	for _, item := range files {
		if err = copyFile(fs, item); err != nil {
			return err
		}
	}

	if err = writeFile(fs, limineCfgPath, limineCfg); err != nil {
		return err
	}

	isoFS, ok := fs.(*iso9660.FileSystem)
	if !ok {
		return errors.New("unexpected filesystem type")
	}

	err = isoFS.Finalize(iso9660.FinalizeOptions{
		VolumeIdentifier: volumeID,
		RockRidge:        true,
		ElTorito: &iso9660.ElTorito{
			BootCatalog: "boot.cat",
			Entries: []*iso9660.ElToritoEntry{
				{
					Platform:  iso9660.BIOS,
					Emulation: iso9660.NoEmulation,
					BootFile:  "/boot/limine-bios-cd.bin",
					BootTable: true,
					LoadSize:  4,
				},
				{
					Platform:  iso9660.EFI,
					Emulation: iso9660.NoEmulation,
					BootFile:  "/boot/limine-uefi-cd.bin",
					BootTable: true,
				},
			},
		},
	})
	if err != nil {
		return err
	}

	// The partition table lives in the ISO9660 system area and past the
	// end of the ISO9660 data, so it is written once the image is final.
	table := &gpt.Table{
		LogicalSectorSize:  blkSize,
		PhysicalSectorSize: blkSize,
		ProtectiveMBR:      true,
		Partitions: []*gpt.Partition{
			{
				Start: layout.partitionStart,
				End:   layout.partitionEnd,
				Type:  gpt.EFISystemPartition,
				Name:  "EFI System",
			},
		},
	}
	return disk.Partition(table)
}

func parseColorFlag(name, value string) (int, error) {
	if value == "" {
		return -1, nil
	}

	v, err := strconv.Atoi(value)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s: %w", name, errBadColor)
	}
	return v, nil
}

func main() {
	kernelPath := flag.String("kernel", "build/kfs.elf", "the kernel image to embed")
	limineDir := flag.String("limine", "limine", "directory containing the limine boot files")
	outPath := flag.String("out", "build/kfs.iso", "the ISO image to generate")
	volumeID := flag.String("volume", "KFS", "the ISO volume identifier")
	consoleFg := flag.String("console-fg", "", "console foreground color (0-15)")
	consoleBg := flag.String("console-bg", "", "console background color (0-7)")
	extra := flag.String("cmdline", "", "additional kernel command line arguments")
	flag.Parse()

	var (
		opts = bootOptions{extra: *extra}
		err  error
	)

	if opts.consoleFg, err = parseColorFlag("console-fg", *consoleFg); err != nil {
		exit(err)
	}
	if opts.consoleBg, err = parseColorFlag("console-bg", *consoleBg); err != nil {
		exit(err)
	}
	if err = opts.validate(); err != nil {
		exit(err)
	}

	files := imageFiles(*kernelPath, *limineDir)
	if err = checkInputs(files); err != nil {
		exit(err)
	}

	if err = buildImage(*outPath, *volumeID, files, renderLimineConfig(opts)); err != nil {
		exit(err)
	}
}
