// Package loader reads program images for the simulator: ELF32 RISC-V
// executables or raw binaries placed at the ROM base.
package loader

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tinyrange/rv32/internal/rv32"
)

// Format is the container an image was read from.
type Format uint8

const (
	FormatRaw Format = iota
	FormatELF
)

func (f Format) String() string {
	if f == FormatELF {
		return "elf"
	}
	return "raw"
}

// Segment is a block of bytes to place in memory before execution.
type Segment struct {
	Addr uint32
	Data []byte
}

// Image is a loadable program.
type Image struct {
	Format   Format
	Entry    uint32
	Segments []Segment
}

// Size returns the number of bytes the image places in memory.
func (img *Image) Size() int {
	n := 0
	for _, seg := range img.Segments {
		n += len(seg.Data)
	}
	return n
}

var elfMagic = []byte(elf.ELFMAG)

// MaxSegmentSize bounds the memory size of a single ELF segment. Larger
// segments are rejected before anything is allocated for them.
const MaxSegmentSize = 1 << 24

// Parse reads an image. Data that does not start with the ELF magic is
// treated as a raw binary loaded at base, which is also its entry point.
func Parse(data []byte, base uint32) (*Image, error) {
	if bytes.HasPrefix(data, elfMagic) {
		return parseELF(bytes.NewReader(data))
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return &Image{
		Format:   FormatRaw,
		Entry:    base,
		Segments: []Segment{{Addr: base, Data: data}},
	}, nil
}

// Load reads the image at path.
func Load(path string, base uint32) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	img, err := Parse(data, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func parseELF(r io.ReaderAt) (*Image, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("unsupported ELF class %v (want ELFCLASS32)", f.Class)
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("unsupported ELF byte order %v", f.Data)
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("unsupported ELF machine %v (want EM_RISCV)", f.Machine)
	}
	if len(f.Progs) == 0 {
		return nil, errors.New("ELF image has no program headers")
	}

	img := &Image{Format: FormatELF, Entry: uint32(f.Entry)}
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		if prog.Filesz > prog.Memsz {
			return nil, fmt.Errorf("ELF segment file size %#x exceeds mem size %#x", prog.Filesz, prog.Memsz)
		}
		if prog.Memsz > MaxSegmentSize {
			return nil, fmt.Errorf("ELF segment @%#x mem size %#x exceeds %#x", prog.Paddr, prog.Memsz, MaxSegmentSize)
		}
		if prog.Paddr+prog.Memsz > 1<<32 {
			return nil, fmt.Errorf("ELF segment [%#x, +%#x) exceeds the 32-bit address space", prog.Paddr, prog.Memsz)
		}

		// bss is zero filled
		data := make([]byte, int(prog.Memsz))
		if prog.Filesz > 0 {
			if _, err := prog.ReadAt(data[:prog.Filesz], 0); err != nil {
				return nil, fmt.Errorf("read ELF segment @%#x: %w", prog.Off, err)
			}
		}
		img.Segments = append(img.Segments, Segment{Addr: uint32(prog.Paddr), Data: data})
	}

	if len(img.Segments) == 0 {
		return nil, errors.New("ELF image has no loadable segments")
	}
	return img, nil
}

// Apply copies the image into the hart's memory and points pc at the entry.
func (img *Image) Apply(h *rv32.Hart) error {
	for _, seg := range img.Segments {
		if err := h.LoadBytes(seg.Addr, seg.Data); err != nil {
			return fmt.Errorf("segment @%#08x: %w", seg.Addr, err)
		}
	}
	h.SetPC(img.Entry)
	return nil
}
