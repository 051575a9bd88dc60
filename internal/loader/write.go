package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	elf32HeaderSize = 52
	elf32ProgSize   = 32
)

// WriteELF writes a minimal ELF32 RISC-V executable with one read+execute
// PT_LOAD segment holding code at addr.
func WriteELF(w io.Writer, addr uint32, code []byte) error {
	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	hdr := elf.Header32{
		Ident:     ident,
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     addr,
		Phoff:     elf32HeaderSize,
		Ehsize:    elf32HeaderSize,
		Phentsize: elf32ProgSize,
		Phnum:     1,
	}
	prog := elf.Prog32{
		Type:   uint32(elf.PT_LOAD),
		Off:    elf32HeaderSize + elf32ProgSize,
		Vaddr:  addr,
		Paddr:  addr,
		Filesz: uint32(len(code)),
		Memsz:  uint32(len(code)),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Align:  4,
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("encode elf header: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, &prog); err != nil {
		return fmt.Errorf("encode program header: %w", err)
	}
	buf.Write(code)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write elf: %w", err)
	}
	return nil
}
