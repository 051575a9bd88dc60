package rv32

import (
	"encoding/binary"
	"fmt"
)

type fixup struct {
	index  int
	label  string
	encode func(offset int32) (uint32, error)
}

// Builder assembles a program, resolving branch and jump labels on Words.
type Builder struct {
	words  []uint32
	labels map[string]int
	fixups []fixup
}

// Emit appends raw instruction words.
func (b *Builder) Emit(words ...uint32) *Builder {
	b.words = append(b.words, words...)
	return b
}

// Label binds name to the address of the next emitted instruction.
func (b *Builder) Label(name string) *Builder {
	if b.labels == nil {
		b.labels = make(map[string]int)
	}
	b.labels[name] = len(b.words)
	return b
}

func (b *Builder) emitFixup(label string, encode func(int32) (uint32, error)) *Builder {
	b.fixups = append(b.fixups, fixup{index: len(b.words), label: label, encode: encode})
	b.words = append(b.words, 0)
	return b
}

// JalTo emits JAL rd, label.
func (b *Builder) JalTo(rd Register, label string) *Builder {
	return b.emitFixup(label, func(off int32) (uint32, error) { return encodeJ(off, rd) })
}

// BranchTo emits a conditional branch to label; funct3 selects the condition
// (see Beq..Bgeu for the encodings).
func (b *Builder) BranchTo(funct3 uint32, rs1, rs2 Register, label string) *Builder {
	return b.emitFixup(label, func(off int32) (uint32, error) { return encodeB(off, rs1, rs2, funct3) })
}

// Branch conditions for BranchTo
const (
	CondEQ  uint32 = 0b000
	CondNE  uint32 = 0b001
	CondLT  uint32 = 0b100
	CondGE  uint32 = 0b101
	CondLTU uint32 = 0b110
	CondGEU uint32 = 0b111
)

// Len returns the number of instructions emitted so far.
func (b *Builder) Len() int { return len(b.words) }

// Words resolves labels and returns the program.
func (b *Builder) Words() ([]uint32, error) {
	out := append([]uint32(nil), b.words...)
	for _, f := range b.fixups {
		target, ok := b.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("rv32: undefined label %q", f.label)
		}
		insn, err := f.encode(int32(4 * (target - f.index)))
		if err != nil {
			return nil, fmt.Errorf("rv32: label %q: %w", f.label, err)
		}
		out[f.index] = insn
	}
	return out, nil
}

// Bytes returns the program as a little-endian image.
func (b *Builder) Bytes() ([]byte, error) {
	words, err := b.Words()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf, nil
}
