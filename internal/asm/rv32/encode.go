// Package rv32 encodes RV32I/RV32M instructions into machine words.
package rv32

import (
	"fmt"
)

// Register is an integer register number.
type Register uint32

const (
	X0 Register = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16
	X17
	X18
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	X29
	X30
	X31
)

// ABI aliases
const (
	Zero = X0
	RA   = X1
	SP   = X2
	T0   = X5
	T1   = X6
	T2   = X7
	A0   = X10
	A1   = X11
	A2   = X12
	A3   = X13
	A4   = X14
	A5   = X15
)

const (
	opLoad   = 0x03
	opOpImm  = 0x13
	opAuipc  = 0x17
	opStore  = 0x23
	opOp     = 0x33
	opLui    = 0x37
	opBranch = 0x63
	opJalr   = 0x67
	opJal    = 0x6f
)

func encodeR(funct7, rs2, rs1, funct3 uint32, rd Register, opcode uint32) uint32 {
	return (funct7 << 25) | (rs2&0x1f)<<20 | (rs1&0x1f)<<15 | (funct3 << 12) | (uint32(rd)&0x1f)<<7 | opcode
}

func encodeI(imm int32, rs1 Register, funct3 uint32, rd Register, opcode uint32) (uint32, error) {
	if imm < -2048 || imm > 2047 {
		return 0, fmt.Errorf("rv32: immediate %d out of range for I-type", imm)
	}
	uimm := uint32(imm) & 0xfff
	return (uimm << 20) | uint32(rs1)<<15 | (funct3 << 12) | uint32(rd)<<7 | opcode, nil
}

func encodeS(imm int32, rs1 Register, rs2 Register, funct3 uint32, opcode uint32) (uint32, error) {
	if imm < -2048 || imm > 2047 {
		return 0, fmt.Errorf("rv32: immediate %d out of range for S-type", imm)
	}
	uimm := uint32(imm) & 0xfff
	immHi := (uimm >> 5) & 0x7f
	immLo := uimm & 0x1f

	return (immHi << 25) | uint32(rs2)<<20 | uint32(rs1)<<15 | (funct3 << 12) | (immLo << 7) | opcode, nil
}

func encodeB(offset int32, rs1, rs2 Register, funct3 uint32) (uint32, error) {
	if offset&1 != 0 || offset < -4096 || offset > 4094 {
		return 0, fmt.Errorf("rv32: branch offset %d out of range", offset)
	}
	u := uint32(offset)
	insn := ((u >> 12) & 0x1) << 31
	insn |= ((u >> 5) & 0x3f) << 25
	insn |= ((u >> 1) & 0xf) << 8
	insn |= ((u >> 11) & 0x1) << 7
	return insn | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | opBranch, nil
}

func encodeU(imm uint32, rd Register, opcode uint32) uint32 {
	return (imm&0xfffff)<<12 | uint32(rd)<<7 | opcode
}

func encodeJ(offset int32, rd Register) (uint32, error) {
	if offset&1 != 0 || offset < -(1<<20) || offset > (1<<20)-2 {
		return 0, fmt.Errorf("rv32: jump offset %d out of range", offset)
	}
	u := uint32(offset)
	insn := ((u >> 20) & 0x1) << 31
	insn |= ((u >> 1) & 0x3ff) << 21
	insn |= ((u >> 11) & 0x1) << 20
	insn |= ((u >> 12) & 0xff) << 12
	return insn | uint32(rd)<<7 | opJal, nil
}

func must(insn uint32, err error) uint32 {
	if err != nil {
		panic(err)
	}
	return insn
}

// ALU instructions. Immediates outside their encoding range panic; use a
// Builder to collect errors instead.

func Addi(rd, rs1 Register, imm int32) uint32  { return must(encodeI(imm, rs1, 0b000, rd, opOpImm)) }
func Slti(rd, rs1 Register, imm int32) uint32  { return must(encodeI(imm, rs1, 0b010, rd, opOpImm)) }
func Sltiu(rd, rs1 Register, imm int32) uint32 { return must(encodeI(imm, rs1, 0b011, rd, opOpImm)) }
func Xori(rd, rs1 Register, imm int32) uint32  { return must(encodeI(imm, rs1, 0b100, rd, opOpImm)) }
func Ori(rd, rs1 Register, imm int32) uint32   { return must(encodeI(imm, rs1, 0b110, rd, opOpImm)) }
func Andi(rd, rs1 Register, imm int32) uint32  { return must(encodeI(imm, rs1, 0b111, rd, opOpImm)) }

func Slli(rd, rs1 Register, sh uint32) uint32 { return must(encodeI(int32(sh&0x1f), rs1, 0b001, rd, opOpImm)) }
func Srli(rd, rs1 Register, sh uint32) uint32 { return must(encodeI(int32(sh&0x1f), rs1, 0b101, rd, opOpImm)) }
func Srai(rd, rs1 Register, sh uint32) uint32 {
	return must(encodeI(int32(sh&0x1f)|0x400, rs1, 0b101, rd, opOpImm))
}

func Lui(rd Register, imm uint32) uint32   { return encodeU(imm, rd, opLui) }
func Auipc(rd Register, imm uint32) uint32 { return encodeU(imm, rd, opAuipc) }

func op(funct7, funct3 uint32) func(rd, rs1, rs2 Register) uint32 {
	return func(rd, rs1, rs2 Register) uint32 {
		return encodeR(funct7, uint32(rs2), uint32(rs1), funct3, rd, opOp)
	}
}

var (
	Add  = op(0x00, 0b000)
	Sub  = op(0x20, 0b000)
	Sll  = op(0x00, 0b001)
	Slt  = op(0x00, 0b010)
	Sltu = op(0x00, 0b011)
	Xor  = op(0x00, 0b100)
	Srl  = op(0x00, 0b101)
	Sra  = op(0x20, 0b101)
	Or   = op(0x00, 0b110)
	And  = op(0x00, 0b111)

	Mul    = op(0x01, 0b000)
	Mulh   = op(0x01, 0b001)
	Mulhsu = op(0x01, 0b010)
	Mulhu  = op(0x01, 0b011)
	Div    = op(0x01, 0b100)
	Divu   = op(0x01, 0b101)
	Rem    = op(0x01, 0b110)
	Remu   = op(0x01, 0b111)
)

// Memory instructions

func Lb(rd, base Register, off int32) uint32  { return must(encodeI(off, base, 0b000, rd, opLoad)) }
func Lh(rd, base Register, off int32) uint32  { return must(encodeI(off, base, 0b001, rd, opLoad)) }
func Lw(rd, base Register, off int32) uint32  { return must(encodeI(off, base, 0b010, rd, opLoad)) }
func Lbu(rd, base Register, off int32) uint32 { return must(encodeI(off, base, 0b100, rd, opLoad)) }
func Lhu(rd, base Register, off int32) uint32 { return must(encodeI(off, base, 0b101, rd, opLoad)) }

func Sb(src, base Register, off int32) uint32 { return must(encodeS(off, base, src, 0b000, opStore)) }
func Sh(src, base Register, off int32) uint32 { return must(encodeS(off, base, src, 0b001, opStore)) }
func Sw(src, base Register, off int32) uint32 { return must(encodeS(off, base, src, 0b010, opStore)) }

// Control transfer with explicit byte offsets

func Jal(rd Register, off int32) uint32 { return must(encodeJ(off, rd)) }
func Jalr(rd, rs1 Register, off int32) uint32 {
	return must(encodeI(off, rs1, 0b000, rd, opJalr))
}

func branch(funct3 uint32) func(rs1, rs2 Register, off int32) uint32 {
	return func(rs1, rs2 Register, off int32) uint32 {
		return must(encodeB(off, rs1, rs2, funct3))
	}
}

var (
	Beq  = branch(0b000)
	Bne  = branch(0b001)
	Blt  = branch(0b100)
	Bge  = branch(0b101)
	Bltu = branch(0b110)
	Bgeu = branch(0b111)
)

// Nop is ADDI x0, x0, 0.
func Nop() uint32 { return Addi(X0, X0, 0) }

// Li returns the one or two instructions that load value into rd.
func Li(rd Register, value uint32) []uint32 {
	if int32(value) >= -2048 && int32(value) <= 2047 {
		return []uint32{Addi(rd, X0, int32(value))}
	}
	hi := (value + (1 << 11)) >> 12
	lo := int32(value - hi<<12)
	if lo == 0 {
		return []uint32{Lui(rd, hi)}
	}
	return []uint32{Lui(rd, hi), Addi(rd, rd, lo)}
}
