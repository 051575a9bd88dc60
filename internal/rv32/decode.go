package rv32

// Opcode constants
const (
	OpLoad   = 0b0000011 // I-type loads
	OpOpImm  = 0b0010011 // I-type ALU
	OpAuipc  = 0b0010111 // U-type
	OpStore  = 0b0100011 // S-type stores
	OpOp     = 0b0110011 // R-type ALU and M extension
	OpLui    = 0b0110111 // U-type
	OpBranch = 0b1100011 // B-type branches
	OpJalr   = 0b1100111 // I-type jump
	OpJal    = 0b1101111 // J-type jump
)

// funct7 values selecting variants of OP and OP-IMM
const (
	funct7Base = 0b0000000
	funct7Alt  = 0b0100000 // SUB, SRA, SRAI
	funct7MulD = 0b0000001 // M extension
)

// Instruction field extraction
func opcode(insn uint32) uint32 { return insn & 0x7f }
func rd(insn uint32) uint32     { return (insn >> 7) & 0x1f }
func funct3(insn uint32) uint32 { return (insn >> 12) & 0x7 }
func rs1(insn uint32) uint32    { return (insn >> 15) & 0x1f }
func rs2(insn uint32) uint32    { return (insn >> 20) & 0x1f }
func funct7(insn uint32) uint32 { return (insn >> 25) & 0x7f }

// signExtend widens the low 'bits' bits of val to a 32-bit two's-complement value.
func signExtend(val uint32, bits int) uint32 {
	if val&(1<<(bits-1)) != 0 {
		return val | ^uint32(0)<<bits
	}
	return val
}

// Immediate extraction
func immI(insn uint32) uint32 {
	return signExtend(insn>>20, 12)
}

func immS(insn uint32) uint32 {
	imm := (insn >> 7) & 0x1f
	imm |= ((insn >> 25) & 0x7f) << 5
	return signExtend(imm, 12)
}

func immB(insn uint32) uint32 {
	imm := ((insn >> 8) & 0xf) << 1
	imm |= ((insn >> 25) & 0x3f) << 5
	imm |= ((insn >> 7) & 0x1) << 11
	imm |= ((insn >> 31) & 0x1) << 12
	return signExtend(imm, 13)
}

func immU(insn uint32) uint32 {
	return insn & 0xfffff000
}

func immJ(insn uint32) uint32 {
	imm := ((insn >> 21) & 0x3ff) << 1
	imm |= ((insn >> 20) & 0x1) << 11
	imm |= ((insn >> 12) & 0xff) << 12
	imm |= ((insn >> 31) & 0x1) << 20
	return signExtend(imm, 21)
}

// shamt extracts the shift amount of an immediate shift.
func shamt(insn uint32) uint32 {
	return (insn >> 20) & 0x1f
}
