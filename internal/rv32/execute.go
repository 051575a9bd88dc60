package rv32

// Execute runs one instruction against the hart. Control transfers are
// recorded with jump; Step applies them.
func (h *Hart) Execute(insn uint32) error {
	switch opcode(insn) {
	case OpOpImm:
		return h.execOpImm(insn)
	case OpLui:
		return h.execLui(insn)
	case OpAuipc:
		return h.execAuipc(insn)
	case OpOp:
		return h.execOp(insn)
	case OpJal:
		return h.execJal(insn)
	case OpJalr:
		return h.execJalr(insn)
	case OpBranch:
		return h.execBranch(insn)
	case OpLoad:
		return h.execLoad(insn)
	case OpStore:
		return h.execStore(insn)
	default:
		return &FaultError{Fault: FaultUndefinedOpcode, Insn: insn}
	}
}

// Immediate ALU operations
func (h *Hart) execOpImm(insn uint32) error {
	r1 := h.ReadReg(rs1(insn))
	imm := immI(insn)
	sh := shamt(insn)

	var val uint32
	switch funct3(insn) {
	case 0b000: // ADDI
		val = r1 + imm
	case 0b010: // SLTI
		if int32(r1) < int32(imm) {
			val = 1
		}
	case 0b011: // SLTIU
		if r1 < imm {
			val = 1
		}
	case 0b100: // XORI
		val = r1 ^ imm
	case 0b110: // ORI
		val = r1 | imm
	case 0b111: // ANDI
		val = r1 & imm
	case 0b001: // SLLI
		if funct7(insn) != funct7Base {
			return undefinedOperation(insn)
		}
		val = r1 << sh
	case 0b101: // SRLI/SRAI
		switch funct7(insn) {
		case funct7Base:
			val = r1 >> sh
		case funct7Alt:
			val = uint32(int32(r1) >> sh)
		default:
			return undefinedOperation(insn)
		}
	default:
		return undefinedOperation(insn)
	}

	h.WriteReg(rd(insn), val)
	return nil
}

// LUI - Load Upper Immediate
func (h *Hart) execLui(insn uint32) error {
	h.WriteReg(rd(insn), immU(insn))
	return nil
}

// AUIPC - Add Upper Immediate to PC
func (h *Hart) execAuipc(insn uint32) error {
	h.WriteReg(rd(insn), h.PC+immU(insn))
	return nil
}

// Register-Register ALU operations
func (h *Hart) execOp(insn uint32) error {
	r1 := h.ReadReg(rs1(insn))
	r2 := h.ReadReg(rs2(insn))
	f3 := funct3(insn)
	f7 := funct7(insn)

	if f7 == funct7MulD {
		return h.execOpM(insn, r1, r2, f3)
	}
	if f7 != funct7Base && f7 != funct7Alt {
		return undefinedOperation(insn)
	}
	// Only ADD/SUB and SRL/SRA accept the alternate funct7.
	if f7 == funct7Alt && f3 != 0b000 && f3 != 0b101 {
		return undefinedOperation(insn)
	}

	var val uint32
	switch f3 {
	case 0b000: // ADD/SUB
		if f7 == funct7Alt {
			val = r1 - r2
		} else {
			val = r1 + r2
		}
	case 0b001: // SLL
		val = r1 << (r2 & 0x1f)
	case 0b010: // SLT
		if int32(r1) < int32(r2) {
			val = 1
		}
	case 0b011: // SLTU
		if r1 < r2 {
			val = 1
		}
	case 0b100: // XOR
		val = r1 ^ r2
	case 0b101: // SRL/SRA
		if f7 == funct7Alt {
			val = uint32(int32(r1) >> (r2 & 0x1f))
		} else {
			val = r1 >> (r2 & 0x1f)
		}
	case 0b110: // OR
		val = r1 | r2
	case 0b111: // AND
		val = r1 & r2
	}

	h.WriteReg(rd(insn), val)
	return nil
}

var unimplementedM = [8]string{
	0b100: "DIV",
	0b101: "DIVU",
	0b110: "REM",
	0b111: "REMU",
}

// M extension operations
func (h *Hart) execOpM(insn uint32, r1, r2 uint32, f3 uint32) error {
	var val uint32

	switch f3 {
	case 0b000: // MUL
		val = r1 * r2
	case 0b001: // MULH
		val = uint32(uint64(int64(int32(r1))*int64(int32(r2))) >> 32)
	case 0b010: // MULHSU
		val = uint32(uint64(int64(int32(r1))*int64(r2)) >> 32)
	case 0b011: // MULHU
		val = uint32(uint64(r1) * uint64(r2) >> 32)
	default:
		return &FaultError{Fault: FaultUndefinedOperation, Insn: insn, Op: unimplementedM[f3]}
	}

	h.WriteReg(rd(insn), val)
	return nil
}

// JAL - Jump and Link
func (h *Hart) execJal(insn uint32) error {
	target := h.PC + immJ(insn)
	h.WriteReg(rd(insn), h.PC+4)
	h.jump(target)
	return nil
}

// JALR - Jump and Link Register
func (h *Hart) execJalr(insn uint32) error {
	if funct3(insn) != 0 {
		return undefinedOperation(insn)
	}
	target := (h.ReadReg(rs1(insn)) + immI(insn)) &^ 1
	h.WriteReg(rd(insn), h.PC+4)
	h.jump(target)
	return nil
}

// Branch instructions
func (h *Hart) execBranch(insn uint32) error {
	r1 := h.ReadReg(rs1(insn))
	r2 := h.ReadReg(rs2(insn))

	var taken bool
	switch funct3(insn) {
	case 0b000: // BEQ
		taken = r1 == r2
	case 0b001: // BNE
		taken = r1 != r2
	case 0b100: // BLT
		taken = int32(r1) < int32(r2)
	case 0b101: // BGE
		taken = int32(r1) >= int32(r2)
	case 0b110: // BLTU
		taken = r1 < r2
	case 0b111: // BGEU
		taken = r1 >= r2
	default:
		return undefinedOperation(insn)
	}

	if taken {
		h.jump(h.PC + immB(insn))
	}
	return nil
}

// Load instructions
func (h *Hart) execLoad(insn uint32) error {
	addr := h.ReadReg(rs1(insn)) + immI(insn)
	f3 := funct3(insn)
	if f3 == 0b011 || f3 > 0b101 {
		return undefinedOperation(insn)
	}

	// Outside RAM and ROM the full sentinel word is loaded whatever the width.
	if !h.Bus.InMemory(addr) {
		h.WriteReg(rd(insn), h.Bus.Sentinel())
		return nil
	}

	var val uint32
	switch f3 {
	case 0b000: // LB
		v, err := h.Bus.Read8(addr)
		if err != nil {
			return err
		}
		val = uint32(int8(v))
	case 0b001: // LH
		v, err := h.Bus.Read16(addr)
		if err != nil {
			return err
		}
		val = uint32(int16(v))
	case 0b010: // LW
		v, err := h.Bus.Read32(addr)
		if err != nil {
			return err
		}
		val = v
	case 0b100: // LBU
		v, err := h.Bus.Read8(addr)
		if err != nil {
			return err
		}
		val = uint32(v)
	case 0b101: // LHU
		v, err := h.Bus.Read16(addr)
		if err != nil {
			return err
		}
		val = uint32(v)
	}

	h.WriteReg(rd(insn), val)
	return nil
}

// Store instructions
func (h *Hart) execStore(insn uint32) error {
	addr := h.ReadReg(rs1(insn)) + immS(insn)
	val := h.ReadReg(rs2(insn))

	// ROM is rejected before the width is even looked at.
	if region, _ := h.Bus.Translate(addr); region == RegionROM {
		return memoryFault(FaultWriteToReadOnlyRegion, addr)
	}

	// Outside RAM and ROM the full register goes to the device and the width
	// is only checked afterwards.
	if !h.Bus.InMemory(addr) {
		if err := h.Bus.WriteMMIO(addr, val); err != nil {
			return err
		}
		if funct3(insn) > 0b010 {
			return undefinedOperation(insn)
		}
		return nil
	}

	switch funct3(insn) {
	case 0b000: // SB
		return h.Bus.Write8(addr, uint8(val))
	case 0b001: // SH
		return h.Bus.Write16(addr, uint16(val))
	case 0b010: // SW
		return h.Bus.Write32(addr, val)
	default:
		return undefinedOperation(insn)
	}
}
