// Package rv32 implements a functional RV32I simulator with the RV32M
// multiply subset, a RAM/ROM address space and a minimal MMIO surface.
package rv32

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// State is the lifecycle state of a hart.
type State uint8

const (
	StateReady State = iota
	StateRunning
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Hart is a single RV32 execution context. It is not safe for concurrent use.
type Hart struct {
	// Integer registers x0-x31
	X [32]uint32

	// Program counter
	PC uint32

	// Instructions dispatched since reset
	InstCount uint64

	Bus *Bus

	// Trace, when set, is called with every fetched instruction.
	Trace func(pc, insn uint32)

	state State
	fault error

	// next-pc requested by the current instruction
	nextPC uint32
	jumped bool
}

// NewHart creates a hart with a fresh address space laid out as mm. UART output
// is written to console.
func NewHart(mm MemoryMap, console io.Writer) (*Hart, error) {
	bus, err := NewBus(mm, console)
	if err != nil {
		return nil, err
	}
	h := &Hart{Bus: bus}
	h.Reset()
	return h, nil
}

// Reset zeroes the registers and counter and points pc at the ROM base.
// Memory contents are left alone.
func (h *Hart) Reset() {
	h.X = [32]uint32{}
	h.PC = h.Bus.ROM.Base
	h.InstCount = 0
	h.state = StateReady
	h.fault = nil
	h.jumped = false
}

// State returns the lifecycle state.
func (h *Hart) State() State { return h.state }

// Fault returns the error that halted the hart, or nil.
func (h *Hart) Fault() error { return h.fault }

// Resume clears a halt so that stepping may continue from the current pc.
func (h *Hart) Resume() {
	if h.state == StateHalted {
		h.state = StateRunning
		h.fault = nil
	}
}

// ReadReg reads an integer register
func (h *Hart) ReadReg(reg uint32) uint32 {
	return h.X[reg&0x1f]
}

// WriteReg writes an integer register. A write to x0 lasts until the end of
// the current step.
func (h *Hart) WriteReg(reg uint32, val uint32) {
	h.X[reg&0x1f] = val
}

// SetPC sets the program counter
func (h *Hart) SetPC(pc uint32) {
	h.PC = pc
}

// LoadProgram places words at the ROM base, in order.
func (h *Hart) LoadProgram(words []uint32) error {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		cpuEndian.PutUint32(buf[4*i:], w)
	}
	return h.LoadBytes(h.Bus.ROM.Base, buf)
}

// LoadBytes copies a raw image into RAM or ROM before execution.
func (h *Hart) LoadBytes(addr uint32, data []byte) error {
	if err := h.Bus.LoadBytes(addr, data); err != nil {
		return fmt.Errorf("rv32: load: %w", err)
	}
	return nil
}

// jump sets the pc for the next step, overriding the default advance.
func (h *Hart) jump(target uint32) {
	h.nextPC = target
	h.jumped = true
}

func (h *Hart) halt(err error) error {
	h.state = StateHalted
	h.fault = err
	return err
}

// Step executes a single instruction. A non-nil error is always a
// *FaultError and leaves the hart halted.
func (h *Hart) Step() error {
	if h.state == StateHalted {
		return h.fault
	}
	h.state = StateRunning

	pc := h.PC
	if pc&0b11 != 0 {
		return h.halt(&FaultError{Fault: FaultPCUnaligned, PC: pc})
	}
	if !h.Bus.InMemory(pc) {
		return h.halt(&FaultError{Fault: FaultPCOutOfRange, PC: pc})
	}

	insn, err := h.Bus.Fetch(pc)
	if err != nil {
		var fe *FaultError
		if errors.As(err, &fe) {
			fe.PC = pc
		}
		return h.halt(err)
	}
	if h.Trace != nil {
		h.Trace(pc, insn)
	}

	h.jumped = false
	err = h.Execute(insn)

	var fe *FaultError
	if errors.As(err, &fe) {
		fe.PC = pc
		if fe.Insn == 0 {
			fe.Insn = insn
		}
		// Undecodable instructions have no effect and are not counted.
		if fe.Fault.isDecode() {
			return h.halt(err)
		}
	}

	if h.jumped {
		h.PC = h.nextPC
	} else {
		h.PC = pc + 4
	}
	h.X[0] = 0
	h.InstCount++

	if err != nil {
		return h.halt(err)
	}
	return nil
}

// Run steps the hart until it faults, ctx is cancelled or limit instructions
// have been executed (a zero limit means no limit). The fault that ended the
// run is returned as is; a ControlledShutdown fault is a clean exit.
func (h *Hart) Run(ctx context.Context, limit uint64) error {
	const batch = 4096

	if h.state == StateHalted {
		return fmt.Errorf("%w: %w", ErrHalted, h.fault)
	}

	var executed uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		for i := 0; i < batch; i++ {
			if limit != 0 && executed >= limit {
				return ErrInstructionLimit
			}
			if err := h.Step(); err != nil {
				return err
			}
			executed++
		}
	}
}
