package rv32

import (
	"errors"
	"fmt"
)

// Fault identifies why a step terminated the run.
type Fault uint8

// Fault kinds
const (
	FaultUndefinedOpcode Fault = iota + 1
	FaultUndefinedOperation
	FaultPCUnaligned
	FaultPCOutOfRange
	FaultWriteToReadOnlyRegion
	FaultControlledShutdown
	FaultAccessOutOfBounds
	FaultStoreUnmapped
)

var faultNames = map[Fault]string{
	FaultUndefinedOpcode:       "undefined opcode",
	FaultUndefinedOperation:    "undefined operation",
	FaultPCUnaligned:           "unaligned pc",
	FaultPCOutOfRange:          "pc out of range",
	FaultWriteToReadOnlyRegion: "write to read-only region",
	FaultControlledShutdown:    "controlled shutdown",
	FaultAccessOutOfBounds:     "access out of bounds",
	FaultStoreUnmapped:         "store to unmapped address",
}

func (f Fault) String() string {
	if name, ok := faultNames[f]; ok {
		return name
	}
	return fmt.Sprintf("fault(%d)", uint8(f))
}

// IsClean reports whether the fault is a normal termination rather than an error.
func (f Fault) IsClean() bool { return f == FaultControlledShutdown }

// isDecode reports whether the fault was raised before the instruction had any effect.
func (f Fault) isDecode() bool {
	return f == FaultUndefinedOpcode || f == FaultUndefinedOperation
}

var (
	// ErrUnimplemented marks micro-ops that are decoded but deliberately not
	// executed (RV32M division and remainder).
	ErrUnimplemented = errors.New("operation not implemented")

	// ErrHalted is returned by Run when the hart was already halted.
	ErrHalted = errors.New("hart halted")

	// ErrInstructionLimit is returned by Run when the instruction budget is spent.
	ErrInstructionLimit = errors.New("instruction limit reached")
)

// FaultError is the error returned by Step when a fault ends the run.
type FaultError struct {
	Fault Fault
	PC    uint32 // address of the instruction that faulted
	Insn  uint32 // instruction word, zero when the fetch never happened
	Addr  uint32 // effective address for memory faults

	// Op names the micro-op for unimplemented operations.
	Op string
}

func (e *FaultError) Error() string {
	switch {
	case e.Op != "":
		return fmt.Sprintf("%s: %s not implemented at pc=0x%08x", e.Fault, e.Op, e.PC)
	case e.Fault == FaultWriteToReadOnlyRegion, e.Fault == FaultAccessOutOfBounds, e.Fault == FaultStoreUnmapped:
		return fmt.Sprintf("%s: addr=0x%08x pc=0x%08x", e.Fault, e.Addr, e.PC)
	case e.Fault == FaultUndefinedOpcode, e.Fault == FaultUndefinedOperation:
		return fmt.Sprintf("%s: insn=0x%08x pc=0x%08x", e.Fault, e.Insn, e.PC)
	default:
		return fmt.Sprintf("%s: pc=0x%08x", e.Fault, e.PC)
	}
}

// Unwrap exposes ErrUnimplemented for unimplemented micro-ops.
func (e *FaultError) Unwrap() error {
	if e.Op != "" {
		return ErrUnimplemented
	}
	return nil
}

// Is matches another *FaultError carrying the same Fault, so callers can write
// errors.Is(err, &rv32.FaultError{Fault: rv32.FaultPCUnaligned}).
func (e *FaultError) Is(target error) bool {
	t, ok := target.(*FaultError)
	return ok && t.Fault == e.Fault
}

// FaultOf extracts the Fault carried by err, or zero if err is not a fault.
func FaultOf(err error) Fault {
	var fe *FaultError
	if errors.As(err, &fe) {
		return fe.Fault
	}
	return 0
}

func newFault(f Fault) *FaultError {
	return &FaultError{Fault: f}
}

func undefinedOperation(insn uint32) *FaultError {
	return &FaultError{Fault: FaultUndefinedOperation, Insn: insn}
}

func memoryFault(f Fault, addr uint32) *FaultError {
	return &FaultError{Fault: f, Addr: addr}
}
