// Package report formats the end-of-run summary and register dumps.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/tinyrange/rv32/internal/rv32"
)

// registerNames are the ABI names of x0-x31, padded to three columns.
var registerNames = [32]string{
	"zero", "ra ", "sp ", "gp ", "tp ", "t0 ", "t1 ", "t2 ",
	"s0 ", "s1 ", "a0 ", "a1 ", "a2 ", "a3 ", "a4 ", "a5 ",
	"a6 ", "a7 ", "s2 ", "s3 ", "s4 ", "s5 ", "s6 ", "s7 ",
	"s8 ", "s9 ", "s10", "s11", "t3 ", "t4 ", "t5 ", "t6 ",
}

// RegisterName returns the padded ABI name of register i, or "" when i is not
// a register index.
func RegisterName(i int) string {
	if i < 0 || i >= len(registerNames) {
		return ""
	}
	return registerNames[i]
}

var faultMessages = map[rv32.Fault]string{
	rv32.FaultUndefinedOpcode:       "Undefined opcode",
	rv32.FaultUndefinedOperation:    "Undefined micro-operation",
	rv32.FaultPCUnaligned:           "Unaligned PC",
	rv32.FaultPCOutOfRange:          "PC out of range!",
	rv32.FaultWriteToReadOnlyRegion: "Write to read-only region",
	rv32.FaultControlledShutdown:    "Poweroff by SYSCON",
	rv32.FaultAccessOutOfBounds:     "Memory access out of bounds",
	rv32.FaultStoreUnmapped:         "Store to unmapped address",
}

// Message describes why a run ended.
func Message(err error) string {
	var fe *rv32.FaultError
	switch {
	case err == nil:
		return "Stopped"
	case errors.As(err, &fe) && fe.Op != "":
		return fmt.Sprintf("Unimplemented operation %s", fe.Op)
	case errors.As(err, &fe):
		if msg, ok := faultMessages[fe.Fault]; ok {
			return msg
		}
	case errors.Is(err, rv32.ErrInstructionLimit):
		return "Instruction limit reached"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out"
	case errors.Is(err, context.Canceled):
		return "Interrupted"
	}
	return fmt.Sprintf("Unknown fault: %v", err)
}

// Summary writes the end-of-run message followed by the instruction count.
func Summary(w io.Writer, err error, executed uint64) error {
	_, werr := fmt.Fprintf(w, "%s\nExecuted %d instructions\n", Message(err), executed)
	return werr
}

// Registers writes x1-x31 and the pc, one per line.
func Registers(w io.Writer, h *rv32.Hart) error {
	for i := 1; i < len(h.X); i++ {
		if _, err := fmt.Fprintf(w, "x%02d (%s): 0x%08x\t%d\n", i, RegisterName(i), h.X[i], int32(h.X[i])); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "PC:  0x%08x\n", h.PC)
	return err
}

// Register is one entry of a Snapshot.
type Register struct {
	Name  string
	Hex   string
	Value int32
}

// Snapshot is the hart state as written by DumpState.
type Snapshot struct {
	PC        string
	InstCount uint64
	State     string
	Fault     string
	Registers []Register
}

// Capture takes a snapshot of h.
func Capture(h *rv32.Hart) Snapshot {
	s := Snapshot{
		PC:        fmt.Sprintf("0x%08x", h.PC),
		InstCount: h.InstCount,
		State:     h.State().String(),
		Registers: make([]Register, len(h.X)),
	}
	if err := h.Fault(); err != nil {
		s.Fault = err.Error()
	}
	for i, v := range h.X {
		s.Registers[i] = Register{
			Name:  fmt.Sprintf("x%d/%s", i, RegisterName(i)),
			Hex:   fmt.Sprintf("0x%08x", v),
			Value: int32(v),
		}
	}
	return s
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// DumpState writes a structured dump of the hart state.
func DumpState(w io.Writer, h *rv32.Hart) {
	dumpConfig.Fdump(w, Capture(h))
}
