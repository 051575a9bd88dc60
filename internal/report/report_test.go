package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	asm "github.com/tinyrange/rv32/internal/asm/rv32"
	"github.com/tinyrange/rv32/internal/rv32"
)

func TestRegisterNames(t *testing.T) {
	want := map[int]string{0: "zero", 1: "ra", 2: "sp", 8: "s0", 10: "a0", 17: "a7", 18: "s2", 27: "s11", 28: "t3", 31: "t6"}
	for i, name := range want {
		if got := strings.TrimSpace(RegisterName(i)); got != name {
			t.Errorf("x%d = %q, want %q", i, got, name)
		}
	}
	for i := 0; i < 32; i++ {
		if name := RegisterName(i); len(name) < 3 {
			t.Errorf("x%d name %q is not padded", i, name)
		}
	}
	if RegisterName(-1) != "" || RegisterName(32) != "" {
		t.Error("out of range index returned a name")
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&rv32.FaultError{Fault: rv32.FaultControlledShutdown}, "Poweroff by SYSCON"},
		{&rv32.FaultError{Fault: rv32.FaultUndefinedOpcode}, "Undefined opcode"},
		{&rv32.FaultError{Fault: rv32.FaultUndefinedOperation}, "Undefined micro-operation"},
		{&rv32.FaultError{Fault: rv32.FaultUndefinedOperation, Op: "REMU"}, "Unimplemented operation REMU"},
		{&rv32.FaultError{Fault: rv32.FaultPCUnaligned}, "Unaligned PC"},
		{fmt.Errorf("wrapped: %w", &rv32.FaultError{Fault: rv32.FaultPCOutOfRange}), "PC out of range!"},
		{rv32.ErrInstructionLimit, "Instruction limit reached"},
		{context.DeadlineExceeded, "Timed out"},
		{fmt.Errorf("boom"), "Unknown fault: boom"},
	}

	for _, tt := range tests {
		if got := Message(tt.err); got != tt.want {
			t.Errorf("Message(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := Summary(&buf, &rv32.FaultError{Fault: rv32.FaultControlledShutdown}, 42); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "Poweroff by SYSCON\nExecuted 42 instructions\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func newHart(t *testing.T) *rv32.Hart {
	t.Helper()
	h, err := rv32.NewHart(rv32.DefaultMemoryMap(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.LoadProgram([]uint32{asm.Addi(asm.A0, asm.Zero, -2), 0}); err != nil {
		t.Fatal(err)
	}
	return h
}

func TestRegisters(t *testing.T) {
	h := newHart(t)
	if err := h.Step(); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Registers(&buf, h); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 32 {
		t.Fatalf("got %d lines", len(lines))
	}
	if lines[9] != "x10 (a0 ): 0xfffffffe\t-2" {
		t.Errorf("a0 line = %q", lines[9])
	}
	if lines[31] != "PC:  0x80000004" {
		t.Errorf("pc line = %q", lines[31])
	}
}

func TestDumpState(t *testing.T) {
	h := newHart(t)
	_ = h.Step()
	_ = h.Step() // all-zero word is an undefined opcode

	var buf bytes.Buffer
	DumpState(&buf, h)
	out := buf.String()

	for _, want := range []string{"0x80000004", "halted", "undefined opcode", "x10/a0", "0xfffffffe"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}

	snap := Capture(h)
	if snap.InstCount != 1 || snap.Registers[10].Value != -2 {
		t.Errorf("snapshot = %+v", snap)
	}
}
