package rv32

import (
	"testing"
)

func TestKnownEncodings(t *testing.T) {
	tests := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"lui a0, 0x10000", Lui(A0, 0x10000), 0x10000537},
		{"li a1, 'H'", Addi(A1, Zero, 0x48), 0x04800593},
		{"sb a1, 0(a0)", Sb(A1, A0, 0), 0x00b50023},
		{"add a2, a0, a1", Add(A2, A0, A1), 0x00b50633},
		{"sub a3, a0, a1", Sub(A3, A0, A1), 0x40b506b3},
		{"and a4, a0, a1", And(A4, A0, A1), 0x00b57733},
		{"or a5, a0, a1", Or(A5, A0, A1), 0x00b567b3},
		{"mul a2, a0, a1", Mul(A2, A0, A1), 0x02b50633},
		{"beq a0, a1, +8", Beq(A0, A1, 8), 0x00b50463},
		{"sw zero, 0(t0)", Sw(Zero, T0, 0), 0x0002a023},
		{"jal ra, -4", Jal(RA, -4), 0xffdff0ef},
		{"srai t0, t0, 4", Srai(T0, T0, 4), 0x4042d293},
		{"ret", Jalr(Zero, RA, 0), 0x00008067},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got 0x%08x, want 0x%08x", tt.name, tt.got, tt.want)
		}
	}
}

func TestLi(t *testing.T) {
	if got := Li(A0, 5); len(got) != 1 || got[0] != Addi(A0, Zero, 5) {
		t.Errorf("li a0, 5: got %#x", got)
	}
	if got := Li(A0, 0x10000000); len(got) != 1 || got[0] != Lui(A0, 0x10000) {
		t.Errorf("li a0, 0x10000000: got %#x", got)
	}
	got := Li(A0, 0x5555)
	want := []uint32{Lui(A0, 5), Addi(A0, A0, 0x555)}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("li a0, 0x5555: got %#x, want %#x", got, want)
	}
	// lo part is negative, hi is rounded up
	got = Li(A0, 0x80000800)
	want = []uint32{Lui(A0, 0x80001), Addi(A0, A0, -2048)}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("li a0, 0x80000800: got %#x, want %#x", got, want)
	}
}

func TestBuilderResolvesLabels(t *testing.T) {
	var b Builder
	b.Emit(Addi(A0, Zero, 3))
	b.Label("loop")
	b.Emit(Addi(A0, A0, -1))
	b.BranchTo(CondNE, A0, Zero, "loop")
	b.JalTo(Zero, "end")
	b.Emit(Nop())
	b.Label("end")

	words, err := b.Words()
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if words[2] != Bne(A0, Zero, -4) {
		t.Errorf("bne: got 0x%08x, want 0x%08x", words[2], Bne(A0, Zero, -4))
	}
	if words[3] != Jal(Zero, 8) {
		t.Errorf("jal: got 0x%08x, want 0x%08x", words[3], Jal(Zero, 8))
	}
}

func TestBuilderUndefinedLabel(t *testing.T) {
	var b Builder
	b.JalTo(Zero, "nowhere")
	if _, err := b.Words(); err == nil {
		t.Fatal("expected error for undefined label")
	}
}

func TestImmediateRange(t *testing.T) {
	if _, err := encodeI(2048, X0, 0, X1, opOpImm); err == nil {
		t.Error("expected I-type range error")
	}
	if _, err := encodeB(3, X0, X0, 0); err == nil {
		t.Error("expected error for odd branch offset")
	}
	if _, err := encodeJ(1<<20, X0); err == nil {
		t.Error("expected J-type range error")
	}
}
