// Command rvhello writes a ROM image that prints a message on the UART and
// powers the hart off through SYSCON.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log/slog"
	"os"

	asm "github.com/tinyrange/rv32/internal/asm/rv32"
	"github.com/tinyrange/rv32/internal/loader"
	"github.com/tinyrange/rv32/internal/rv32"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rvhello: %v\n", err)
		os.Exit(1)
	}
}

// helloProgram copies msg from ROM into RAM, then prints it from RAM one byte
// at a time until the terminating zero.
func helloProgram(mm rv32.MemoryMap, msg string) ([]byte, error) {
	data := append([]byte(msg), 0)
	for len(data)%4 != 0 {
		data = append(data, 0)
	}

	var b asm.Builder

	// a0 = source, a1 = destination, a2 = remaining words
	b.JalTo(asm.A0, "code") // a0 <- address of the data block
	for i := 0; i < len(data); i += 4 {
		b.Emit(uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24)
	}
	b.Label("code")
	b.Emit(asm.Li(asm.A1, mm.RAMBase)...)
	b.Emit(asm.Li(asm.A2, uint32(len(data)/4))...)
	b.Label("copy")
	b.Emit(
		asm.Lw(asm.T0, asm.A0, 0),
		asm.Sw(asm.T0, asm.A1, 0),
		asm.Addi(asm.A0, asm.A0, 4),
		asm.Addi(asm.A1, asm.A1, 4),
		asm.Addi(asm.A2, asm.A2, -1),
	)
	b.BranchTo(asm.CondNE, asm.A2, asm.Zero, "copy")

	// a0 = next character, a1 = uart
	b.Emit(asm.Li(asm.A0, mm.RAMBase)...)
	b.Emit(asm.Li(asm.A1, mm.UARTAddr)...)
	b.Label("print")
	b.Emit(asm.Lbu(asm.T0, asm.A0, 0))
	b.BranchTo(asm.CondEQ, asm.T0, asm.Zero, "done")
	b.Emit(
		asm.Sb(asm.T0, asm.A1, 0),
		asm.Addi(asm.A0, asm.A0, 1),
	)
	b.JalTo(asm.Zero, "print")

	b.Label("done")
	b.Emit(asm.Li(asm.A0, mm.SysconAddr)...)
	b.Emit(asm.Li(asm.A1, mm.PowerOff)...)
	b.Emit(asm.Sw(asm.A1, asm.A0, 0))

	return b.Bytes()
}

func run() error {
	out := flag.String("o", "hello.bin", "Output path")
	msg := flag.String("message", "Hello, world!\n", "Message to print")
	asELF := flag.Bool("elf", false, "Write an ELF32 executable instead of a raw image")
	dbg := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *dbg {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	mm := rv32.DefaultMemoryMap()
	if len(*msg)+1 > int(mm.RAMSize) {
		return fmt.Errorf("message does not fit in %d bytes of ram", mm.RAMSize)
	}

	code, err := helloProgram(mm, *msg)
	if err != nil {
		return fmt.Errorf("assemble: %w", err)
	}

	image := code
	if *asELF {
		var buf bytes.Buffer
		if err := loader.WriteELF(&buf, mm.ROMBase, code); err != nil {
			return err
		}
		image = buf.Bytes()
	}

	if err := os.WriteFile(*out, image, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	slog.Info("image written", "path", *out, "bytes", len(image), "elf", *asELF)
	return nil
}
