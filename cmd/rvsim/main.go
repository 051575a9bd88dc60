// Command rvsim runs an RV32 program image until it powers off or faults.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/tinyrange/rv32/internal/config"
	"github.com/tinyrange/rv32/internal/console"
	"github.com/tinyrange/rv32/internal/loader"
	"github.com/tinyrange/rv32/internal/report"
	"github.com/tinyrange/rv32/internal/rv32"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "rvsim: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	writeConfig string

	romBase    wordFlag
	ramBase    wordFlag
	sentinel   wordFlag
	strictMMIO boolFlag
	maxInsns   uint64Flag
	timeout    durationFlag

	debug    bool
	progress bool
	screen   bool
	regs     bool
	dump     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	fs := flag.NewFlagSet("rvsim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "YAML config file")
	fs.StringVar(&opts.writeConfig, "write-config", "", "Write the effective config to this path, then exit")
	fs.Var(&opts.romBase, "rom-base", "ROM base address")
	fs.Var(&opts.ramBase, "ram-base", "RAM base address")
	fs.Var(&opts.sentinel, "mmio-sentinel", "Value loaded from addresses outside RAM and ROM")
	fs.Var(&opts.strictMMIO, "strict-mmio", "Fault on stores to unmapped addresses")
	fs.Var(&opts.maxInsns, "max-instructions", "Stop after this many instructions (0 = unlimited)")
	fs.Var(&opts.timeout, "timeout", "Stop after this long (0 = no timeout)")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging and instruction trace")
	fs.BoolVar(&opts.progress, "progress", false, "Show a progress bar for runs with an instruction limit")
	fs.BoolVar(&opts.screen, "screen", false, "Render UART output through a terminal emulator and print the final screen")
	fs.BoolVar(&opts.regs, "regs", false, "Print registers when the run ends")
	fs.BoolVar(&opts.dump, "dump", false, "Dump the full hart state to stderr when the run ends")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: rvsim [flags] [image]\n\n")
		fmt.Fprintf(stderr, "Run a raw or ELF32 RISC-V image. The image defaults to the one named in -config.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, fs.Args(), nil
}

func loadConfig(opts *options) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return config.Config{}, err
		}
	}

	if opts.romBase.set {
		cfg.Memory.ROMBase = config.Word(opts.romBase.v)
	}
	if opts.ramBase.set {
		cfg.Memory.RAMBase = config.Word(opts.ramBase.v)
	}
	if opts.sentinel.set {
		cfg.Devices.Sentinel = config.Word(opts.sentinel.v)
	}
	if opts.strictMMIO.set {
		cfg.Devices.StrictMMIO = opts.strictMMIO.v
	}
	if opts.maxInsns.set {
		cfg.Run.MaxInstructions = opts.maxInsns.v
	}
	if opts.timeout.set {
		cfg.Run.Timeout = config.Duration(opts.timeout.v)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, rest, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	} else if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if opts.writeConfig != "" {
		if err := config.Write(opts.writeConfig, cfg); err != nil {
			return err
		}
		slog.Info("config written", "path", opts.writeConfig)
		return nil
	}

	imagePath := cfg.Image
	if len(rest) > 0 {
		imagePath = rest[0]
	}
	if imagePath == "" {
		return errors.New("no image given")
	}

	var transcript console.Transcript
	var screen *console.Screen
	sink := io.MultiWriter(stdout, &transcript)
	if opts.screen {
		screen = console.NewScreen(terminalSize(stdout))
		defer screen.Close()
		sink = io.MultiWriter(screen, &transcript)
	}

	h, err := rv32.NewHart(cfg.MemoryMap(), sink)
	if err != nil {
		return err
	}

	img, err := loader.Load(imagePath, uint32(cfg.Memory.ROMBase))
	if err != nil {
		return err
	}
	if err := img.Apply(h); err != nil {
		return fmt.Errorf("load %s: %w", imagePath, err)
	}
	slog.Debug("image loaded",
		"path", imagePath,
		"format", img.Format,
		"entry", fmt.Sprintf("0x%08x", img.Entry),
		"bytes", img.Size(),
	)

	if opts.debug {
		h.Trace = func(pc, insn uint32) {
			slog.Debug("step", "pc", fmt.Sprintf("0x%08x", pc), "insn", fmt.Sprintf("0x%08x", insn))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if d := cfg.Run.Timeout.Duration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	limit := cfg.Run.MaxInstructions
	var runErr error
	if opts.progress && limit > 0 && isTerminal(stderr) {
		runErr = runWithProgress(ctx, h, limit)
	} else {
		runErr = h.Run(ctx, limit)
	}

	if screen != nil {
		fmt.Fprintln(stdout, screen.Text())
	} else if out := transcript.Bytes(); len(out) > 0 && out[len(out)-1] != '\n' {
		fmt.Fprintln(stdout)
	}

	if err := report.Summary(stdout, runErr, h.InstCount); err != nil {
		return err
	}
	if opts.regs {
		if err := report.Registers(stdout, h); err != nil {
			return err
		}
	}
	if opts.dump {
		report.DumpState(stderr, h)
	}

	slog.Debug("run finished", "instructions", h.InstCount, "uart_bytes", transcript.Len(), "state", h.State())

	if rv32.FaultOf(runErr).IsClean() {
		return nil
	}
	return runErr
}

// progressStep is how many instructions run between progress bar updates.
const progressStep = 1 << 16

func runWithProgress(ctx context.Context, h *rv32.Hart, limit uint64) error {
	pb := progressbar.Default(int64(limit), "executing")
	defer pb.Close()

	for done := uint64(0); done < limit; {
		chunk := min(limit-done, progressStep)
		before := h.InstCount
		err := h.Run(ctx, chunk)
		_ = pb.Add64(int64(h.InstCount - before))
		done += h.InstCount - before
		if err != nil && !errors.Is(err, rv32.ErrInstructionLimit) {
			return err
		}
	}
	return rv32.ErrInstructionLimit
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalSize(w io.Writer) (cols, rows int) {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if cols, rows, err := term.GetSize(int(f.Fd())); err == nil {
			return cols, rows
		}
	}
	return console.DefaultCols, console.DefaultRows
}
