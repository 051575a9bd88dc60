package rv32

import (
	"io"
)

// Device is a memory-mapped register reached by an exact address match.
type Device interface {
	// Write handles a store. value is the full source register; devices pick
	// the bits they use.
	Write(value uint32) error
}

// UART emits the low byte of every store to its output, whatever the store width
type UART struct {
	Output io.Writer
}

// NewUART creates a UART writing to output. A nil output discards characters.
func NewUART(output io.Writer) *UART {
	if output == nil {
		output = io.Discard
	}
	return &UART{Output: output}
}

// Write implements Device
func (uart *UART) Write(value uint32) error {
	// Fire and forget: a failing sink never faults the hart.
	_, _ = uart.Output.Write([]byte{byte(value)})
	return nil
}

// Syscon is the system controller. Writing the power-off value halts the hart.
type Syscon struct {
	PowerOff uint32
}

// NewSyscon creates a system controller that powers off on value.
func NewSyscon(value uint32) *Syscon {
	return &Syscon{PowerOff: value}
}

// Write implements Device
func (s *Syscon) Write(value uint32) error {
	if value == s.PowerOff {
		return newFault(FaultControlledShutdown)
	}
	return nil
}

var (
	_ Device = (*UART)(nil)
	_ Device = (*Syscon)(nil)
)
