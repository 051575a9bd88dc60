package rv32

import (
	"errors"
	"fmt"
)

// Default memory layout
const (
	DefaultROMBase  uint32 = 0x8000_0000
	DefaultROMSize  uint32 = 16 * 1024
	DefaultRAMBase  uint32 = 0x2000_0000
	DefaultRAMSize  uint32 = 2 * 1024
	DefaultUARTAddr uint32 = 0x1000_0000
	DefaultSyscon   uint32 = 0x1110_0000

	// DefaultPowerOff is the value that, written to SYSCON, powers the hart off.
	DefaultPowerOff uint32 = 0x5555

	// DefaultMMIOSentinel is returned for loads outside RAM and ROM. It is a
	// fixed value and not the result of any device read.
	DefaultMMIOSentinel uint32 = 0xdead_beef
)

// MemoryMap describes where the regions and devices of the address space live.
type MemoryMap struct {
	ROMBase uint32
	ROMSize uint32
	RAMBase uint32
	RAMSize uint32

	UARTAddr   uint32
	SysconAddr uint32
	PowerOff   uint32

	// MMIOSentinel is the value loaded from any address outside RAM and ROM.
	MMIOSentinel uint32

	// StrictMMIO turns stores to unrecognised unmapped addresses into
	// FaultStoreUnmapped instead of silently accepting them.
	StrictMMIO bool
}

// DefaultMemoryMap returns the reference layout.
func DefaultMemoryMap() MemoryMap {
	return MemoryMap{
		ROMBase:      DefaultROMBase,
		ROMSize:      DefaultROMSize,
		RAMBase:      DefaultRAMBase,
		RAMSize:      DefaultRAMSize,
		UARTAddr:     DefaultUARTAddr,
		SysconAddr:   DefaultSyscon,
		PowerOff:     DefaultPowerOff,
		MMIOSentinel: DefaultMMIOSentinel,
	}
}

func regionEnd(base, size uint32) uint64 {
	return uint64(base) + uint64(size)
}

func inRange(addr, base, size uint32) bool {
	return addr >= base && uint64(addr) < regionEnd(base, size)
}

// Validate checks that the layout is usable.
func (m MemoryMap) Validate() error {
	var errs []error
	if m.ROMSize == 0 {
		errs = append(errs, errors.New("rom size must be non-zero"))
	}
	if m.RAMSize == 0 {
		errs = append(errs, errors.New("ram size must be non-zero"))
	}
	if m.ROMBase%4 != 0 || m.ROMSize%4 != 0 {
		errs = append(errs, fmt.Errorf("rom [0x%08x, +0x%x) must be word aligned", m.ROMBase, m.ROMSize))
	}
	if m.RAMBase%4 != 0 || m.RAMSize%4 != 0 {
		errs = append(errs, fmt.Errorf("ram [0x%08x, +0x%x) must be word aligned", m.RAMBase, m.RAMSize))
	}
	if regionEnd(m.ROMBase, m.ROMSize) > 1<<32 {
		errs = append(errs, fmt.Errorf("rom [0x%08x, +0x%x) exceeds the 32-bit address space", m.ROMBase, m.ROMSize))
	}
	if regionEnd(m.RAMBase, m.RAMSize) > 1<<32 {
		errs = append(errs, fmt.Errorf("ram [0x%08x, +0x%x) exceeds the 32-bit address space", m.RAMBase, m.RAMSize))
	}
	if uint64(m.ROMBase) < regionEnd(m.RAMBase, m.RAMSize) && uint64(m.RAMBase) < regionEnd(m.ROMBase, m.ROMSize) {
		errs = append(errs, errors.New("ram and rom overlap"))
	}
	for _, dev := range []struct {
		name string
		addr uint32
	}{{"uart", m.UARTAddr}, {"syscon", m.SysconAddr}} {
		if inRange(dev.addr, m.ROMBase, m.ROMSize) || inRange(dev.addr, m.RAMBase, m.RAMSize) {
			errs = append(errs, fmt.Errorf("%s address 0x%08x lies inside memory", dev.name, dev.addr))
		}
	}
	if m.UARTAddr == m.SysconAddr {
		errs = append(errs, fmt.Errorf("uart and syscon share address 0x%08x", m.UARTAddr))
	}
	return errors.Join(errs...)
}
