package rv32

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Endianness
var cpuEndian = binary.LittleEndian

// ErrImageTooLarge is returned when a program does not fit the region it targets.
var ErrImageTooLarge = errors.New("image does not fit in memory region")

// Region classifies an address.
type Region uint8

const (
	RegionUnmapped Region = iota
	RegionRAM
	RegionROM
	RegionMMIO
)

func (r Region) String() string {
	switch r {
	case RegionRAM:
		return "ram"
	case RegionROM:
		return "rom"
	case RegionMMIO:
		return "mmio"
	default:
		return "unmapped"
	}
}

// MemoryRegion represents a contiguous block of RAM or ROM
type MemoryRegion struct {
	Base uint32
	Data []byte
}

// NewMemoryRegion creates a zeroed region of the given size
func NewMemoryRegion(base, size uint32) *MemoryRegion {
	return &MemoryRegion{
		Base: base,
		Data: make([]byte, size),
	}
}

// Size returns the region size in bytes
func (m *MemoryRegion) Size() uint32 {
	return uint32(len(m.Data))
}

// Contains reports whether addr lies inside the region
func (m *MemoryRegion) Contains(addr uint32) bool {
	return inRange(addr, m.Base, m.Size())
}

func (m *MemoryRegion) fits(offset uint32, size int) bool {
	return uint64(offset)+uint64(size) <= uint64(len(m.Data))
}

// Read reads size bytes at offset. The access must lie entirely in the region.
func (m *MemoryRegion) Read(offset uint32, size int) (uint32, error) {
	if !m.fits(offset, size) {
		return 0, fmt.Errorf("memory read out of bounds: offset=0x%x size=%d len=%d", offset, size, len(m.Data))
	}

	switch size {
	case 1:
		return uint32(m.Data[offset]), nil
	case 2:
		return uint32(cpuEndian.Uint16(m.Data[offset:])), nil
	case 4:
		return cpuEndian.Uint32(m.Data[offset:]), nil
	default:
		return 0, fmt.Errorf("invalid read size: %d", size)
	}
}

// Write stores the low size bytes of value at offset.
func (m *MemoryRegion) Write(offset uint32, size int, value uint32) error {
	if !m.fits(offset, size) {
		return fmt.Errorf("memory write out of bounds: offset=0x%x size=%d len=%d", offset, size, len(m.Data))
	}

	switch size {
	case 1:
		m.Data[offset] = byte(value)
	case 2:
		cpuEndian.PutUint16(m.Data[offset:], uint16(value))
	case 4:
		cpuEndian.PutUint32(m.Data[offset:], value)
	default:
		return fmt.Errorf("invalid write size: %d", size)
	}
	return nil
}

// Clear zeroes the region
func (m *MemoryRegion) Clear() {
	clear(m.Data)
}

// Bus routes hart accesses to RAM, ROM and the MMIO devices.
type Bus struct {
	RAM *MemoryRegion
	ROM *MemoryRegion

	// devices are matched by exact address, not by range
	devices map[uint32]Device

	sentinel uint32
	strict   bool
}

// NewBus creates the address space described by mm. UART output goes to console;
// a nil console discards it.
func NewBus(mm MemoryMap, console io.Writer) (*Bus, error) {
	if err := mm.Validate(); err != nil {
		return nil, fmt.Errorf("rv32: invalid memory map: %w", err)
	}

	bus := &Bus{
		RAM:      NewMemoryRegion(mm.RAMBase, mm.RAMSize),
		ROM:      NewMemoryRegion(mm.ROMBase, mm.ROMSize),
		devices:  make(map[uint32]Device),
		sentinel: mm.MMIOSentinel,
		strict:   mm.StrictMMIO,
	}
	bus.AddDevice(mm.UARTAddr, NewUART(console))
	bus.AddDevice(mm.SysconAddr, NewSyscon(mm.PowerOff))
	return bus, nil
}

// AddDevice maps dev at exactly addr.
func (bus *Bus) AddDevice(addr uint32, dev Device) {
	bus.devices[addr] = dev
}

// Translate classifies addr and returns its offset within RAM or ROM.
func (bus *Bus) Translate(addr uint32) (Region, uint32) {
	switch {
	case bus.RAM.Contains(addr):
		return RegionRAM, addr - bus.RAM.Base
	case bus.ROM.Contains(addr):
		return RegionROM, addr - bus.ROM.Base
	}
	if _, ok := bus.devices[addr]; ok {
		return RegionMMIO, 0
	}
	return RegionUnmapped, 0
}

// InMemory reports whether addr resolves into RAM or ROM.
func (bus *Bus) InMemory(addr uint32) bool {
	return bus.RAM.Contains(addr) || bus.ROM.Contains(addr)
}

// Sentinel returns the value loaded from addresses outside RAM and ROM.
func (bus *Bus) Sentinel() uint32 {
	return bus.sentinel
}

// Read reads size bytes at addr. Addresses outside RAM and ROM read as the
// MMIO sentinel without touching any device.
func (bus *Bus) Read(addr uint32, size int) (uint32, error) {
	region, offset := bus.Translate(addr)
	var mem *MemoryRegion
	switch region {
	case RegionRAM:
		mem = bus.RAM
	case RegionROM:
		mem = bus.ROM
	default:
		return bus.sentinel, nil
	}
	val, err := mem.Read(offset, size)
	if err != nil {
		return 0, memoryFault(FaultAccessOutOfBounds, addr)
	}
	return val, nil
}

// Write stores the low size bytes of value at addr. Outside RAM and ROM the
// value goes to WriteMMIO untouched.
func (bus *Bus) Write(addr uint32, size int, value uint32) error {
	region, offset := bus.Translate(addr)
	switch region {
	case RegionROM:
		return memoryFault(FaultWriteToReadOnlyRegion, addr)
	case RegionRAM:
		if err := bus.RAM.Write(offset, size, value); err != nil {
			return memoryFault(FaultAccessOutOfBounds, addr)
		}
		return nil
	default:
		return bus.WriteMMIO(addr, value)
	}
}

// WriteMMIO hands value to the device mapped at exactly addr. Devices see the
// whole value whatever the store width. Stores to addresses with no device
// are accepted unless the bus is strict.
func (bus *Bus) WriteMMIO(addr uint32, value uint32) error {
	dev, ok := bus.devices[addr]
	if !ok {
		if bus.strict {
			return memoryFault(FaultStoreUnmapped, addr)
		}
		return nil
	}

	err := dev.Write(value)
	var fe *FaultError
	if errors.As(err, &fe) {
		fe.Addr = addr
	}
	return err
}

// Read8 reads a byte from the bus
func (bus *Bus) Read8(addr uint32) (uint8, error) {
	val, err := bus.Read(addr, 1)
	return uint8(val), err
}

// Read16 reads a halfword from the bus
func (bus *Bus) Read16(addr uint32) (uint16, error) {
	val, err := bus.Read(addr, 2)
	return uint16(val), err
}

// Read32 reads a word from the bus
func (bus *Bus) Read32(addr uint32) (uint32, error) {
	return bus.Read(addr, 4)
}

// Write8 writes a byte to the bus
func (bus *Bus) Write8(addr uint32, value uint8) error {
	return bus.Write(addr, 1, uint32(value))
}

// Write16 writes a halfword to the bus
func (bus *Bus) Write16(addr uint32, value uint16) error {
	return bus.Write(addr, 2, uint32(value))
}

// Write32 writes a word to the bus
func (bus *Bus) Write32(addr uint32, value uint32) error {
	return bus.Write(addr, 4, value)
}

// Fetch reads the instruction word at addr. Only RAM and ROM are executable.
func (bus *Bus) Fetch(addr uint32) (uint32, error) {
	if !bus.InMemory(addr) {
		return 0, memoryFault(FaultPCOutOfRange, addr)
	}
	return bus.Read32(addr)
}

// LoadBytes copies data into RAM or ROM at addr. It is the only way to
// populate ROM and must be used before execution starts.
func (bus *Bus) LoadBytes(addr uint32, data []byte) error {
	for _, mem := range []*MemoryRegion{bus.ROM, bus.RAM} {
		if !mem.Contains(addr) {
			continue
		}
		offset := addr - mem.Base
		if !mem.fits(offset, len(data)) {
			return fmt.Errorf("%w: %d bytes at 0x%08x, region [0x%08x, +0x%x)",
				ErrImageTooLarge, len(data), addr, mem.Base, mem.Size())
		}
		copy(mem.Data[offset:], data)
		return nil
	}
	return fmt.Errorf("rv32: load address 0x%08x is outside ram and rom", addr)
}

// ClearRAM zeroes RAM, leaving ROM untouched.
func (bus *Bus) ClearRAM() {
	bus.RAM.Clear()
}
