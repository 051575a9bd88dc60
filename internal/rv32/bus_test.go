package rv32

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func newTestBus(t *testing.T, mm MemoryMap) (*Bus, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	bus, err := NewBus(mm, out)
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	return bus, out
}

func TestTranslate(t *testing.T) {
	bus, _ := newTestBus(t, DefaultMemoryMap())

	tests := []struct {
		addr   uint32
		region Region
		offset uint32
	}{
		{DefaultRAMBase, RegionRAM, 0},
		{DefaultRAMBase + DefaultRAMSize - 1, RegionRAM, DefaultRAMSize - 1},
		{DefaultRAMBase + DefaultRAMSize, RegionUnmapped, 0},
		{DefaultROMBase, RegionROM, 0},
		{DefaultROMBase + 0x100, RegionROM, 0x100},
		{DefaultROMBase - 1, RegionUnmapped, 0},
		{DefaultUARTAddr, RegionMMIO, 0},
		{DefaultUARTAddr + 1, RegionUnmapped, 0},
		{DefaultSyscon, RegionMMIO, 0},
		{0, RegionUnmapped, 0},
		{0xffff_ffff, RegionUnmapped, 0},
	}

	for _, tt := range tests {
		region, offset := bus.Translate(tt.addr)
		if region != tt.region || offset != tt.offset {
			t.Errorf("Translate(0x%08x) = %v, 0x%x; want %v, 0x%x", tt.addr, region, offset, tt.region, tt.offset)
		}
	}
}

func TestBusLittleEndian(t *testing.T) {
	bus, _ := newTestBus(t, DefaultMemoryMap())
	copy(bus.RAM.Data, []byte{0x78, 0x56, 0x34, 0x12})

	if v, _ := bus.Read32(DefaultRAMBase); v != 0x12345678 {
		t.Errorf("Read32 = %#x", v)
	}
	if v, _ := bus.Read16(DefaultRAMBase + 2); v != 0x1234 {
		t.Errorf("Read16 = %#x", v)
	}
	if v, _ := bus.Read8(DefaultRAMBase + 1); v != 0x56 {
		t.Errorf("Read8 = %#x", v)
	}

	if err := bus.Write16(DefaultRAMBase+1, 0xaabb); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(bus.RAM.Data[:4], []byte{0x78, 0xbb, 0xaa, 0x12}) {
		t.Errorf("ram = % x", bus.RAM.Data[:4])
	}
}

func TestBusBounds(t *testing.T) {
	bus, _ := newTestBus(t, DefaultMemoryMap())
	end := DefaultRAMBase + DefaultRAMSize

	if _, err := bus.Read32(end - 4); err != nil {
		t.Errorf("last word: %v", err)
	}
	if _, err := bus.Read32(end - 3); FaultOf(err) != FaultAccessOutOfBounds {
		t.Errorf("straddling read: got %v", err)
	}
	if err := bus.Write16(end-1, 1); FaultOf(err) != FaultAccessOutOfBounds {
		t.Errorf("straddling write: got %v", err)
	}

	romEnd := DefaultROMBase + DefaultROMSize
	if _, err := bus.Read32(romEnd - 2); FaultOf(err) != FaultAccessOutOfBounds {
		t.Errorf("straddling rom read: got %v", err)
	}
}

func TestBusROMIsReadOnly(t *testing.T) {
	bus, _ := newTestBus(t, DefaultMemoryMap())

	err := bus.Write8(DefaultROMBase+3, 1)
	var fe *FaultError
	if !errors.As(err, &fe) || fe.Fault != FaultWriteToReadOnlyRegion || fe.Addr != DefaultROMBase+3 {
		t.Fatalf("got %v", err)
	}
	if bus.ROM.Data[3] != 0 {
		t.Error("rom modified")
	}
}

func TestBusSentinel(t *testing.T) {
	mm := DefaultMemoryMap()
	mm.MMIOSentinel = 0x0bad_f00d
	bus, out := newTestBus(t, mm)

	for _, addr := range []uint32{DefaultUARTAddr, DefaultSyscon, 0x4000_0000} {
		v, err := bus.Read32(addr)
		if err != nil || v != 0x0badf00d {
			t.Errorf("Read32(0x%08x) = %#x, %v", addr, v, err)
		}
	}
	if out.Len() != 0 {
		t.Error("reading the uart produced output")
	}
}

func TestBusUARTTruncates(t *testing.T) {
	bus, out := newTestBus(t, DefaultMemoryMap())

	for _, v := range []uint32{'o', 0x1234_5600 | 'k', '\n'} {
		if err := bus.Write32(DefaultUARTAddr, v); err != nil {
			t.Fatal(err)
		}
	}
	if out.String() != "ok\n" {
		t.Errorf("output = %q", out.String())
	}
}

type recordingDevice struct {
	values []uint32
}

func (d *recordingDevice) Write(value uint32) error {
	d.values = append(d.values, value)
	return nil
}

func TestBusCustomDevice(t *testing.T) {
	bus, _ := newTestBus(t, DefaultMemoryMap())
	dev := &recordingDevice{}
	bus.AddDevice(0x3000_0000, dev)

	if err := bus.WriteMMIO(0x3000_0000, 0xdead_beef); err != nil {
		t.Fatal(err)
	}
	if err := bus.Write8(0x3000_0001, 1); err != nil {
		t.Fatal(err)
	}

	if len(dev.values) != 1 || dev.values[0] != 0xdeadbeef {
		t.Errorf("device saw values=%#x", dev.values)
	}
}

func TestBusSysconSeesWholeValue(t *testing.T) {
	bus, _ := newTestBus(t, DefaultMemoryMap())

	// Only the power-off value itself shuts down, not its low byte.
	if err := bus.WriteMMIO(DefaultSyscon, 0x55); err != nil {
		t.Errorf("low byte: %v", err)
	}
	if err := bus.WriteMMIO(DefaultSyscon, 0x1_5555); err != nil {
		t.Errorf("wider value: %v", err)
	}
	if err := bus.WriteMMIO(DefaultSyscon, DefaultPowerOff); FaultOf(err) != FaultControlledShutdown {
		t.Errorf("power-off value: got %v", err)
	}
}

func TestBusSyscon(t *testing.T) {
	bus, _ := newTestBus(t, DefaultMemoryMap())

	if err := bus.Write32(DefaultSyscon, 0x7777); err != nil {
		t.Errorf("other value: %v", err)
	}

	err := bus.Write32(DefaultSyscon, DefaultPowerOff)
	var fe *FaultError
	if !errors.As(err, &fe) || fe.Fault != FaultControlledShutdown || fe.Addr != DefaultSyscon {
		t.Fatalf("got %v", err)
	}
}

func TestBusFetch(t *testing.T) {
	bus, _ := newTestBus(t, DefaultMemoryMap())
	if err := bus.LoadBytes(DefaultRAMBase+8, []byte{0x13, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}

	if insn, err := bus.Fetch(DefaultRAMBase + 8); err != nil || insn != 0x13 {
		t.Errorf("fetch from ram = %#x, %v", insn, err)
	}
	if _, err := bus.Fetch(DefaultUARTAddr); FaultOf(err) != FaultPCOutOfRange {
		t.Errorf("fetch from mmio: got %v", err)
	}
}

func TestBusLoadBytes(t *testing.T) {
	bus, _ := newTestBus(t, DefaultMemoryMap())

	if err := bus.LoadBytes(DefaultROMBase, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(bus.ROM.Data[:3], []byte{1, 2, 3}) {
		t.Errorf("rom = % x", bus.ROM.Data[:3])
	}

	err := bus.LoadBytes(DefaultRAMBase+DefaultRAMSize-2, []byte{1, 2, 3})
	if !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("overflowing load: got %v", err)
	}
	if err := bus.LoadBytes(DefaultUARTAddr, []byte{1}); err == nil {
		t.Error("load into mmio succeeded")
	}
}

func TestBusClearRAM(t *testing.T) {
	bus, _ := newTestBus(t, DefaultMemoryMap())
	bus.ROM.Data[0] = 0xaa
	bus.RAM.Data[0] = 0xbb

	bus.ClearRAM()

	if bus.RAM.Data[0] != 0 || bus.ROM.Data[0] != 0xaa {
		t.Errorf("ram=%#x rom=%#x", bus.RAM.Data[0], bus.ROM.Data[0])
	}
}

func TestMemoryMapValidate(t *testing.T) {
	if err := DefaultMemoryMap().Validate(); err != nil {
		t.Fatalf("default map: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*MemoryMap)
		want   string
	}{
		{"empty rom", func(m *MemoryMap) { m.ROMSize = 0 }, "rom size"},
		{"unaligned ram", func(m *MemoryMap) { m.RAMBase = 0x2000_0002 }, "word aligned"},
		{"overflow", func(m *MemoryMap) { m.ROMBase = 0xffff_f000; m.ROMSize = 0x2000 }, "32-bit"},
		{"overlap", func(m *MemoryMap) { m.RAMBase = DefaultROMBase + 0x100 }, "overlap"},
		{"uart in ram", func(m *MemoryMap) { m.UARTAddr = DefaultRAMBase + 4 }, "uart address"},
		{"shared device", func(m *MemoryMap) { m.SysconAddr = m.UARTAddr }, "share"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mm := DefaultMemoryMap()
			tt.modify(&mm)
			err := mm.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
			if _, err := NewBus(mm, nil); err == nil {
				t.Error("NewBus accepted an invalid map")
			}
		})
	}
}

func TestFaultError(t *testing.T) {
	err := &FaultError{Fault: FaultUndefinedOperation, PC: 0x8000_0010, Op: "DIV"}
	if !errors.Is(err, ErrUnimplemented) {
		t.Error("unimplemented op does not unwrap")
	}
	if got := err.Error(); !strings.Contains(got, "DIV") || !strings.Contains(got, "0x80000010") {
		t.Errorf("Error() = %q", got)
	}

	if FaultOf(errors.New("other")) != 0 {
		t.Error("FaultOf on a plain error")
	}
	if !FaultControlledShutdown.IsClean() || FaultPCUnaligned.IsClean() {
		t.Error("IsClean")
	}
	if FaultPCOutOfRange.String() != "pc out of range" {
		t.Errorf("String() = %q", FaultPCOutOfRange.String())
	}
}
