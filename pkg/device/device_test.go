package device

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/pnio-go/pnetd/internal/palsim"
	"github.com/pnio-go/pnetd/pkg/pal"
)

func newTestDevice(t *testing.T) (*Device, *palsim.Sim) {
	t.Helper()
	sim := palsim.New([6]byte{0x12, 0x34, 0x00, 0x78, 0x90, 0xab})
	cfg := Config{
		NumPorts:           1,
		StoreDir:           t.TempDir(),
		AlarmQueueCapacity: 8,
		SchedulerCapacity:  8,
	}
	d, err := New(cfg, sim, zerolog.Nop(), Callbacks{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, sim
}

func TestSetStationNameValidatesAndPersists(t *testing.T) {
	d, _ := newTestDevice(t)
	if err := d.SetStationName("my-device"); err != nil {
		t.Fatalf("SetStationName: %v", err)
	}
	if d.StationName() != "my-device" {
		t.Fatalf("StationName() = %q", d.StationName())
	}

	if err := d.SetStationName("Not Valid!"); err == nil {
		t.Fatal("expected an error for an invalid station name")
	}
	if d.StationName() != "my-device" {
		t.Fatalf("StationName() changed after a rejected set: %q", d.StationName())
	}
}

func TestSetStationNamePersistsAcrossRestart(t *testing.T) {
	sim := palsim.New([6]byte{0x12, 0x34, 0x00, 0x78, 0x90, 0xab})
	dir := t.TempDir()
	cfg := Config{NumPorts: 1, StoreDir: dir, AlarmQueueCapacity: 8, SchedulerCapacity: 8}

	d1, err := New(cfg, sim, zerolog.Nop(), Callbacks{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d1.SetStationName("persisted-name"); err != nil {
		t.Fatalf("SetStationName: %v", err)
	}

	d2, err := New(cfg, sim, zerolog.Nop(), Callbacks{})
	if err != nil {
		t.Fatalf("New (restart): %v", err)
	}
	if d2.StationName() != "persisted-name" {
		t.Fatalf("StationName() after restart = %q, want %q", d2.StationName(), "persisted-name")
	}
}

func TestSetIPSuiteRejectsInvalidNetmask(t *testing.T) {
	d, _ := newTestDevice(t)
	// 0x00FF0000 is not a contiguous-MSB-ones mask.
	if err := d.SetIPSuite(0xC0A80101, 0x00FF0000, 0); err == nil {
		t.Fatal("expected an error for a non-contiguous netmask")
	}
}

func TestSetIPSuiteAcceptsValidSuite(t *testing.T) {
	d, _ := newTestDevice(t)
	ip := uint32(0xC0A80164)   // 192.168.1.100
	mask := uint32(0xFFFFFF00) // 255.255.255.0
	gw := uint32(0xC0A80101)   // 192.168.1.1
	if err := d.SetIPSuite(ip, mask, gw); err != nil {
		t.Fatalf("SetIPSuite: %v", err)
	}
	gotIP, gotMask, gotGW := d.IPSuite()
	if gotIP != ip || gotMask != mask || gotGW != gw {
		t.Fatalf("IPSuite() = %#x/%#x/%#x, want %#x/%#x/%#x", gotIP, gotMask, gotGW, ip, mask, gw)
	}
}

func TestHandlePeriodicDispatchesDCPSetName(t *testing.T) {
	d, sim := newTestDevice(t)

	var gotName string
	d.cb.StationNameChanged = func(name string) { gotName = name }

	setNameReq := []byte{
		0x12, 0x34, 0x00, 0x78, 0x90, 0xab, 0xc8, 0x5b, 0x76, 0xe6, 0x89, 0xdf,
		0x88, 0x92, 0xfe, 0xfd, 0x04, 0x00, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00,
		0x00, 0x12, 0x02, 0x02, 0x00, 0x0e, 0x00, 0x00, 0x72, 0x74, 0x2d, 0x6c,
		0x61, 0x62, 0x73, 0x2d, 0x64, 0x65, 0x6d, 0x6f, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}

	var dst, src [6]byte
	copy(dst[:], setNameReq[0:6])
	copy(src[:], setNameReq[6:12])
	sim.DeliverEthernet(pal.EtherFrame{
		Dst:       dst,
		Src:       src,
		EtherType: 0x8892,
		Payload:   setNameReq[14:],
	})

	d.HandlePeriodic(sim.NowMicros())

	if gotName != "rt-labs-demo" {
		t.Fatalf("StationNameChanged callback got %q, want %q", gotName, "rt-labs-demo")
	}
	if d.StationName() != "rt-labs-demo" {
		t.Fatalf("StationName() = %q", d.StationName())
	}
}
