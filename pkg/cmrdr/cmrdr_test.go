package cmrdr

import "testing"

func TestRmReadIndUnsupportedIndex(t *testing.T) {
	d := NewDispatcher()
	buf := make([]byte, 16)
	pos := 0
	st := d.RmReadInd(Request{Index: 0x1234}, buf, &pos)
	if st == nil {
		t.Fatal("expected a non-nil status for an unregistered index")
	}
	if st.Code == 0 {
		t.Fatal("expected a non-zero error code")
	}
}

func TestRmReadIndSupportedIndex(t *testing.T) {
	d := NewDispatcher()
	d.Register(0x8000, func(req Request, buf []byte, pos *int) bool {
		*pos += copy(buf[*pos:], []byte{1, 2, 3})
		return true
	})
	buf := make([]byte, 16)
	pos := 0
	if st := d.RmReadInd(Request{Index: 0x8000}, buf, &pos); st != nil {
		t.Fatalf("unexpected error status: %v", st)
	}
	if pos != 3 {
		t.Fatalf("pos = %d, want 3", pos)
	}
}

func TestRmReadIndReaderCanDecline(t *testing.T) {
	d := NewDispatcher()
	d.Register(0x9000, func(req Request, buf []byte, pos *int) bool { return false })
	buf := make([]byte, 16)
	pos := 0
	st := d.RmReadInd(Request{Index: 0x9000}, buf, &pos)
	if st == nil {
		t.Fatal("expected an error status when the reader declines")
	}
}

// cannedSweep reproduces the 113-entry literal record-index sweep used to
// exercise the dispatcher across every documented PROFINET index range.
var cannedSweep = []uint16{
	0x8000, 0x8001,
	0x800a, 0x800b, 0x800c,
	0x8010, 0x8011, 0x8012, 0x8013,
	0x801e,
	0x8020,
	0x8027, 0x8028, 0x8029,
	0x802a, 0x802b,
	0x802c, 0x802d,
	0x802f,
	0x8030, 0x8031,
	0x8050, 0x8051, 0x8052, 0x8053, 0x8054, 0x8055, 0x8056, 0x8057,
	0x8060, 0x8061, 0x8062,
	0x8070, 0x8071, 0x8072,
	0x8080,
	0x8090,
	0x80af,
	0x80b0,
	0x80cf,
	0xaff0, 0xaff1, 0xaff2, 0xaff3, 0xaff4, 0xaff5, 0xaff6, 0xaff7, 0xaff8, 0xaff9, 0xaffa, 0xaffb, 0xaffc, 0xaffd, 0xaffe, 0xafff,
	0xc000, 0xc001,
	0xc00a, 0xc00b, 0xc00c,
	0xc010, 0xc011, 0xc012, 0xc013,
	0xe000, 0xe001, 0xe002,
	0xe00a, 0xe00b, 0xe00c,
	0xe010, 0xe011, 0xe012, 0xe013,
	0xe030, 0xe031,
	0xe040,
	0xe050,
	0xe060, 0xe061,
	0xf000,
	0xf00a, 0xf00b, 0xf00c,
	0xf010, 0xf011, 0xf012, 0xf013,
	0xf020,
	0xf80c,
	0xf820, 0xf821,
	0xf830, 0xf831,
	0xf840, 0xf841, 0xf842,
	0xf850,
	0xf860,
	0xf870, 0xf871,
	0xf880, 0xf881, 0xf882, 0xf883, 0xf884, 0xf885, 0xf886, 0xf887, 0xf888, 0xf889,
	0xfbff,
}

func TestCannedSweepSupportedVsUnsupportedCount(t *testing.T) {
	if len(cannedSweep) != 113 {
		t.Fatalf("len(cannedSweep) = %d, want 113", len(cannedSweep))
	}

	d := NewDispatcher()
	RegisterStandardReaders(d, func(req Request) ([]byte, bool) { return []byte{0}, true })

	buf := make([]byte, 1500)
	var fails int
	for _, idx := range cannedSweep {
		pos := 0
		if st := d.RmReadInd(Request{Slot: 1, Subslot: 1, Index: idx}, buf, &pos); st != nil {
			fails++
		}
	}

	// Only the per-AR, system-wide and asset-management ranges are left
	// unregistered by RegisterStandardReaders; everything in the subslot-data
	// and vendor-generic ranges succeeds.
	wantFails := len(cannedSweep) - (len(subslotDataIndices) + len(vendorGenericIndices))
	if fails != wantFails {
		t.Fatalf("fails = %d, want %d", fails, wantFails)
	}
}
