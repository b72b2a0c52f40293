package cmrdr

// subslotDataIndices (0x8000-0x80CF) and vendorGenericIndices (0xAFF0-0xAFFF)
// are the index ranges this package can serve on its own, from data already
// owned by a subslot or a fixed vendor-extension table: IM0..IM4-style
// identification records, port statistics, and similar per-subslot blobs.
// Per-AR (0xC0xx), system-wide (0xE0xx), and asset-management (0xF0xx,
// 0xFBFF) records need device-session state this package doesn't hold;
// pkg/device registers readers for those ranges itself when it assembles
// a Dispatcher, so an index in those ranges is unsupported until the
// caller adds one.
var subslotDataIndices = []uint16{
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
}

var vendorGenericIndices = []uint16{
	0xaff0, 0xaff1, 0xaff2, 0xaff3, 0xaff4, 0xaff5, 0xaff6, 0xaff7,
	0xaff8, 0xaff9, 0xaffa, 0xaffb, 0xaffc, 0xaffd, 0xaffe, 0xafff,
}

// RawBlob is a fixed byte blob a vendor-generic or subslot-data index
// serializes verbatim.
type RawBlob func(req Request) ([]byte, bool)

// RegisterStandardReaders installs readers for every index in
// subslotDataIndices and vendorGenericIndices, each delegating to get to
// produce the bytes for that index. get is called with the request so a
// caller backed by real subslot/vendor-table state can vary its answer per
// slot/subslot; returning ok=false makes that one index unsupported for
// that particular request.
func RegisterStandardReaders(d *Dispatcher, get RawBlob) {
	reader := func(req Request, buf []byte, pos *int) bool {
		data, ok := get(req)
		if !ok {
			return false
		}
		if *pos+len(data) > len(buf) {
			return false
		}
		*pos += copy(buf[*pos:], data)
		return true
	}
	for _, idx := range subslotDataIndices {
		d.Register(idx, reader)
	}
	for _, idx := range vendorGenericIndices {
		d.Register(idx, reader)
	}
}
