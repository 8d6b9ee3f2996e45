package wire

import "testing"

func TestUint16RoundTrip(t *testing.T) {
	b := make([]byte, 4)
	if _, err := PutUint16(b, 1, 0xBEEF); err != nil {
		t.Fatal("put error:", err)
	}
	got, _, err := Uint16(b, 1)
	if err != nil {
		t.Fatal("get error:", err)
	}
	if got != 0xBEEF {
		t.Errorf("got %#04x, want 0xbeef", got)
	}
}

func TestUint32TruncatedFrame(t *testing.T) {
	b := make([]byte, 3)
	if _, err := PutUint32(b, 0, 1); err != TruncatedFrame {
		t.Errorf("got %v, want TruncatedFrame", err)
	}
	if _, _, err := Uint32(b, 0); err != TruncatedFrame {
		t.Errorf("got %v, want TruncatedFrame", err)
	}
}

func TestCRC16Vectors(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint16
	}{
		{"empty", nil, 0xFFFF},
		{"single zero", []byte{0x00}, 0xE1F0},
		{"three bytes", []byte{0x01, 0x02, 0x03}, 0xADAD},
		{"123456789", []byte("123456789"), 0x29B1},
		{"salt", []byte("NaCl4Life"), 0x9311},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CRC16(c.in); got != c.want {
				t.Errorf("CRC16(%q) = %#04x, want %#04x", c.in, got, c.want)
			}
		})
	}
}

func TestUUIDSwapFieldsInvolution(t *testing.T) {
	u := UUID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10}
	swapped := u.SwapFields()
	if swapped == u {
		t.Fatal("swap did not change the value")
	}
	back := swapped.SwapFields()
	if back != u {
		t.Errorf("swap is not an involution: got %v, want %v", back, u)
	}
	// bytes 8..15 are untouched
	for i := 8; i < 16; i++ {
		if swapped[i] != u[i] {
			t.Errorf("byte %d changed: got %#02x, want %#02x", i, swapped[i], u[i])
		}
	}
}

func TestPackFloatQuality(t *testing.T) {
	b := make([]byte, 5)
	if _, err := PackFloatQuality(b, 0, 14.0, Good); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x41, 0x60, 0x00, 0x00, 0x00}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("got % x, want % x", b, want)
		}
	}

	if _, err := PackFloatQuality(b, 0, 7.0, Uncertain); err != nil {
		t.Fatal(err)
	}
	want = []byte{0x40, 0xE0, 0x00, 0x00, 0x40}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("got % x, want % x", b, want)
		}
	}
}

func TestUnpackFloatQualityUndefinedEncoding(t *testing.T) {
	b := make([]byte, 5)
	PackFloatQuality(b, 0, 1.0, Good)
	b[4] = 0x11 // not one of the four defined values

	_, q, ok, err := UnpackFloatQuality(b, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected ok=false for an undefined quality encoding")
	}
	if q != Bad {
		t.Errorf("got %s, want BAD", q)
	}
}

func TestFloatRoundTrip(t *testing.T) {
	values := []float32{0, 1, -1, 3.14159, -1000000000, 1e-30, float32(1) / 3}
	b := make([]byte, 5)
	for _, v := range values {
		PackFloatQuality(b, 0, v, Good)
		got, _, _, err := UnpackFloatQuality(b, 0)
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Errorf("round trip of %v got %v", v, got)
		}
	}
}

func TestParseEthernetVLAN(t *testing.T) {
	dst := MAC{0x01, 0x0E, 0xCF, 0x00, 0x00, 0x00}
	src := MAC{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	tag := &VLANTag{PCP: 6, VID: 0}
	frame := BuildEthernet(dst, src, tag, EtherTypeProfinet, []byte{0xAA, 0xBB})

	h, err := ParseEthernet(frame)
	if err != nil {
		t.Fatal(err)
	}
	if h.Dst != dst || h.Src != src {
		t.Errorf("got dst=%v src=%v, want dst=%v src=%v", h.Dst, h.Src, dst, src)
	}
	if h.Tag == nil || h.Tag.PCP != 6 {
		t.Fatalf("expected VLAN tag with PCP 6, got %v", h.Tag)
	}
	if h.EtherType != EtherTypeProfinet {
		t.Errorf("got EtherType %#04x, want %#04x", h.EtherType, EtherTypeProfinet)
	}
	if frame[h.PayloadOffset] != 0xAA {
		t.Errorf("payload offset %d points at %#02x, want 0xaa", h.PayloadOffset, frame[h.PayloadOffset])
	}
}

func TestParseEthernetUntagged(t *testing.T) {
	frame := BuildEthernet(MAC{}, MAC{}, nil, EtherTypeProfinet, []byte{0x01})
	h, err := ParseEthernet(frame)
	if err != nil {
		t.Fatal(err)
	}
	if h.Tag != nil {
		t.Errorf("expected no VLAN tag, got %v", h.Tag)
	}
	if h.PayloadOffset != 14 {
		t.Errorf("got payload offset %d, want 14", h.PayloadOffset)
	}
}

func TestDCPBlockRoundTrip(t *testing.T) {
	blk := DCPBlock{Option: 0x02, Suboption: 0x01, Payload: []byte{0x01, 0x02, 0x03}}
	raw := blk.Marshal(nil)
	if len(raw)%2 != 0 {
		t.Fatalf("odd-length payload must be padded: got %d bytes", len(raw))
	}

	got, next, err := ParseDCPBlock(raw, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Option != blk.Option || got.Suboption != blk.Suboption {
		t.Errorf("got %+v, want %+v", got, blk)
	}
	if string(got.Payload) != string(blk.Payload) {
		t.Errorf("got payload % x, want % x", got.Payload, blk.Payload)
	}
	if next != len(raw) {
		t.Errorf("got next offset %d, want %d", next, len(raw))
	}
}
