package cyclicio

import (
	"testing"
	"time"

	"github.com/wtc-scada/pnioctl/rpcconn"
	"github.com/wtc-scada/pnioctl/wire"
)

// DataStatus on output frames equals 0x35.
func TestDataStatusIs0x35(t *testing.T) {
	if DataStatus != 0x35 {
		t.Fatalf("got DataStatus %#02x, want 0x35", DataStatus)
	}
	iocr := rpcconn.BuildIOCR(rpcconn.IOCROutput, 0xC001, []rpcconn.SubslotEntry{{Subslot: 1, DataLength: 2}}, 1)
	csdu := make([]byte, 40)
	frame := BuildOutputFrame(wire.MAC{1}, wire.MAC{2}, iocr, csdu, 1, 0)

	// The output frame's 802.1Q tag is 0x8100 with PCP 6, VID 0.
	wantTag := []byte{0x81, 0x00, 0xC0, 0x00}
	for i, want := range wantTag {
		if frame[12+i] != want {
			t.Fatalf("got VLAN tag % x, want % x", frame[12:16], wantTag)
		}
	}

	eth, err := wire.ParseEthernet(frame)
	if err != nil {
		t.Fatal(err)
	}
	body := frame[eth.PayloadOffset:]
	dataStatusOffset := len(body) - 2
	if body[dataStatusOffset] != DataStatus {
		t.Errorf("got DataStatus %#02x in frame, want 0x35", body[dataStatusOffset])
	}
}

func TestOutputFramePadsShortCSDU(t *testing.T) {
	iocr := rpcconn.IOCRDescriptor{FrameID: 0xC001, Tag: wire.VLANTag{PCP: 6}}
	frame := BuildOutputFrame(wire.MAC{1}, wire.MAC{2}, iocr, []byte{0x01, 0x02}, 0, 0)
	parsed, err := ParseInputFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed.CSDU) < MinCSDULength {
		t.Errorf("got C-SDU length %d, want >= %d", len(parsed.CSDU), MinCSDULength)
	}
}

func TestInputFrameRoundTrip(t *testing.T) {
	iocr := rpcconn.IOCRDescriptor{FrameID: 0xC000, Tag: wire.VLANTag{PCP: 6}}
	csdu := make([]byte, MinCSDULength)
	wire.PackFloatQuality(csdu, 0, 14.0, wire.Good)
	frame := BuildOutputFrame(wire.MAC{0xaa}, wire.MAC{0xbb}, iocr, csdu, 7, 0)

	parsed, err := ParseInputFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.FrameID != 0xC000 {
		t.Errorf("got FrameID %#04x, want 0xc000", parsed.FrameID)
	}
	if parsed.CycleCounter != 7 {
		t.Errorf("got cycle counter %d, want 7", parsed.CycleCounter)
	}
	v, q, ok, err := wire.UnpackFloatQuality(parsed.CSDU, 0)
	if err != nil || !ok {
		t.Fatalf("unpack failed: v=%v q=%v ok=%v err=%v", v, q, ok, err)
	}
	if v != 14.0 || q != wire.Good {
		t.Errorf("got value %v quality %v, want 14.0 GOOD", v, q)
	}
}

func TestExtractSensorReadingsSkipsNoIOPlacements(t *testing.T) {
	placements := []rpcconn.Placement{
		{Slot: 1, Subslot: 1, DataOffset: 0, DataLength: 0, IOPSOffset: 0},
		{Slot: 1, Subslot: 2, DataOffset: 1, DataLength: 5, IOPSOffset: 6},
	}
	csdu := make([]byte, 10)
	wire.PackFloatQuality(csdu, 1, 7.0, wire.Uncertain)

	readings, err := ExtractSensorReadings(csdu, placements)
	if err != nil {
		t.Fatal(err)
	}
	if len(readings) != 1 {
		t.Fatalf("got %d readings, want 1 (no-IO entry skipped)", len(readings))
	}
	if readings[0].Value != 7.0 || readings[0].Quality != wire.Uncertain {
		t.Errorf("got %+v, want value 7.0 quality UNCERTAIN", readings[0])
	}
}

func TestPackActuatorCommandIsTwoBytes(t *testing.T) {
	csdu := make([]byte, 4)
	p := rpcconn.Placement{DataOffset: 1, DataLength: 2}
	if err := PackActuatorCommand(csdu, p, CommandPWM); err != nil {
		t.Fatal(err)
	}
	if csdu[1] != byte(CommandPWM) || csdu[2] != 0x00 {
		t.Errorf("got bytes %#02x %#02x, want %#02x 0x00", csdu[1], csdu[2], byte(CommandPWM))
	}
}

func TestPeriodMatchesDefaultProfile(t *testing.T) {
	got := Period(64, 128)
	want := 256 * time.Millisecond
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestDueToSend(t *testing.T) {
	now := time.Now()
	last := now.Add(-300 * time.Millisecond)
	if !DueToSend(now, last, 256*time.Millisecond) {
		t.Error("expected due to send after period elapsed")
	}
	if DueToSend(now, now, 256*time.Millisecond) {
		t.Error("expected not due immediately after a send")
	}
}
