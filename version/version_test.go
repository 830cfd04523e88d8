package version

import "testing"

func TestParsePackRoundTrip(t *testing.T) {
	tr, err := Parse("v2.3.5-rc1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tr != (Triple{2, 3, 5}) {
		t.Fatalf("Parse = %+v, want {2 3 5}", tr)
	}
	packed := tr.Pack()
	if packed != 0x4305 {
		t.Fatalf("Pack() = %#x, want 0x4305", packed)
	}
	unpacked := Unpack(packed)
	if unpacked.String() != "2.3.5" {
		t.Fatalf("Unpack().String() = %s, want 2.3.5", unpacked.String())
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("not-a-version"); err == nil {
		t.Fatal("expected error")
	}
}

func TestPackStringMatchesReportedBootloaderVersion(t *testing.T) {
	// A module reporting bootloader "1.0.0" announces bootver 0x2000 on the
	// wire (§8 scenario 1); our pack formula must agree with that literal.
	boot, err := PackString("1.0.0")
	if err != nil {
		t.Fatalf("PackString: %v", err)
	}
	if boot != 0x2000 {
		t.Fatalf("PackString(1.0.0) = %#x, want 0x2000", boot)
	}
}

func TestCompare(t *testing.T) {
	if Compare("1.2.3", "1.10.0") >= 0 {
		t.Error("expected 1.2.3 < 1.10.0")
	}
	if Compare("1.2.3", "1.2.3") != 0 {
		t.Error("expected equal versions to compare equal")
	}
}
