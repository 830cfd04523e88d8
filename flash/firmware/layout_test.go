package firmware

import "testing"

func TestBinEndTruncates(t *testing.T) {
	l := LayoutFor(FamilyE230, SectionApp)
	// bin_begin=0x400, page_size=0x400; a 0x1234-byte image truncates down.
	got := l.BinEnd(0x1234)
	want := uint32(0x1234) - ((0x1234 - l.BinBegin) % l.PageSize)
	if got != want {
		t.Errorf("BinEnd = %#x, want %#x", got, want)
	}
	if (got-l.BinBegin)%l.PageSize != 0 {
		t.Errorf("BinEnd not page-aligned from BinBegin: %#x", got)
	}
}

func TestSkipPageEndFlashAddress(t *testing.T) {
	l := LayoutFor(FamilyE230, SectionApp)
	pageBegin := l.EndFlashAddr - l.FlashBase - l.PageOffset
	if !l.SkipPage(pageBegin) {
		t.Error("expected end-of-flash page to be skipped")
	}
}

func TestSkipPageFlashInfoOnlyForBootloaderSections(t *testing.T) {
	app := LayoutFor(FamilyE230, SectionApp)
	if app.FlashInfoAddr != 0 {
		t.Error("app section should have no flash-info address")
	}
	boot := LayoutFor(FamilyE230, SectionBootloader)
	pageBegin := boot.FlashInfoAddr - boot.FlashBase - boot.PageOffset
	if !boot.SkipPage(pageBegin) {
		t.Error("expected flash-info page to be skipped in bootloader section")
	}
}
