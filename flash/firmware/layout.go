package firmware

import "github.com/modi-tools/fw-updater/flash/catalog"

// Family is the MCU family a module's flash layout is tied to.
type Family string

const (
	FamilyE230 Family = "e230"
	FamilyE103 Family = "e103"
)

// Section is one of the three flash regions a module (or the network
// module's own MCU) can be driven through.
type Section string

const (
	SectionApp              Section = "app"
	SectionBootloader       Section = "bootloader"
	SectionSecondBootloader Section = "second_bootloader"
)

// Layout describes the page-loop geometry for one (family, section) pair,
// recovered from the reference implementation's per-type constants (§3,
// §4.6.2); spec.md states the shape but not every numeric offset, so these
// are grounded directly on module_uploader.py.
type Layout struct {
	FlashBase     uint32
	BinBegin      uint32
	PageSize      uint32
	PageOffset    uint32
	ErasePageNum  uint32
	EndFlashAddr  uint32
	FlashInfoAddr uint32 // 0 means "none" (app section has no flash-info page)
	ResetVector   uint32
}

const flashBase = 0x08000000

var layouts = map[Family]map[Section]Layout{
	FamilyE230: {
		SectionApp: {
			FlashBase: flashBase, BinBegin: 0x400, PageSize: 0x400,
			PageOffset: 0x4C00, ErasePageNum: 1,
			EndFlashAddr: 0x0800F800, ResetVector: 0x08005000,
		},
		SectionSecondBootloader: {
			FlashBase: flashBase, BinBegin: 0x400, PageSize: 0x400,
			PageOffset: 0x4C00, ErasePageNum: 1,
			EndFlashAddr: 0x0800F800, FlashInfoAddr: 0x08004C00,
			ResetVector: 0x08005000,
		},
		SectionBootloader: {
			FlashBase: flashBase, BinBegin: 0, PageSize: 0x400,
			PageOffset: 0x1000, ErasePageNum: 1,
			EndFlashAddr: 0x0800F800, FlashInfoAddr: 0x08004C00,
			ResetVector: 0x08001000,
		},
	},
	FamilyE103: {
		SectionApp: {
			FlashBase: flashBase, BinBegin: 0x800, PageSize: 0x800,
			PageOffset: 0x8800, ErasePageNum: 2,
			EndFlashAddr: 0x0801F800, ResetVector: 0x08009000,
		},
		SectionSecondBootloader: {
			FlashBase: flashBase, BinBegin: 0x800, PageSize: 0x800,
			PageOffset: 0x8800, ErasePageNum: 2,
			EndFlashAddr: 0x0801F800, FlashInfoAddr: 0x08008800,
			ResetVector: 0x08009000,
		},
		SectionBootloader: {
			FlashBase: flashBase, BinBegin: 0, PageSize: 0x800,
			PageOffset: 0x1000, ErasePageNum: 2,
			EndFlashAddr: 0x0801F800, FlashInfoAddr: 0x08008800,
			ResetVector: 0x08001000,
		},
	},
}

// LayoutFor returns the page-loop geometry for a given family and section.
func LayoutFor(family Family, section Section) Layout {
	return layouts[family][section]
}

// FamilyFor returns the MCU family a module type's binaries are built for.
// speaker/display/env (and the network module's own application) use the
// "e103" layout; everything else uses "e230" (§4.5).
func FamilyFor(t catalog.Type) Family {
	switch t {
	case catalog.Speaker, catalog.Display, catalog.Env, catalog.Network:
		return FamilyE103
	default:
		return FamilyE230
	}
}

// TargetAddress returns the flash address a page at pageBegin within a
// section's binary is written to.
func (l Layout) TargetAddress(pageBegin uint32) uint32 {
	return l.FlashBase + pageBegin + l.PageOffset
}

// BinEnd returns the greatest multiple of PageSize at or below binSize,
// measured from BinBegin (§3's "(bin_size - bin_begin) mod page_size == 0"
// invariant, achieved by truncation rather than padding).
func (l Layout) BinEnd(binSize int) uint32 {
	size := uint32(binSize)
	if size < l.BinBegin {
		return l.BinBegin
	}
	return size - ((size - l.BinBegin) % l.PageSize)
}

// SkipPage reports whether the page starting at pageBegin must not be
// written: it would land on the end-of-flash metadata address, or (for
// bootloader/second_bootloader sections) the flash-info address.
func (l Layout) SkipPage(pageBegin uint32) bool {
	addr := l.TargetAddress(pageBegin)
	if addr == l.EndFlashAddr {
		return true
	}
	if l.FlashInfoAddr != 0 && addr == l.FlashInfoAddr {
		return true
	}
	return false
}
