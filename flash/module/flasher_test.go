package module

import (
	"testing"

	"github.com/modi-tools/fw-updater/flash/firmware"
)

func TestSectionForMapsStageToSection(t *testing.T) {
	cases := map[Stage]firmware.Section{
		StageApp:              firmware.SectionApp,
		StageBootloader:       firmware.SectionBootloader,
		StageSecondBootloader: firmware.SectionSecondBootloader,
	}
	for stage, want := range cases {
		if got := sectionFor(stage); got != want {
			t.Errorf("sectionFor(%v) = %v, want %v", stage, got, want)
		}
	}
}
