package module

import "github.com/modi-tools/fw-updater/flash/catalog"

// State is a module's coarse lifecycle state, independent of which section
// it is currently being driven through.
type State string

const (
	StateUnknown     State = "unknown"
	StateUpdateReady State = "update_ready"
	StateDone        State = "done"
	StateError       State = "error"
)

// Stage is the section a module is currently at (or its terminal outcome),
// per §3's ModuleInfo.section field.
type Stage string

const (
	StageApp              Stage = "app"
	StageBootloader       Stage = "bootloader"
	StageSecondBootloader Stage = "second_bootloader"
	StageDone             Stage = "done"
	StageError            Stage = "error"
)

// Info is one discovered module's catalog entry.
type Info struct {
	UUID       uint64
	BusID      uint16 // 12-bit bus address, from the frame source that announced it
	Type       catalog.Type
	State      State
	Stage      Stage
	RetryCount int
}
