package wire

// Command bytes for the host-to-module frame protocol (§6).
const (
	CmdRequestUUIDEcho     uint8 = 0x00
	CmdUUIDAnnouncement    uint8 = 0x05
	CmdRequestModuleID     uint8 = 0x08
	CmdSetModuleState      uint8 = 0x09
	CmdWarning             uint8 = 0x0A
	CmdFirmwareData        uint8 = 0x0B
	CmdFirmwareState       uint8 = 0x0C
	CmdFirmwareCommand     uint8 = 0x0D
	CmdChangeType          uint8 = 0x0E
	CmdRequestNetworkID    uint8 = 0x28
	CmdEnterESPPassthrough uint8 = 0x2B
	CmdSelectSWUMode       uint8 = 0x2C
	CmdSetNetworkState     uint8 = 0xA4
)

// set-module-state / set-network-module-state states (payload byte 0).
const (
	StateRun                 uint8 = 0
	StateWarning             uint8 = 1
	StateForcedPause         uint8 = 2
	StateErrorStop           uint8 = 3
	StateUpdateFirmware      uint8 = 4
	StateUpdateFirmwareReady uint8 = 5
	StateReboot              uint8 = 6
)

// PnP flag values (payload byte 1 of set-module-state frames).
const (
	PnPOn  uint8 = 1
	PnPOff uint8 = 2
)

// firmware-state (0x0C) codes at payload byte 4.
const (
	StreamCRCError      uint8 = 4
	StreamCRCComplete   uint8 = 5
	StreamEraseError    uint8 = 6
	StreamEraseComplete uint8 = 7
)

// firmware-command (0x0D) sub-commands, packed into the upper byte of `s`.
const (
	SubCRC   uint8 = 1
	SubErase uint8 = 2
)

// warning (0x0A) warning_type codes at payload offset 6.
const (
	WarningHealthy  uint8 = 0
	WarningNotReady uint8 = 1
	WarningReady    uint8 = 2
)

// warning (0x0A) reported section codes at payload offset 7, when present.
const (
	SectionApp              uint8 = 0
	SectionBootloader       uint8 = 1
	SectionSecondBootloader uint8 = 2
)

// BroadcastDest is the destination id used for broadcast frames (did=0xFFF).
const BroadcastDest uint16 = 0xFFF

// RequestIDPayload is the fixed 2-byte payload of request-module-id and
// request-network-id frames.
var RequestIDPayload = []byte{0xFF, 0x0F}
