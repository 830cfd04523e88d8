// Package catalog maps a module's 64-bit UUID to its module-type tag, and
// back again for the type-reassignment operation.
package catalog

// Type identifies the kind of peripheral module behind a UUID's top 32 bits.
type Type string

const (
	Network    Type = "network"
	Battery    Type = "battery"
	Env        Type = "env"
	IMU        Type = "imu"
	Mic        Type = "mic"
	Button     Type = "button"
	Dial       Type = "dial"
	Ultrasonic Type = "ultrasonic"
	IR         Type = "ir"
	Joystick   Type = "joystick"
	ToF        Type = "tof"
	Camera     Type = "camera"
	Display    Type = "display"
	Motor      Type = "motor"
	LED        Type = "led"
	Speaker    Type = "speaker"
)

// typeIndicator maps the top 32 bits of a UUID (uuid >> 32) to its module
// type. Setup modules occupy 0x10; input modules 0x20xx; output modules
// 0x40xx. motor has two indicators (0x4010 "motor_a", 0x4011 "motor_b") that
// both resolve to Motor.
var typeIndicator = map[uint32]Type{
	0x10: Battery,

	0x2000: Env,
	0x2010: IMU,
	0x2020: Mic,
	0x2030: Button,
	0x2040: Dial,
	0x2050: Ultrasonic,
	0x2060: IR,
	0x2070: Joystick,
	0x2080: ToF,
	0x2090: Camera,

	0x4000: Display,
	0x4010: Motor,
	0x4011: Motor,
	0x4020: LED,
	0x4030: Speaker,
}

// canonicalIndicator is the inverse table used to build a target UUID for
// type reassignment. Where typeIndicator has more than one indicator for a
// type (Motor), the lower one is canonical.
var canonicalIndicator = map[Type]uint32{
	Battery:    0x10,
	Env:        0x2000,
	IMU:        0x2010,
	Mic:        0x2020,
	Button:     0x2030,
	Dial:       0x2040,
	Ultrasonic: 0x2050,
	IR:         0x2060,
	Joystick:   0x2070,
	ToF:        0x2080,
	Camera:     0x2090,
	Display:    0x4000,
	Motor:      0x4010,
	LED:        0x4020,
	Speaker:    0x4030,
}

// TypeFromUUID derives a module's type from its 64-bit UUID. Any indicator
// not present in the table (including the network module's own UUID) is
// reported as Network.
func TypeFromUUID(uuid uint64) Type {
	indicator := uint32(uuid >> 32)
	if t, ok := typeIndicator[indicator]; ok {
		return t
	}
	return Network
}

// IndicatorFromType returns the canonical top-32-bit indicator for a type,
// and false for Network (which has no fixed indicator — any UUID that
// doesn't match the table is network).
func IndicatorFromType(t Type) (uint32, bool) {
	ind, ok := canonicalIndicator[t]
	return ind, ok
}

// DefaultUUID returns the canonical UUID for a type, with zero low bits.
// TypeFromUUID(DefaultUUID(t)) == t for every non-network t.
func DefaultUUID(t Type) (uint64, bool) {
	ind, ok := IndicatorFromType(t)
	if !ok {
		return 0, false
	}
	return uint64(ind) << 32, true
}

// UUIDFromType builds a target UUID for the change-type operation (§4.6.3):
// the low 32 bits (bus id and reserved fields) from source are kept, and
// the top 32 bits are replaced with t's canonical indicator.
func UUIDFromType(t Type, source uint64) (uint64, bool) {
	ind, ok := IndicatorFromType(t)
	if !ok {
		return 0, false
	}
	return uint64(ind)<<32 | (source & 0xFFFFFFFF), true
}
