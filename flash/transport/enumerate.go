package transport

import (
	"github.com/cesanta/hid"
	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/juju/errors"
)

// Enumerate finds every gateway currently attached: serial ports on a
// platform that exposes the network module as a CDC-ACM device, plus any
// WinUSB-class HID handle matching the same VID/PID on platforms that
// expose it that way instead (§4.1).
//
// Mapping a USB device descriptor to its OS serial-port path is itself
// platform-specific udev/IOKit/SetupAPI work the teacher's own code never
// does either (it enumerates ports and USB devices through two unrelated
// code paths); here gousb is used only to confirm a matching device is
// actually present before trusting the serial-port glob, not to resolve
// the device node itself.
func Enumerate() ([]Candidate, error) {
	var candidates []Candidate

	if hasMatchingUSBDevice() {
		for _, port := range listSerialPorts() {
			candidates = append(candidates, Candidate{Port: port})
		}
	}

	if hidPaths, err := enumerateHID(); err != nil {
		glog.V(1).Infof("HID enumeration: %v", err)
	} else {
		for _, path := range hidPaths {
			candidates = append(candidates, Candidate{Port: path})
		}
	}

	return candidates, nil
}

// hasMatchingUSBDevice reports whether a device with VendorID/ProductID
// matches the MODI gateway, grounded on the teacher's
// mos/flash/common/usb.go OpenUSBDevice scan.
func hasMatchingUSBDevice() bool {
	uctx := gousb.NewContext()
	defer uctx.Close()
	devs, err := uctx.OpenDevices(func(dd *gousb.DeviceDesc) bool {
		return dd.Vendor == gousb.ID(VendorID) && dd.Product == gousb.ID(ProductID)
	})
	for _, d := range devs {
		d.Close()
	}
	if err != nil && len(devs) == 0 {
		return false
	}
	return len(devs) > 0
}

// enumerateHID lists HID device paths matching VendorID/ProductID, the
// same hid.Devices() scan the teacher uses for CMSIS-DAP probe discovery
// (mos/flash/common/cmsis-dap/dap/cmsis_dap_client.go).
func enumerateHID() ([]string, error) {
	devs, err := hid.Devices()
	if err != nil {
		return nil, errors.Annotatef(err, "failed to enumerate HID devices")
	}
	var paths []string
	for _, di := range devs {
		if di.VendorID == VendorID && di.ProductID == ProductID {
			paths = append(paths, di.Path)
		}
	}
	return paths, nil
}

// Open opens the given candidate at 921600 8N1.
func Open(c Candidate) (Transport, error) {
	return openSerial(c.Port)
}
