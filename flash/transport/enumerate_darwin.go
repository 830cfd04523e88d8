package transport

import (
	"path/filepath"
	"sort"
	"strings"
)

// listSerialPorts enumerates /dev/cu.* device nodes, filtering out the
// Bluetooth- and iAP-backed pseudo-serial devices macOS always registers,
// matching the teacher's devutil.EnumerateSerialPorts on Darwin.
func listSerialPorts() []string {
	list, _ := filepath.Glob("/dev/cu.*")
	var filtered []string
	for _, s := range list {
		if !strings.Contains(s, "Bluetooth-") &&
			!strings.Contains(s, "-SPPDev") &&
			!strings.Contains(s, "-WirelessiAP") {
			filtered = append(filtered, s)
		}
	}
	sort.Strings(filtered)
	return filtered
}
