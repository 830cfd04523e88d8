package transport

import (
	"path/filepath"
	"sort"
)

// listSerialPorts enumerates candidate serial device nodes, preferring
// ttyUSB* (CDC-ACM adapters) to ttyACM* (direct CDC-ACM devices), matching
// the order the teacher's devutil.EnumerateSerialPorts uses on Linux.
func listSerialPorts() []string {
	list1, _ := filepath.Glob("/dev/ttyUSB*")
	sort.Strings(list1)
	list2, _ := filepath.Glob("/dev/ttyACM*")
	sort.Strings(list2)
	return append(list1, list2...)
}
