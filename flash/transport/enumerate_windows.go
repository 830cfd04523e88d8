package transport

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/windows/registry"
)

// listSerialPorts reads the SERIALCOMM registry key, the same source the
// teacher's devutil.EnumerateSerialPorts uses on Windows, then orders
// results by COM number so COM3 sorts before COM10.
func listSerialPorts() []string {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `HARDWARE\DEVICEMAP\SERIALCOMM\`, registry.QUERY_VALUE)
	if err != nil {
		return nil
	}
	defer k.Close()
	names, err := k.ReadValueNames(0)
	if err != nil {
		return nil
	}
	ports := make([]string, len(names))
	for i, n := range names {
		val, _, _ := k.GetStringValue(n)
		ports[i] = val
	}
	sort.Sort(byCOMNumber(ports))
	return ports
}

func comNumber(port string) int {
	if !strings.HasPrefix(port, "COM") {
		return -1
	}
	n, err := strconv.Atoi(port[3:])
	if err != nil {
		return -1
	}
	return n
}

type byCOMNumber []string

func (a byCOMNumber) Len() int      { return len(a) }
func (a byCOMNumber) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a byCOMNumber) Less(i, j int) bool {
	ni, nj := comNumber(a[i]), comNumber(a[j])
	if ni < 0 || nj < 0 {
		return a[i] < a[j]
	}
	return ni < nj
}
