// Package version handles the two representations of a module's firmware
// version: the "major.minor.patch" manifest string, and the packed 16-bit
// word stored in the on-wire end-of-flash record (§4.6.5).
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/juju/errors"
	goversion "github.com/mcuadros/go-version"
)

var versionRe = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)`)

// Triple is a parsed major/minor/patch version.
type Triple struct {
	Major, Minor, Patch int
}

// Parse strips a leading "v" and any "-suffix" (pre-release tag) and
// extracts the major/minor/patch integers, e.g. "v2.3.5-rc1" -> {2,3,5}.
func Parse(s string) (Triple, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Triple{}, errors.Errorf("%q is not a version string", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return Triple{Major: major, Minor: minor, Patch: patch}, nil
}

// Pack encodes a triple into the 16-bit word used in the end-of-flash
// record: (major<<13)|(minor<<8)|patch.
func (t Triple) Pack() uint16 {
	return uint16(t.Major<<13) | uint16(t.Minor<<8) | uint16(t.Patch)
}

// Unpack reverses Pack, recovering major/minor/patch from a wire word.
func Unpack(word uint16) Triple {
	return Triple{
		Major: int(word >> 13),
		Minor: int((word >> 8) & 0x1F),
		Patch: int(word & 0xFF),
	}
}

// String renders a triple back to "major.minor.patch".
func (t Triple) String() string {
	return fmt.Sprintf("%d.%d.%d", t.Major, t.Minor, t.Patch)
}

// PackString parses and packs in one step.
func PackString(s string) (uint16, error) {
	t, err := Parse(s)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return t.Pack(), nil
}

// Compare orders two manifest version strings using go-version's loose
// semver comparator, the same library the teacher uses to sort its own
// release list (mos/update/update.go). Used to decide whether a module's
// reported bootloader version (unpacked from its wire word) matches what
// the manifest requires.
func Compare(a, b string) int {
	return goversion.CompareSimple(normalizeForCompare(a), normalizeForCompare(b))
}

// normalizeForCompare strips the leading "v" go-version doesn't expect.
func normalizeForCompare(s string) string {
	return strings.TrimPrefix(s, "v")
}
