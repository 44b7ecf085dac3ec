package gateway

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// GatewayVersion is advertised in every response envelope so clients can
// detect when they themselves are behind.
const GatewayVersion = "2.0.0"

var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Version is a major.minor.patch extension version.
// Pre-release and build metadata are not supported; the extension release
// channel only ever ships plain three-segment versions.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses a strict major.minor.patch string.
func ParseVersion(s string) (Version, error) {
	if !versionPattern.MatchString(s) {
		return Version{}, fmt.Errorf("invalid version %q: want major.minor.patch", s)
	}
	parts := strings.SplitN(s, ".", 3)
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParseVersion parses s and panics on failure. For constants and tests.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or 1 ordering v against other numerically per segment.
func (v Version) Compare(other Version) int {
	pairs := [3][2]int{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Patch, other.Patch},
	}
	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

// Before reports whether v orders strictly before other.
func (v Version) Before(other Version) bool {
	return v.Compare(other) < 0
}

// String returns the major.minor.patch form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
