package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	MaxMajor = 127
	MaxMinor = 255
)

// Version is the semantic version of a schema. Major and minor travel in frame
// headers as major*256+minor; the patch level never reaches the wire.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses "major.minor" or "major.minor.patch".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, errors.Errorf("version %q: want major.minor[.patch]", s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, errors.Errorf("version %q: bad component %q", s, p)
		}
		nums[i] = n
	}
	v := Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}
	if err := v.check(); err != nil {
		return Version{}, err
	}
	return v, nil
}

func (v Version) check() error {
	if v.Major < 0 || v.Major > MaxMajor {
		return errors.Errorf("version %s: major must be within 0..%d", v, MaxMajor)
	}
	if v.Minor < 0 || v.Minor > MaxMinor {
		return errors.Errorf("version %s: minor must be within 0..%d", v, MaxMinor)
	}
	if v.Patch < 0 {
		return errors.Errorf("version %s: negative patch", v)
	}
	return nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Wire is the 16-bit header encoding.
func (v Version) Wire() uint16 {
	return uint16(v.Major)<<8 | uint16(v.Minor)
}

// VersionFromWire decodes a header version. The patch level is lost.
func VersionFromWire(w uint16) Version {
	return Version{Major: int(w >> 8), Minor: int(w & 0xff)}
}

// CompatibleWith reports whether data written with v can be read by a decoder
// built for the decoder version: same major, and a minor no newer than the
// decoder's.
func (v Version) CompatibleWith(decoder Version) bool {
	return v.Major == decoder.Major && v.Minor <= decoder.Minor
}

// BreakingChangeFrom reports whether moving from other to v changes the major
// version.
func (v Version) BreakingChangeFrom(other Version) bool {
	return v.Major != other.Major
}

// Compare returns -1, 0 or +1 ordering v against o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return sign(v.Major - o.Major)
	case v.Minor != o.Minor:
		return sign(v.Minor - o.Minor)
	default:
		return sign(v.Patch - o.Patch)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
