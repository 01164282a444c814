package native

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Version is the semantic version and build identity of a native library.
type Version struct {
	Major, Minor, Patch int
	Build               int
	SourceID            string
}

// ErrNoVersion is returned when a header carries no version define.
var ErrNoVersion = errors.New("cblite: no CBLITE_VERSION define found")

// String formats the version as "major.minor.patch", with "-build" appended
// when the build number is known.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Build > 0 {
		s += "-" + strconv.Itoa(v.Build)
	}
	return s
}

// Number encodes the version the way CBLITE_VERSION_NUMBER does:
// 3.0.1 is 3000001.
func (v Version) Number() int {
	return v.Major*1000000 + v.Minor*1000 + v.Patch
}

// IsZero reports whether the version is unknown.
func (v Version) IsZero() bool {
	return v.Major == 0 && v.Minor == 0 && v.Patch == 0
}

// Compatible reports whether a library at version v can serve callers built
// against required: same major version, and at least the required
// minor.patch.
func (v Version) Compatible(required Version) bool {
	if v.Major != required.Major {
		return false
	}
	if v.Minor != required.Minor {
		return v.Minor > required.Minor
	}
	return v.Patch >= required.Patch
}

// ParseVersion parses "major.minor.patch".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("cblite: malformed version %q", s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("cblite: malformed version %q", s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// ParseEditionHeader reads the version defines of a CBL_Edition.h header:
// CBLITE_VERSION, CBLITE_BUILD_NUMBER and CBLITE_SOURCE_ID.
func ParseEditionHeader(r io.Reader) (Version, error) {
	var (
		v     Version
		found bool
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 || fields[0] != "#define" {
			continue
		}
		value := strings.Join(fields[2:], " ")
		switch fields[1] {
		case "CBLITE_VERSION":
			parsed, err := ParseVersion(strings.Trim(value, `"`))
			if err != nil {
				return Version{}, err
			}
			v.Major, v.Minor, v.Patch = parsed.Major, parsed.Minor, parsed.Patch
			found = true
		case "CBLITE_BUILD_NUMBER":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Version{}, fmt.Errorf("cblite: malformed build number %q", value)
			}
			v.Build = n
		case "CBLITE_SOURCE_ID":
			v.SourceID = strings.Trim(value, `"`)
		}
	}
	if err := sc.Err(); err != nil {
		return Version{}, err
	}
	if !found {
		return Version{}, ErrNoVersion
	}
	return v, nil
}
