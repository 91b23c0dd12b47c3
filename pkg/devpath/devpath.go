// Package devpath resolves filesystem index nodes to the device paths the
// kernel filter matches on.
//
// A device path ("\Device\HarddiskVolume3\Users\report.docx") is derived from
// a DOS path in three steps: the drive letter is mapped to a volume name
// ("\\?\Volume{GUID}\") by the OS, the volume name is mapped to its device
// ("\Device\HarddiskVolume3") through a cache owned by a Converter, and the
// remainder of the DOS path is appended.
//
// Device paths never leave the agent. They are produced here and consumed only
// by the kernel rule normalizer.
package devpath

import (
	"strings"
	"unicode/utf16"

	"mercator-hq/warden/pkg/policy"
)

// Prefix is the leading component every device path carries.
const Prefix = `\Device\`

// Separator is the device path component separator.
const Separator = `\`

// MaxUnits is the longest device path, in UTF-16 code units, the driver
// record can carry with its terminating NUL.
const MaxUnits = 259

// DevicePath is a kernel-facing path. Values are produced only by this
// package.
type DevicePath string

// String returns the path.
func (p DevicePath) String() string {
	return string(p)
}

// HasPrefix reports whether the path starts with the device prefix.
func (p DevicePath) HasPrefix() bool {
	return len(p) > len(Prefix) && strings.EqualFold(string(p[:len(Prefix)]), Prefix)
}

// IsFolder reports whether the path ends in a separator, the form used for
// subtree rules.
func (p DevicePath) IsFolder() bool {
	return strings.HasSuffix(string(p), Separator)
}

// AsFolder returns the path with exactly one trailing separator.
func (p DevicePath) AsFolder() DevicePath {
	return DevicePath(strings.TrimRight(string(p), Separator) + Separator)
}

// Check returns an InvalidPath error when p is not a well-formed device path.
func Check(p DevicePath) error {
	if !p.HasPrefix() {
		return policy.InvalidPath("resolve", "path does not start with %s", Prefix)
	}
	if n := len(utf16.Encode([]rune(string(p)))); n > MaxUnits {
		return policy.InvalidPath("resolve", "path is %d UTF-16 units, limit is %d", n, MaxUnits)
	}
	return nil
}
