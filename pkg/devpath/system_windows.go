//go:build windows

package devpath

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/windows"

	"mercator-hq/warden/pkg/fsindex"
)

// SystemVolumes queries the Windows volume manager.
type SystemVolumes struct{}

// NewSystemVolumes returns the OS volume source.
func NewSystemVolumes() (*SystemVolumes, error) {
	return &SystemVolumes{}, nil
}

// Volumes queries every drive letter reported by GetLogicalDrives and keeps
// fixed and removable disks.
func (SystemVolumes) Volumes() ([]fsindex.Volume, error) {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil, fmt.Errorf("GetLogicalDrives: %w", err)
	}

	var vols []fsindex.Volume
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		letter := string(rune('A' + i))
		root := letter + `:\`

		rootPtr, err := windows.UTF16PtrFromString(root)
		if err != nil {
			continue
		}
		switch windows.GetDriveType(rootPtr) {
		case windows.DRIVE_FIXED, windows.DRIVE_REMOVABLE:
		default:
			continue
		}
		if _, err := os.Stat(root); err != nil {
			continue
		}
		vols = append(vols, fsindex.Volume{Letter: letter, Root: root})
	}
	return vols, nil
}

// VolumeName returns the `\\?\Volume{GUID}\` name mounted at letter.
func (SystemVolumes) VolumeName(letter string) (string, error) {
	mount, err := windows.UTF16PtrFromString(strings.ToUpper(letter) + `:\`)
	if err != nil {
		return "", err
	}
	buf := make([]uint16, windows.MAX_PATH)
	if err := windows.GetVolumeNameForVolumeMountPoint(mount, &buf[0], uint32(len(buf))); err != nil {
		return "", fmt.Errorf("GetVolumeNameForVolumeMountPoint(%s:): %w", letter, err)
	}
	return windows.UTF16ToString(buf), nil
}

// DeviceName maps a volume name to its `\Device\...` target.
func (SystemVolumes) DeviceName(volumeName string) (string, error) {
	// QueryDosDevice wants "Volume{GUID}" without the \\?\ prefix or the
	// trailing separator.
	name := strings.TrimSuffix(strings.TrimPrefix(volumeName, `\\?\`), `\`)
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return "", err
	}
	buf := make([]uint16, windows.MAX_PATH)
	n, err := windows.QueryDosDevice(namePtr, &buf[0], uint32(len(buf)))
	if err != nil {
		return "", fmt.Errorf("QueryDosDevice(%s): %w", name, err)
	}
	if n == 0 {
		return "", fmt.Errorf("QueryDosDevice(%s): empty result", name)
	}
	return windows.UTF16ToString(buf[:n]), nil
}
