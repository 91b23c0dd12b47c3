package devpath

import (
	"fmt"
	"sort"
	"strings"

	"mercator-hq/warden/pkg/fsindex"
)

// StaticVolume describes one configured drive.
type StaticVolume struct {
	// Root is the directory enumerated for the drive.
	Root string

	// VolumeName is the volume identifier. Defaults to `\\?\Volume{<letter>}\`.
	VolumeName string

	// DevicePath is the device the volume maps to.
	DevicePath string

	// Label replaces "Local Disk" in the drive name.
	Label string
}

// StaticVolumes is a configured volume table. It stands in for the OS volume
// manager on hosts without one, and in lab setups.
type StaticVolumes struct {
	byLetter map[string]StaticVolume
	byName   map[string]string
}

// NewStaticVolumes builds a table from letter -> volume definitions.
func NewStaticVolumes(vols map[string]StaticVolume) (*StaticVolumes, error) {
	s := &StaticVolumes{
		byLetter: make(map[string]StaticVolume, len(vols)),
		byName:   make(map[string]string, len(vols)),
	}
	for letter, v := range vols {
		l := strings.ToUpper(strings.TrimSuffix(letter, ":"))
		if len(l) != 1 || l[0] < 'A' || l[0] > 'Z' {
			return nil, fmt.Errorf("invalid drive letter %q", letter)
		}
		if !DevicePath(v.DevicePath).HasPrefix() {
			return nil, fmt.Errorf("drive %s: device path must start with %s", l, Prefix)
		}
		if v.VolumeName == "" {
			v.VolumeName = fmt.Sprintf(`\\?\Volume{%s}\`, l)
		}
		s.byLetter[l] = v
		s.byName[v.VolumeName] = v.DevicePath
	}
	return s, nil
}

// Volumes implements fsindex.VolumeLister.
func (s *StaticVolumes) Volumes() ([]fsindex.Volume, error) {
	letters := make([]string, 0, len(s.byLetter))
	for l := range s.byLetter {
		letters = append(letters, l)
	}
	sort.Strings(letters)

	vols := make([]fsindex.Volume, 0, len(letters))
	for _, l := range letters {
		v := s.byLetter[l]
		vols = append(vols, fsindex.Volume{Letter: l, Root: v.Root, Label: v.Label})
	}
	return vols, nil
}

// VolumeName implements VolumeSource.
func (s *StaticVolumes) VolumeName(letter string) (string, error) {
	v, ok := s.byLetter[strings.ToUpper(letter)]
	if !ok {
		return "", fmt.Errorf("no volume configured for drive %s:", letter)
	}
	return v.VolumeName, nil
}

// DeviceName implements VolumeSource.
func (s *StaticVolumes) DeviceName(volumeName string) (string, error) {
	dev, ok := s.byName[volumeName]
	if !ok {
		return "", fmt.Errorf("unknown volume %s", volumeName)
	}
	return dev, nil
}
