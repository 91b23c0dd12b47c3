//go:build !windows

package devpath

import (
	"errors"

	"mercator-hq/warden/pkg/fsindex"
)

// ErrNoVolumeManager is returned on hosts without a Windows volume manager.
// Configure static volumes there instead.
var ErrNoVolumeManager = errors.New("no OS volume manager on this platform; configure index.volumes")

// SystemVolumes is unavailable outside Windows.
type SystemVolumes struct{}

// NewSystemVolumes always fails outside Windows.
func NewSystemVolumes() (*SystemVolumes, error) {
	return nil, ErrNoVolumeManager
}

// Volumes implements fsindex.VolumeLister.
func (SystemVolumes) Volumes() ([]fsindex.Volume, error) {
	return nil, ErrNoVolumeManager
}

// VolumeName implements VolumeSource.
func (SystemVolumes) VolumeName(string) (string, error) {
	return "", ErrNoVolumeManager
}

// DeviceName implements VolumeSource.
func (SystemVolumes) DeviceName(string) (string, error) {
	return "", ErrNoVolumeManager
}
