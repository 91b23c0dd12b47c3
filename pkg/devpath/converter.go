package devpath

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"mercator-hq/warden/pkg/policy"
)

// VolumeSource answers the two OS questions needed to build a device path.
type VolumeSource interface {
	// VolumeName returns the volume name mounted at drive letter, for example
	// `\\?\Volume{6d3c...}\`.
	VolumeName(letter string) (string, error)

	// DeviceName returns the device for a volume name, for example
	// `\Device\HarddiskVolume3`.
	DeviceName(volumeName string) (string, error)
}

// Converter turns DOS paths into device paths. Volume-to-device lookups are
// cached per volume name for the lifetime of the converter.
type Converter struct {
	source   VolumeSource
	fallback map[string]string
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewConverter returns a converter backed by source. fallback maps drive
// letters to device names and is consulted when the OS lookup fails.
func NewConverter(source VolumeSource, fallback map[string]string, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	fb := make(map[string]string, len(fallback))
	for letter, dev := range fallback {
		fb[strings.ToUpper(strings.TrimSuffix(letter, ":"))] = strings.TrimRight(dev, Separator)
	}
	return &Converter{
		source:   source,
		fallback: fb,
		logger:   logger.With("component", "devpath.converter"),
		cache:    make(map[string]string),
	}
}

// DevicePathFor converts a DOS path such as `C:\Users\x.txt` into its device
// path. A bare drive root converts to the device itself, without a trailing
// separator.
func (c *Converter) DevicePathFor(dosPath string) (string, error) {
	if len(dosPath) < 2 || dosPath[1] != ':' {
		return "", policy.InvalidPath("convert", "%q is not a drive-letter path", dosPath)
	}
	letter := strings.ToUpper(dosPath[:1])
	if letter[0] < 'A' || letter[0] > 'Z' {
		return "", policy.InvalidPath("convert", "%q is not a drive-letter path", dosPath)
	}

	device, err := c.deviceForLetter(letter)
	if err != nil {
		return "", err
	}

	rest := strings.TrimRight(dosPath[2:], Separator)
	if rest != "" && !strings.HasPrefix(rest, Separator) {
		rest = Separator + rest
	}

	p := DevicePath(device + rest)
	if err := Check(p); err != nil {
		return "", err
	}
	return string(p), nil
}

func (c *Converter) deviceForLetter(letter string) (string, error) {
	volume, err := c.source.VolumeName(letter)
	if err != nil {
		if dev, ok := c.fallback[letter]; ok {
			c.logger.Warn("volume lookup failed, using configured fallback device",
				"drive", letter,
				"error", err,
			)
			return dev, nil
		}
		return "", policy.InvalidPath("convert", "no volume mounted at %s:", letter).WithCause(err)
	}

	c.mu.RLock()
	dev, ok := c.cache[volume]
	c.mu.RUnlock()
	if ok {
		return dev, nil
	}

	dev, err = c.source.DeviceName(volume)
	if err != nil {
		if fb, ok := c.fallback[letter]; ok {
			return fb, nil
		}
		return "", policy.InvalidPath("convert", "no device for volume of %s:", letter).WithCause(err)
	}
	dev = strings.TrimRight(dev, Separator)

	c.mu.Lock()
	c.cache[volume] = dev
	c.mu.Unlock()

	c.logger.Debug("volume device cached", "drive", letter, "device", dev)
	return dev, nil
}

// CacheSize returns the number of cached volume devices.
func (c *Converter) CacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Invalidate drops every cached volume device, for example after a volume
// arrival or removal.
func (c *Converter) Invalidate() {
	c.mu.Lock()
	c.cache = make(map[string]string)
	c.mu.Unlock()
}

// String describes the converter for diagnostics.
func (c *Converter) String() string {
	return fmt.Sprintf("devpath.Converter{cached=%d, fallback=%d}", c.CacheSize(), len(c.fallback))
}
