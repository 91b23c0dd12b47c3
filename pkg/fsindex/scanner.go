package fsindex

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrNoDrives is returned by InitializeDrives when no volume is usable.
	ErrNoDrives = errors.New("no accessible drives found")

	// ErrNotAccessible is returned when expanding a node flagged inaccessible.
	ErrNotAccessible = errors.New("node is not accessible")

	// ErrWrongKind is returned by the kind-specific expand and collapse calls.
	ErrWrongKind = errors.New("node has the wrong kind for this operation")
)

// Volume is a mounted volume the scanner may expose as a drive.
type Volume struct {
	// Letter is the drive letter without colon, e.g. "C".
	Letter string

	// Root is the OS path used to enumerate the volume. On Windows this is
	// "C:\"; elsewhere it is any directory standing in for the drive.
	Root string

	// Label replaces "Local Disk" in the drive node name when set.
	Label string
}

// VolumeLister enumerates candidate volumes.
type VolumeLister interface {
	Volumes() ([]Volume, error)
}

// DeviceMapper converts a DOS path such as "C:\" into a device path.
type DeviceMapper interface {
	DevicePathFor(dosPath string) (string, error)
}

// ScanConfig controls which directory entries the scanner materializes.
type ScanConfig struct {
	SkipHidden     bool
	SkipSystem     bool
	FollowSymlinks bool
}

// Scanner populates an Index on demand, one directory level at a time.
type Scanner struct {
	index   *Index
	volumes VolumeLister
	devices DeviceMapper
	config  ScanConfig
	logger  *slog.Logger

	rootsMu sync.RWMutex
	roots   map[string]string // drive letter -> OS root
}

// NewScanner returns a scanner feeding idx.
func NewScanner(idx *Index, volumes VolumeLister, devices DeviceMapper, cfg ScanConfig, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		index:   idx,
		volumes: volumes,
		devices: devices,
		config:  cfg,
		logger:  logger.With("component", "fsindex.scanner"),
		roots:   make(map[string]string),
	}
}

// InitializeDrives rebuilds the drive level of the index. Every present and
// readable volume becomes a drive node under the root, with its device path
// resolved once here. Volumes whose device path cannot be resolved are
// skipped.
func (s *Scanner) InitializeDrives() (int, error) {
	vols, err := s.volumes.Volumes()
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate volumes: %w", err)
	}

	s.index.Reset()
	roots := make(map[string]string, len(vols))

	added := 0
	for _, v := range vols {
		letter := strings.ToUpper(strings.TrimSuffix(v.Letter, ":"))
		if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
			s.logger.Warn("ignoring volume with invalid drive letter", "letter", v.Letter)
			continue
		}

		info, err := os.Stat(v.Root)
		if err != nil || !info.IsDir() {
			s.logger.Debug("volume not accessible, skipping", "drive", letter, "error", err)
			continue
		}

		display := letter + `:\`
		device, err := s.devices.DevicePathFor(display)
		if err != nil {
			s.logger.Warn("failed to resolve device path for drive, skipping",
				"drive", letter,
				"error", err,
			)
			continue
		}

		name := fmt.Sprintf("Local Disk (%s:)", letter)
		if v.Label != "" {
			name = fmt.Sprintf("%s (%s:)", v.Label, letter)
		}

		if _, err := s.index.AddNode(Node{
			Name:        name,
			Kind:        KindDrive,
			ParentID:    RootID,
			DevicePath:  device,
			DisplayPath: display,
			Modified:    info.ModTime(),
			Attributes:  AttrDirectory,
			Accessible:  true,
		}); err != nil {
			return added, fmt.Errorf("failed to add drive %s: %w", letter, err)
		}
		roots[letter] = v.Root
		added++
	}

	s.rootsMu.Lock()
	s.roots = roots
	s.rootsMu.Unlock()

	if err := s.index.MarkExpanded(RootID); err != nil {
		return added, err
	}

	s.logger.Info("drives initialized", "count", added)

	if added == 0 {
		return 0, ErrNoDrives
	}
	return added, nil
}

// Expand materializes the direct children of a drive or directory and
// returns the child count. Expanding an already expanded node returns the
// existing count.
func (s *Scanner) Expand(id uint64) (int, error) {
	node, ok := s.index.GetNode(id)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	if node.Kind != KindDrive && node.Kind != KindDirectory {
		return 0, fmt.Errorf("%w: %d is a %s", ErrNotContainer, id, node.Kind)
	}
	if node.Expanded {
		return len(node.Children), nil
	}
	if !node.Accessible {
		return 0, fmt.Errorf("%w: %d", ErrNotAccessible, id)
	}

	dir, err := s.osPath(node)
	if err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory %q: %w", node.DisplayPath, err)
	}

	children := make([]Node, 0, len(entries))
	for _, e := range entries {
		child, ok := s.buildChild(node, dir, e)
		if ok {
			children = append(children, child)
		}
	}

	count, attached, err := s.index.AttachChildren(id, children)
	if err != nil {
		return 0, err
	}
	if attached {
		s.logger.Debug("node expanded",
			"node_id", id,
			"children", count,
			"skipped", len(entries)-len(children),
		)
	}
	return count, nil
}

// ExpandDrive expands a drive node.
func (s *Scanner) ExpandDrive(id uint64) (int, error) {
	if err := s.requireKind(id, KindDrive); err != nil {
		return 0, err
	}
	return s.Expand(id)
}

// ExpandDirectory expands a directory node.
func (s *Scanner) ExpandDirectory(id uint64) (int, error) {
	if err := s.requireKind(id, KindDirectory); err != nil {
		return 0, err
	}
	return s.Expand(id)
}

// Collapse drops the materialized children of a drive or directory. Policies
// recorded against the dropped nodes are not touched.
func (s *Scanner) Collapse(id uint64) (int, error) {
	node, ok := s.index.GetNode(id)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	if node.Kind != KindDrive && node.Kind != KindDirectory {
		return 0, fmt.Errorf("%w: %d is a %s", ErrNotContainer, id, node.Kind)
	}

	n, err := s.index.MarkCollapsed(id)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("node collapsed", "node_id", id, "children", n)
	return n, nil
}

// CollapseDrive collapses a drive node.
func (s *Scanner) CollapseDrive(id uint64) (int, error) {
	if err := s.requireKind(id, KindDrive); err != nil {
		return 0, err
	}
	return s.Collapse(id)
}

// CollapseDirectory collapses a directory node.
func (s *Scanner) CollapseDirectory(id uint64) (int, error) {
	if err := s.requireKind(id, KindDirectory); err != nil {
		return 0, err
	}
	return s.Collapse(id)
}

func (s *Scanner) requireKind(id uint64, kind Kind) error {
	node, ok := s.index.GetNode(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	if node.Kind != kind {
		return fmt.Errorf("%w: %d is a %s, not a %s", ErrWrongKind, id, node.Kind, kind)
	}
	return nil
}

// buildChild turns a directory entry into an unattached Node. It reports
// false for entries that cannot be read or are filtered by the scan config.
func (s *Scanner) buildChild(parent Node, dir string, e fs.DirEntry) (Node, bool) {
	name := e.Name()
	full := filepath.Join(dir, name)

	info, err := e.Info()
	if err != nil {
		s.logger.Debug("skipping unreadable entry", "parent_id", parent.ID, "name", name, "error", err)
		return Node{}, false
	}
	if info.Mode()&fs.ModeSymlink != 0 && s.config.FollowSymlinks {
		if target, err := os.Stat(full); err == nil {
			info = target
		}
	}

	attrs, created := fileAttributes(name, info)
	if s.config.SkipHidden && attrs&AttrHidden != 0 {
		return Node{}, false
	}
	if s.config.SkipSystem && attrs&AttrSystem != 0 {
		return Node{}, false
	}

	child := Node{
		Name:        name,
		Kind:        KindFile,
		ParentID:    parent.ID,
		DevicePath:  joinDevicePath(parent.DevicePath, name),
		DisplayPath: joinDisplayPath(parent.DisplayPath, name),
		Modified:    info.ModTime(),
		Created:     created,
		Attributes:  attrs,
		Accessible:  true,
	}
	if info.IsDir() {
		child.Kind = KindDirectory
		child.Accessible = canOpen(full)
	} else {
		child.Size = uint64(info.Size())
	}
	return child, true
}

// osPath maps a node's display path onto the OS root of its drive.
func (s *Scanner) osPath(n Node) (string, error) {
	if len(n.DisplayPath) < 3 || n.DisplayPath[1] != ':' {
		return "", fmt.Errorf("node %d has malformed display path %q", n.ID, n.DisplayPath)
	}
	letter := strings.ToUpper(n.DisplayPath[:1])

	s.rootsMu.RLock()
	root, ok := s.roots[letter]
	s.rootsMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("drive %s: is not initialized", letter)
	}

	rest := strings.Trim(n.DisplayPath[2:], `\`)
	if rest == "" {
		return root, nil
	}
	parts := append([]string{root}, strings.Split(rest, `\`)...)
	return filepath.Join(parts...), nil
}

// joinDevicePath appends one component to a device path. An empty parent
// yields an empty child, leaving derivation to the path resolver.
func joinDevicePath(parent, name string) string {
	if parent == "" {
		return ""
	}
	return strings.TrimRight(parent, `\`) + `\` + name
}

func joinDisplayPath(parent, name string) string {
	if strings.HasSuffix(parent, `\`) {
		return parent + name
	}
	return parent + `\` + name
}

func canOpen(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
