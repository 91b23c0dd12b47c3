package fsindex

import (
	"fmt"
	"time"
)

// RootID is the id of the synthetic root node.
const RootID uint64 = 1

// RootName is the display name of the synthetic root node.
const RootName = "This PC"

// Kind is the type of a filesystem entry.
type Kind int

const (
	KindRoot Kind = iota + 1
	KindDrive
	KindDirectory
	KindFile
)

var kindNames = map[Kind]string{
	KindRoot:      "root",
	KindDrive:     "drive",
	KindDirectory: "directory",
	KindFile:      "file",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown node kind %q", text)
}

// Container reports whether entries of this kind can have children.
func (k Kind) Container() bool {
	return k == KindRoot || k == KindDrive || k == KindDirectory
}

// File attribute bits. The values match the Windows FILE_ATTRIBUTE_* flags so
// that attributes read on Windows pass through unchanged.
const (
	AttrReadOnly  uint32 = 0x1
	AttrHidden    uint32 = 0x2
	AttrSystem    uint32 = 0x4
	AttrDirectory uint32 = 0x10
	AttrArchive   uint32 = 0x20
	AttrReparse   uint32 = 0x400
)

// Node is one entry of the index.
type Node struct {
	ID       uint64
	Name     string
	Kind     Kind
	ParentID uint64 // zero only for the root
	Children []uint64

	// DevicePath is the kernel-facing path of the entry. It stays inside the
	// agent and is never copied into NodeInfo.
	DevicePath string

	// DisplayPath is the DOS-style path, for diagnostics.
	DisplayPath string

	Size       uint64 // files only
	Modified   time.Time
	Created    time.Time
	Attributes uint32
	Expanded   bool
	Accessible bool
}

func (n *Node) clone() Node {
	c := *n
	c.Children = append([]uint64(nil), n.Children...)
	return c
}

// Info returns the administrator-safe view of the node.
func (n Node) Info() NodeInfo {
	return NodeInfo{
		ID:          n.ID,
		Name:        n.Name,
		Kind:        n.Kind,
		ParentID:    n.ParentID,
		ChildCount:  len(n.Children),
		DisplayPath: n.DisplayPath,
		Size:        n.Size,
		Modified:    n.Modified,
		Created:     n.Created,
		Attributes:  n.Attributes,
		Expanded:    n.Expanded,
		Accessible:  n.Accessible,
		Hidden:      n.Attributes&AttrHidden != 0,
	}
}

// NodeInfo is the outward shape of a node. It deliberately has no device path.
type NodeInfo struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Kind        Kind      `json:"kind"`
	ParentID    uint64    `json:"parent_id,omitempty"`
	ChildCount  int       `json:"child_count"`
	DisplayPath string    `json:"display_path"`
	Size        uint64    `json:"size,omitempty"`
	Modified    time.Time `json:"modified,omitempty"`
	Created     time.Time `json:"created,omitempty"`
	Attributes  uint32    `json:"attributes"`
	Expanded    bool      `json:"expanded"`
	Accessible  bool      `json:"accessible"`
	Hidden      bool      `json:"hidden"`
}

// Stats summarizes the index contents.
type Stats struct {
	TotalNodes    int `json:"total_nodes"`
	Drives        int `json:"drives"`
	ExpandedNodes int `json:"expanded_nodes"`
}
