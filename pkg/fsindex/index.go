package fsindex

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	// ErrNodeNotFound is returned for ids that are not materialized.
	ErrNodeNotFound = errors.New("node not found")

	// ErrParentNotFound is returned when adding a node under an unknown parent.
	ErrParentNotFound = errors.New("parent node not found")

	// ErrNotContainer is returned when a file is used where a folder is required.
	ErrNotContainer = errors.New("node cannot have children")

	// ErrEmptyQuery is returned by Search for blank search text.
	ErrEmptyQuery = errors.New("search text must not be empty")
)

// Index is the thread-safe, identifier-addressed filesystem tree.
//
// Each logical map has its own lock. No method holds more than one of them at
// a time.
type Index struct {
	nodesMu sync.RWMutex
	nodes   map[uint64]*Node

	pathMu   sync.RWMutex
	pathToID map[string]uint64

	idMu     sync.RWMutex
	idToPath map[uint64]string

	nextID atomic.Uint64
}

// New returns an index holding only the synthetic root.
func New() *Index {
	x := &Index{
		nodes:    make(map[uint64]*Node),
		pathToID: make(map[string]uint64),
		idToPath: make(map[uint64]string),
	}
	x.nextID.Store(RootID + 1)
	x.nodes[RootID] = &Node{
		ID:         RootID,
		Name:       RootName,
		Kind:       KindRoot,
		Accessible: true,
	}
	return x
}

func (x *Index) allocID() uint64 {
	return x.nextID.Add(1) - 1
}

// AddNode inserts n below n.ParentID and returns the id assigned to it. Any id
// or child list set on n is ignored.
func (x *Index) AddNode(n Node) (uint64, error) {
	if n.Kind == KindRoot {
		return 0, errors.New("root node already exists")
	}

	x.nodesMu.Lock()
	parent, ok := x.nodes[n.ParentID]
	if !ok {
		x.nodesMu.Unlock()
		return 0, fmt.Errorf("%w: %d", ErrParentNotFound, n.ParentID)
	}
	if !parent.Kind.Container() {
		x.nodesMu.Unlock()
		return 0, fmt.Errorf("%w: %d", ErrNotContainer, n.ParentID)
	}
	n.ID = x.allocID()
	n.Children = nil
	x.nodes[n.ID] = &n
	parent.Children = append(parent.Children, n.ID)
	x.nodesMu.Unlock()

	x.indexPaths([]Node{n})
	return n.ID, nil
}

// AttachChildren materializes one level of children below parentID and marks
// the parent expanded, as a single step. If the parent is already expanded the
// children are discarded and the existing child count is returned with
// attached set to false.
func (x *Index) AttachChildren(parentID uint64, children []Node) (count int, attached bool, err error) {
	x.nodesMu.Lock()
	parent, ok := x.nodes[parentID]
	if !ok {
		x.nodesMu.Unlock()
		return 0, false, fmt.Errorf("%w: %d", ErrNodeNotFound, parentID)
	}
	if !parent.Kind.Container() {
		x.nodesMu.Unlock()
		return 0, false, fmt.Errorf("%w: %d", ErrNotContainer, parentID)
	}
	if parent.Expanded {
		count = len(parent.Children)
		x.nodesMu.Unlock()
		return count, false, nil
	}

	added := make([]Node, 0, len(children))
	for _, c := range children {
		c.ID = x.allocID()
		c.ParentID = parentID
		c.Children = nil
		stored := c
		x.nodes[c.ID] = &stored
		parent.Children = append(parent.Children, c.ID)
		added = append(added, c)
	}
	parent.Expanded = true
	count = len(parent.Children)
	x.nodesMu.Unlock()

	x.indexPaths(added)
	return count, true, nil
}

// GetNode returns a copy of the node.
func (x *Index) GetNode(id uint64) (Node, bool) {
	x.nodesMu.RLock()
	defer x.nodesMu.RUnlock()

	n, ok := x.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Info returns the administrator-safe view of a node.
func (x *Index) Info(id uint64) (NodeInfo, error) {
	n, ok := x.GetNode(id)
	if !ok {
		return NodeInfo{}, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return n.Info(), nil
}

// GetChildren returns copies of the materialized children of id, in the order
// they were added.
func (x *Index) GetChildren(id uint64) ([]Node, error) {
	x.nodesMu.RLock()
	defer x.nodesMu.RUnlock()

	n, ok := x.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}

	children := make([]Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c, ok := x.nodes[cid]; ok {
			children = append(children, c.clone())
		}
	}
	return children, nil
}

// MarkExpanded sets the expansion flag of id.
func (x *Index) MarkExpanded(id uint64) error {
	x.nodesMu.Lock()
	defer x.nodesMu.Unlock()

	n, ok := x.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	n.Expanded = true
	return nil
}

// MarkCollapsed clears the child list and expansion flag of id and removes
// every descendant from the index. Removed ids are never handed out again.
// It returns the number of direct children that were dropped.
func (x *Index) MarkCollapsed(id uint64) (int, error) {
	x.nodesMu.Lock()
	n, ok := x.nodes[id]
	if !ok {
		x.nodesMu.Unlock()
		return 0, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}

	direct := len(n.Children)
	removed := x.removeSubtreesLocked(n.Children)
	n.Children = nil
	n.Expanded = false
	x.nodesMu.Unlock()

	x.unindexPaths(removed)
	return direct, nil
}

// removeSubtreesLocked deletes the given nodes and all of their descendants.
// The caller holds nodesMu for writing.
func (x *Index) removeSubtreesLocked(ids []uint64) []uint64 {
	var removed []uint64
	stack := append([]uint64(nil), ids...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, ok := x.nodes[id]
		if !ok {
			continue
		}
		stack = append(stack, n.Children...)
		delete(x.nodes, id)
		removed = append(removed, id)
	}
	return removed
}

// ResolveDevicePath returns the device path cached on the node. The result
// may be empty when the node was created without one. For use inside the
// agent only.
func (x *Index) ResolveDevicePath(id uint64) (string, error) {
	x.nodesMu.RLock()
	defer x.nodesMu.RUnlock()

	n, ok := x.nodes[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return n.DevicePath, nil
}

// Drives returns the drive nodes, ordered by display path.
func (x *Index) Drives() []Node {
	x.nodesMu.RLock()
	root := x.nodes[RootID]
	drives := make([]Node, 0, len(root.Children))
	for _, id := range root.Children {
		if n, ok := x.nodes[id]; ok && n.Kind == KindDrive {
			drives = append(drives, n.clone())
		}
	}
	x.nodesMu.RUnlock()

	sort.Slice(drives, func(i, j int) bool {
		return drives[i].DisplayPath < drives[j].DisplayPath
	})
	return drives
}

// LookupPath returns the id of the node with the given display path.
// Matching is case-insensitive.
func (x *Index) LookupPath(displayPath string) (uint64, bool) {
	x.pathMu.RLock()
	defer x.pathMu.RUnlock()

	id, ok := x.pathToID[pathKey(displayPath)]
	return id, ok
}

// DisplayPath returns the display path recorded for id.
func (x *Index) DisplayPath(id uint64) (string, bool) {
	x.idMu.RLock()
	defer x.idMu.RUnlock()

	p, ok := x.idToPath[id]
	return p, ok
}

// Search returns the materialized children of parentID whose name contains
// text, ignoring case.
func (x *Index) Search(parentID uint64, text string) ([]Node, error) {
	query := strings.ToLower(strings.TrimSpace(text))
	if query == "" {
		return nil, ErrEmptyQuery
	}

	children, err := x.GetChildren(parentID)
	if err != nil {
		return nil, err
	}

	var matches []Node
	for _, c := range children {
		if strings.Contains(strings.ToLower(c.Name), query) {
			matches = append(matches, c)
		}
	}
	return matches, nil
}

// Stats returns node counts.
func (x *Index) Stats() Stats {
	x.nodesMu.RLock()
	defer x.nodesMu.RUnlock()

	var s Stats
	for _, n := range x.nodes {
		s.TotalNodes++
		if n.Kind == KindDrive {
			s.Drives++
		}
		if n.Expanded {
			s.ExpandedNodes++
		}
	}
	return s
}

// Len returns the number of materialized nodes, including the root.
func (x *Index) Len() int {
	x.nodesMu.RLock()
	defer x.nodesMu.RUnlock()
	return len(x.nodes)
}

// Reset drops every node except the root. The id counter keeps running.
func (x *Index) Reset() {
	x.nodesMu.Lock()
	root := x.nodes[RootID]
	removed := x.removeSubtreesLocked(root.Children)
	root.Children = nil
	root.Expanded = false
	x.nodesMu.Unlock()

	x.unindexPaths(removed)
}

func (x *Index) indexPaths(nodes []Node) {
	x.idMu.Lock()
	for _, n := range nodes {
		if n.DisplayPath != "" {
			x.idToPath[n.ID] = n.DisplayPath
		}
	}
	x.idMu.Unlock()

	x.pathMu.Lock()
	for _, n := range nodes {
		if n.DisplayPath != "" {
			x.pathToID[pathKey(n.DisplayPath)] = n.ID
		}
	}
	x.pathMu.Unlock()
}

func (x *Index) unindexPaths(ids []uint64) {
	if len(ids) == 0 {
		return
	}

	paths := make(map[uint64]string, len(ids))
	x.idMu.Lock()
	for _, id := range ids {
		if p, ok := x.idToPath[id]; ok {
			paths[id] = p
			delete(x.idToPath, id)
		}
	}
	x.idMu.Unlock()

	x.pathMu.Lock()
	for id, p := range paths {
		key := pathKey(p)
		if x.pathToID[key] == id {
			delete(x.pathToID, key)
		}
	}
	x.pathMu.Unlock()
}

func pathKey(p string) string {
	return strings.ToLower(p)
}
