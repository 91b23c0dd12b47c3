package devpath

import (
	"errors"
	"fmt"

	"mercator-hq/warden/pkg/fsindex"
	"mercator-hq/warden/pkg/policy"
)

// Resolver maps index nodes to device paths.
type Resolver struct {
	index     *fsindex.Index
	converter *Converter
}

// NewResolver returns a resolver over idx. converter derives device paths for
// nodes that do not carry one.
func NewResolver(idx *fsindex.Index, converter *Converter) *Resolver {
	return &Resolver{index: idx, converter: converter}
}

// ResolveDevicePath returns the device path of a node. A path cached on the
// node is preferred; otherwise it is derived from the display path.
func (r *Resolver) ResolveDevicePath(nodeID uint64) (DevicePath, error) {
	node, ok := r.index.GetNode(nodeID)
	if !ok {
		return "", policy.NotFound("resolve", "node %d not found", nodeID)
	}
	return r.resolveNode(node)
}

func (r *Resolver) resolveNode(node fsindex.Node) (DevicePath, error) {
	if !node.Accessible {
		return "", policy.NotAccessible("resolve", "node %d is not accessible", node.ID)
	}

	p := DevicePath(node.DevicePath)
	if p == "" {
		if r.converter == nil {
			return "", policy.InvalidPath("resolve", "node %d has no device path", node.ID)
		}
		derived, err := r.converter.DevicePathFor(node.DisplayPath)
		if err != nil {
			return "", err
		}
		p = DevicePath(derived)
	}

	if err := Check(p); err != nil {
		return "", err
	}
	return p, nil
}

// ResolveForIntent expands an intent's subject into the device paths its
// kernel rules will carry:
//
//   - ScopeFile: the node's own path.
//   - ScopeFolder: one path per materialized direct file child. Subfolders
//     are not included.
//   - ScopeFolderRecursive: the folder path with a trailing separator, which
//     the driver matches as a prefix.
func (r *Resolver) ResolveForIntent(intent policy.Intent) ([]DevicePath, error) {
	node, ok := r.index.GetNode(intent.NodeID)
	if !ok {
		return nil, policy.NotFound("resolve", "node %d not found", intent.NodeID)
	}

	switch intent.Scope {
	case policy.ScopeFile:
		p, err := r.resolveNode(node)
		if err != nil {
			return nil, err
		}
		return []DevicePath{p}, nil

	case policy.ScopeFolder:
		return r.resolveFolderFiles(node)

	case policy.ScopeFolderRecursive:
		if !node.Kind.Container() || node.Kind == fsindex.KindRoot {
			return nil, policy.InvalidIntent("resolve", "node %d is a %s, not a folder", node.ID, node.Kind)
		}
		p, err := r.resolveNode(node)
		if err != nil {
			return nil, err
		}
		return []DevicePath{p.AsFolder()}, nil

	default:
		return nil, policy.InvalidIntent("resolve", "unsupported scope %s", intent.Scope)
	}
}

func (r *Resolver) resolveFolderFiles(node fsindex.Node) ([]DevicePath, error) {
	if !node.Kind.Container() || node.Kind == fsindex.KindRoot {
		return nil, policy.InvalidIntent("resolve", "node %d is a %s, not a folder", node.ID, node.Kind)
	}
	if !node.Accessible {
		return nil, policy.NotAccessible("resolve", "node %d is not accessible", node.ID)
	}

	children, err := r.index.GetChildren(node.ID)
	if err != nil {
		if errors.Is(err, fsindex.ErrNodeNotFound) {
			return nil, policy.NotFound("resolve", "node %d not found", node.ID)
		}
		return nil, fmt.Errorf("failed to list children of node %d: %w", node.ID, err)
	}

	var paths []DevicePath
	for _, c := range children {
		if c.Kind != fsindex.KindFile {
			continue
		}
		p, err := r.resolveNode(c)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}

	if len(paths) == 0 {
		return nil, policy.InvalidIntent("resolve",
			"folder %d has no materialized files; expand it or use folder_recursive", node.ID)
	}
	return paths, nil
}
