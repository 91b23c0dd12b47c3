package engine

import (
	"context"
	"errors"
	"time"

	"mercator-hq/warden/pkg/fsindex"
	"mercator-hq/warden/pkg/policy"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// translate maps index and scanner errors onto policy error kinds.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *policy.Error
	if errors.As(err, &pe) {
		return err
	}
	switch {
	case errors.Is(err, fsindex.ErrNodeNotFound), errors.Is(err, fsindex.ErrParentNotFound):
		return policy.NotFound(op, "node not found").WithCause(err)
	case errors.Is(err, fsindex.ErrNotAccessible):
		return policy.NotAccessible(op, "node is not accessible").WithCause(err)
	case errors.Is(err, fsindex.ErrNotContainer), errors.Is(err, fsindex.ErrWrongKind), errors.Is(err, fsindex.ErrEmptyQuery):
		return policy.InvalidIntent(op, "%v", err)
	default:
		return err
	}
}

// InitializeDrives rebuilds the index with one node per usable volume.
func (e *Engine) InitializeDrives() (int, error) {
	n, err := e.scanner.InitializeDrives()
	e.rebind()
	if err != nil {
		return 0, err
	}
	e.logger.Info("drives initialized", "drives", n)
	return n, nil
}

// Drives returns the drive nodes.
func (e *Engine) Drives() []fsindex.NodeInfo {
	drives := e.index.Drives()
	out := make([]fsindex.NodeInfo, 0, len(drives))
	for _, d := range drives {
		out = append(out, d.Info())
	}
	return out
}

// Node returns one node.
func (e *Engine) Node(id uint64) (fsindex.NodeInfo, error) {
	info, err := e.index.Info(id)
	return info, translate("get_node", err)
}

// Children returns the materialized children of a node.
func (e *Engine) Children(id uint64) ([]fsindex.NodeInfo, error) {
	children, err := e.index.GetChildren(id)
	if err != nil {
		return nil, translate("list_children", err)
	}
	return infos(children), nil
}

// Expand materializes a node's children and returns them.
func (e *Engine) Expand(ctx context.Context, id uint64) ([]fsindex.NodeInfo, error) {
	_, span := e.tracer.Start(ctx, "fsindex.expand")
	defer span.End()
	span.SetAttributes(tracing.NodeID(id))

	start := time.Now()
	n, err := e.scanner.Expand(id)
	if err != nil {
		e.metrics.RecordExpand("error", 0, time.Since(start))
		err = translate("expand", err)
		span.RecordError(err)
		return nil, err
	}
	e.metrics.RecordExpand("ok", n, time.Since(start))
	span.SetAttributes(tracing.AttrChildren.Int(n))
	e.rebind()
	return e.Children(id)
}

// Collapse drops a node's materialized subtree and returns the number of
// direct children removed.
func (e *Engine) Collapse(ctx context.Context, id uint64) (int, error) {
	_, span := e.tracer.Start(ctx, "fsindex.collapse")
	defer span.End()
	span.SetAttributes(tracing.NodeID(id))

	n, err := e.scanner.Collapse(id)
	if err != nil {
		return 0, translate("collapse", err)
	}
	e.rebind()
	return n, nil
}

// rebind moves policies onto the nodes that now carry their subject paths.
// Node ids are never reused, so a policy whose node was collapsed or dropped
// on restart is detached until the same path is materialized again.
func (e *Engine) rebind() {
	live := func(id uint64) bool {
		_, ok := e.index.DisplayPath(id)
		return ok
	}
	if n := e.store.Rebind(live, e.index.LookupPath); n > 0 {
		e.logger.Debug("policy bindings updated",
			"changed", n,
			"detached", e.store.Detached(),
		)
		e.refreshGauges()
	}
}

// SearchChildren matches text against the names of a node's materialized
// children.
func (e *Engine) SearchChildren(parentID uint64, text string) ([]fsindex.NodeInfo, error) {
	matches, err := e.index.Search(parentID, text)
	if err != nil {
		return nil, translate("search", err)
	}
	return infos(matches), nil
}

// IndexStats summarizes the index.
func (e *Engine) IndexStats() fsindex.Stats {
	return e.index.Stats()
}

func infos(nodes []fsindex.Node) []fsindex.NodeInfo {
	out := make([]fsindex.NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Info())
	}
	return out
}
