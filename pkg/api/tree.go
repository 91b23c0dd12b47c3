package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mercator-hq/warden/pkg/fsindex"
)

type nodeList struct {
	Nodes []fsindex.NodeInfo `json:"nodes"`
}

func nodeParam(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "nodeID"), 10, 64)
	return id, err == nil
}

func (a *API) drives(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nodeList{Nodes: nonNil(a.core.Drives())})
}

func (a *API) node(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeParam(r)
	if !ok {
		writeBadRequest(w, "node id must be an unsigned integer")
		return
	}
	info, err := a.core.Node(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *API) children(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeParam(r)
	if !ok {
		writeBadRequest(w, "node id must be an unsigned integer")
		return
	}
	nodes, err := a.core.Children(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodeList{Nodes: nonNil(nodes)})
}

func (a *API) expand(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeParam(r)
	if !ok {
		writeBadRequest(w, "node id must be an unsigned integer")
		return
	}
	nodes, err := a.core.Expand(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodeList{Nodes: nonNil(nodes)})
}

func (a *API) collapse(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeParam(r)
	if !ok {
		writeBadRequest(w, "node id must be an unsigned integer")
		return
	}
	n, err := a.core.Collapse(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeParam(r)
	if !ok {
		writeBadRequest(w, "node id must be an unsigned integer")
		return
	}
	nodes, err := a.core.SearchChildren(id, r.URL.Query().Get("q"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodeList{Nodes: nonNil(nodes)})
}

func nonNil(nodes []fsindex.NodeInfo) []fsindex.NodeInfo {
	if nodes == nil {
		return []fsindex.NodeInfo{}
	}
	return nodes
}
