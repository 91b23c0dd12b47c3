package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mercator-hq/warden/pkg/fsindex"
	"mercator-hq/warden/pkg/policy"
	"mercator-hq/warden/pkg/policy/engine"
	"mercator-hq/warden/pkg/security/auth"
	"mercator-hq/warden/pkg/telemetry/logging"
)

// ApplyRequest is the body of POST /v1/policies.
type ApplyRequest struct {
	policy.Intent

	// Confirmed acknowledges a BLOCK ALL confirmation prompt.
	Confirmed bool `json:"confirmed"`
}

// ApplyResponse is returned for a recorded policy.
type ApplyResponse struct {
	PolicyID policy.ID         `json:"policy_id"`
	Policy   engine.PolicyView `json:"policy"`
}

// StatsResponse is the body of GET /v1/stats.
type StatsResponse struct {
	Policies    engine.Stats            `json:"policies"`
	Enforcement engine.EnforcementStats `json:"enforcement"`
	Index       fsindex.Stats           `json:"index"`
}

type policyList struct {
	Policies []engine.PolicyView `json:"policies"`
}

func policyParam(r *http.Request) (policy.ID, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "policyID"), 10, 64)
	return policy.ID(id), err == nil
}

// decodeIntent reads an intent body and sets its creator.
func decodeIntent(w http.ResponseWriter, r *http.Request, v *policy.Intent) bool {
	return decodeBody(w, r, v, func() { stampCreator(r, v) })
}

// stampCreator makes an authenticated administrator the creator. Without
// authentication the administrator header fills an empty created_by.
func stampCreator(r *http.Request, v *policy.Intent) {
	if admin, ok := auth.AdminFrom(r.Context()); ok {
		v.CreatedBy = admin
		return
	}
	if v.CreatedBy == "" {
		v.CreatedBy = logging.GetAdmin(r.Context())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any, after func()) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: ErrorDetail{
				Message: "request body too large",
				Kind:    kindRequest,
			}})
			return false
		}
		writeBadRequest(w, "malformed request body: "+err.Error())
		return false
	}
	if after != nil {
		after()
	}
	return true
}

func (a *API) listPolicies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, policyList{Policies: nonNilViews(a.core.ListActive())})
}

func (a *API) nodePolicies(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeParam(r)
	if !ok {
		writeBadRequest(w, "node id must be an unsigned integer")
		return
	}
	writeJSON(w, http.StatusOK, policyList{Policies: nonNilViews(a.core.PoliciesForNode(id))})
}

func (a *API) applyPolicy(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if !decodeBody(w, r, &req, func() { stampCreator(r, &req.Intent) }) {
		return
	}

	id, err := a.core.ApplyWithAssurance(r.Context(), req.Intent, req.Confirmed)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	view, err := a.core.Policy(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ApplyResponse{PolicyID: id, Policy: view})
}

func (a *API) getPolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := policyParam(r)
	if !ok {
		writeBadRequest(w, "policy id must be an unsigned integer")
		return
	}
	view, err := a.core.Policy(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) removePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := policyParam(r)
	if !ok {
		writeBadRequest(w, "policy id must be an unsigned integer")
		return
	}
	if err := a.core.Remove(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) policyHealth(w http.ResponseWriter, r *http.Request) {
	id, ok := policyParam(r)
	if !ok {
		writeBadRequest(w, "policy id must be an unsigned integer")
		return
	}
	h, err := a.core.PolicyHealth(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (a *API) preview(w http.ResponseWriter, r *http.Request) {
	var intent policy.Intent
	if !decodeIntent(w, r, &intent) {
		return
	}
	res, err := a.core.Preview(intent)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) dryRun(w http.ResponseWriter, r *http.Request) {
	var intent policy.Intent
	if !decodeIntent(w, r, &intent) {
		return
	}
	ev, err := a.core.DryRun(intent)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (a *API) safety(w http.ResponseWriter, r *http.Request) {
	var intent policy.Intent
	if !decodeIntent(w, r, &intent) {
		return
	}
	writeJSON(w, http.StatusOK, a.core.ValidateSafety(intent))
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		Policies:    a.core.Stats(),
		Enforcement: a.core.EnforcementStats(),
		Index:       a.core.IndexStats(),
	})
}

// fail writes err and logs server-side failures.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status >= 500 {
		a.logger.ErrorContext(r.Context(), "request failed", "error", err, "path", r.URL.Path)
	}
	writeJSON(w, status, body)
}

func nonNilViews(v []engine.PolicyView) []engine.PolicyView {
	if v == nil {
		return []engine.PolicyView{}
	}
	return v
}
