// Package api serves the agent's core surface over HTTP/JSON.
//
// Handlers relay engine results verbatim. Nodes are addressed by index id,
// policies by policy id, and no response ever contains a device path.
// Failures carry the policy error kind and map onto HTTP statuses:
//
//	not_found               404
//	not_accessible          403
//	invalid_intent          422
//	invalid_path            422
//	kernel_transport_error  502
//	kernel_unavailable      503
//
// With WithAuth every /v1 route requires an API key; rejected requests get
// 401 with kind "unauthorized". Policies applied by an authenticated request
// are attributed to the key's administrator.
//
// GET /v1/events upgrades to a websocket and streams bus events as JSON.
package api
