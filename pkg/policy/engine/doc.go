// Package engine orchestrates the agent's enforcement core.
//
// The Engine owns the filesystem index, the path resolver, the policy store
// and the kernel adapter slot, and exposes the operations administrators'
// tooling calls: browsing the tree, applying and removing protections,
// previews, safety checks and policy health.
//
// # Apply
//
// Apply runs validate, resolve, normalize, rule validation, send and record
// in that order. A kernel send failure aborts the apply before anything is
// recorded. Rules already sent for other paths of the same intent stay in
// the driver; there is no rollback.
//
// # Simulation mode
//
// When no kernel adapter is attached, Apply records the policy with driver
// ids from the simulated range and reports it as Warning in PolicyHealth.
// Attaching an adapter later sends every simulated policy to the driver.
//
// # Device paths
//
// Nothing returned by the Engine carries a device path. Policies are exposed
// as PolicyView and nodes as fsindex.NodeInfo.
package engine
