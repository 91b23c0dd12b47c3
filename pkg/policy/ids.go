package policy

import "strconv"

// ID identifies an active policy inside the agent.
type ID uint64

// String returns the decimal form of the id.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// DriverID identifies a single kernel rule as tracked against the driver port.
// The driver itself matches rules by path; DriverID is the agent's handle for
// one transmitted rule.
type DriverID uint64

// SimulatedDriverIDBase is the first DriverID of the simulated range. Ids at
// or above it were synthesized while no driver was connected and were never
// transmitted.
const SimulatedDriverIDBase DriverID = 1 << 62

// Simulated reports whether the id belongs to the simulated range.
func (id DriverID) Simulated() bool {
	return id >= SimulatedDriverIDBase
}

// String returns the decimal form of the id.
func (id DriverID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}
