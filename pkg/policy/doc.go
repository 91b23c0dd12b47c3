// Package policy defines the administrator-facing protection model of the agent.
//
// An administrator never names a file by path. A protection request is an
// Intent addressed by the numeric id of a filesystem index node, carrying a
// Scope (single file, folder, or whole subtree), an Action (block, allow or
// audit) and the set of Operations it covers. Intents are immutable values and
// are revalidated on every use:
//
//	intent := policy.NewIntent(42, policy.ScopeFile, policy.ActionBlock,
//	    policy.Operations{Read: true}, "admin")
//	if err := policy.Validate(intent); err != nil {
//	    return err
//	}
//
// # Read Expansion
//
// Blocking reads cannot be enforced selectively by the filter driver, so an
// intent that blocks Read is expanded into a block of every operation. The
// expansion itself lives in package kernel; this package only reports it
// (ExpandsRead) and refuses the combinations that have no safe expansion, such
// as Allow together with Read.
//
// # Errors
//
// Every failure that crosses the agent's public surface is an *Error carrying
// a closed Kind. Use KindOf or IsKind to branch on it:
//
//	if policy.IsKind(err, policy.KindNotFound) {
//	    // unknown node or policy id
//	}
//
// # Identifiers
//
// ID is the agent's own policy identifier. DriverID identifies one rule as
// tracked against the driver port. The two are distinct types and are only
// translated through the policy store.
package policy
