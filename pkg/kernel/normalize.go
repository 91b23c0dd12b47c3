package kernel

import (
	"mercator-hq/warden/pkg/devpath"
	"mercator-hq/warden/pkg/policy"
)

// Normalize builds one rule per resolved device path. Folder-recursive intents
// produce prefix rules; everything else matches exactly.
func Normalize(intent policy.Intent, paths []devpath.DevicePath, id policy.ID) []Rule {
	blocked, audited, blockAll := Effective(intent)

	mode := MatchExact
	if intent.Scope == policy.ScopeFolderRecursive {
		mode = MatchPrefix
	}

	rules := make([]Rule, 0, len(paths))
	for _, p := range paths {
		rules = append(rules, Rule{
			PolicyID:  id,
			Path:      p,
			Mode:      mode,
			Blocked:   blocked,
			Audited:   audited,
			BlockAll:  blockAll,
			Action:    intent.Action,
			CreatedBy: intent.CreatedBy,
			CreatedAt: intent.CreatedAt,
		})
	}
	return rules
}

// ValidateRule rejects a rule the driver cannot be given.
func ValidateRule(r Rule) error {
	if err := devpath.Check(r.Path); err != nil {
		return err
	}
	if r.Mode == MatchPrefix && !r.Path.IsFolder() {
		return policy.InvalidPath("normalize", "prefix rule path must end with %s", devpath.Separator)
	}
	if r.Mode != MatchPrefix && r.Path.IsFolder() {
		return policy.InvalidPath("normalize", "exact rule path must not end with %s", devpath.Separator)
	}
	if !r.BlockAll && !r.Blocked.Any() && !r.Audited.Any() {
		return policy.InvalidIntent("normalize", "rule blocks or audits nothing")
	}
	return nil
}
