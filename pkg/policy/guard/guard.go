// Package guard is the safety layer in front of policy application. It is
// pure: the same intent and kernel state always produce the same report.
package guard

import (
	"fmt"
	"strings"

	"mercator-hq/warden/pkg/kernel"
	"mercator-hq/warden/pkg/policy"
)

// Level grades how strong a confirmation must be.
type Level int

const (
	LevelNone Level = iota
	LevelStandard
	LevelStrong
)

func (l Level) String() string {
	switch l {
	case LevelStandard:
		return "standard"
	case LevelStrong:
		return "strong"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*l = LevelNone
	case "standard":
		*l = LevelStandard
	case "strong":
		*l = LevelStrong
	default:
		return fmt.Errorf("unknown confirmation level %q", text)
	}
	return nil
}

// Confirmation phrases an operator types to approve a high-risk policy.
const (
	PhraseBlockAll          = "CONFIRM_BLOCK_ALL"
	PhraseRecursiveBlockAll = "CONFIRM_RECURSIVE_BLOCK_ALL"
)

// Report is the outcome of a safety check.
type Report struct {
	Valid                bool     `json:"is_valid"`
	Warnings             []string `json:"warnings"`
	Errors               []string `json:"errors"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
	ConfirmationLevel    Level    `json:"confirmation_level"`
	ConfirmationPhrase   string   `json:"confirmation_phrase,omitempty"`
	ConfirmationMessage  string   `json:"confirmation_message,omitempty"`

	intent          policy.Intent
	kernelConnected bool
}

const blockAllMessage = `You are about to block ALL access to this file or folder.

This means:
  - users cannot open or read it
  - users cannot copy or duplicate it
  - users cannot delete or rename it
  - users cannot modify it

Read protection always blocks every operation.`

const recursiveBlockAllMessage = `DANGER: recursive BLOCK ALL

You are about to block ALL access to:
  - this folder
  - every subfolder
  - every file within

This can affect thousands of files.`

// ValidateSafety checks an intent. Structural errors match policy.Validate.
func ValidateSafety(intent policy.Intent, kernelConnected bool) Report {
	r := Report{
		Warnings:        []string{},
		Errors:          policy.Problems(intent),
		intent:          intent,
		kernelConnected: kernelConnected,
	}
	if r.Errors == nil {
		r.Errors = []string{}
	}

	if intent.ExpandsRead() {
		r.Warnings = append(r.Warnings,
			"read selected: every operation will be blocked",
			"write, delete, rename, create, copy and execute are all blocked",
		)
		r.RequiresConfirmation = true
		r.ConfirmationLevel = LevelStandard
		r.ConfirmationPhrase = PhraseBlockAll
		r.ConfirmationMessage = blockAllMessage

		if intent.Scope == policy.ScopeFolderRecursive {
			r.Warnings = append(r.Warnings,
				"recursive folder with block-all access",
				"every file in this folder and its subfolders will be unreachable",
			)
			r.ConfirmationLevel = LevelStrong
			r.ConfirmationPhrase = PhraseRecursiveBlockAll
			r.ConfirmationMessage = recursiveBlockAllMessage
		}
	}

	if len(r.Errors) == 0 {
		blocked, audited, blockAll := kernel.Effective(intent)
		switch {
		case !blockAll && !blocked.Any() && audited.Any():
			r.Warnings = append(r.Warnings, "audit-only policies are tracked by the agent but have no driver rule")
		case !blockAll && !blocked.Any() && !audited.Any():
			r.Warnings = append(r.Warnings, "policy blocks and audits nothing")
		case !blockAll && !blocked.Wired():
			r.Warnings = append(r.Warnings, "copy and execute are enforced by the driver only as part of a read block")
		}
	}

	if !kernelConnected {
		r.Warnings = append(r.Warnings,
			"kernel driver not connected",
			"policy will run in simulation mode; nothing will be blocked",
		)
	}

	r.Valid = len(r.Errors) == 0
	return r
}

// Text renders the report for an operator console.
func (r Report) Text() string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintf(&b, "%s\nPOLICY SAFETY REPORT\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Action:  %s\n", r.intent.Action)
	fmt.Fprintf(&b, "Scope:   %s\n", r.intent.Scope)
	fmt.Fprintf(&b, "Node ID: %d\n\n", r.intent.NodeID)

	if r.kernelConnected {
		b.WriteString("Kernel connected: yes\n")
	} else {
		b.WriteString("Kernel connected: no (simulation mode)\n")
	}

	if len(r.Errors) > 0 {
		b.WriteString("\nERRORS (must fix):\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\nWARNINGS:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}
	if r.RequiresConfirmation {
		fmt.Fprintf(&b, "\nCONFIRMATION REQUIRED (%s):\n%s\n", r.ConfirmationLevel, r.ConfirmationMessage)
		fmt.Fprintf(&b, "Type %s to proceed.\n", r.ConfirmationPhrase)
	}

	status := "PASSED"
	if !r.Valid {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "\nOverall status: %s\n%s\n", status, rule)
	return b.String()
}
