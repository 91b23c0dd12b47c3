package logging

import (
	"fmt"
	"log/slog"
	"regexp"

	"mercator-hq/warden/pkg/config"
)

// DevicePathPlaceholder replaces redacted device paths.
const DevicePathPlaceholder = "[device-path]"

// devicePathPattern matches an NT device path embedded in a longer string.
// A value that is entirely a device path is replaced whole, spaces included.
var devicePathPattern = regexp.MustCompile(`\\Device\\[^\s"']*`)

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Redactor rewrites string attributes before they are logged.
type Redactor struct {
	devicePaths bool
	patterns    []redactPattern
}

// NewRedactor returns a redactor. Invalid custom patterns are an error.
func NewRedactor(devicePaths bool, custom []config.RedactPattern) (*Redactor, error) {
	r := &Redactor{devicePaths: devicePaths}
	for _, p := range custom {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p.Name, err)
		}
		r.patterns = append(r.patterns, redactPattern{name: p.Name, regex: re, replacement: p.Replacement})
	}
	return r, nil
}

// Enabled reports whether the redactor changes anything.
func (r *Redactor) Enabled() bool {
	return r.devicePaths || len(r.patterns) > 0
}

// RedactString applies every pattern to s.
func (r *Redactor) RedactString(s string) string {
	if s == "" {
		return s
	}
	if r.devicePaths {
		if len(s) >= len(`\Device\`) && s[:len(`\Device\`)] == `\Device\` {
			return DevicePathPlaceholder
		}
		s = devicePathPattern.ReplaceAllString(s, DevicePathPlaceholder)
	}
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

// ReplaceAttr is a slog.HandlerOptions hook.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); s != "" {
			if red := r.RedactString(s); red != s {
				a.Value = slog.StringValue(red)
			}
		}
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case error:
			a.Value = slog.StringValue(r.RedactString(v.Error()))
		case fmt.Stringer:
			a.Value = slog.StringValue(r.RedactString(v.String()))
		}
	}
	return a
}
