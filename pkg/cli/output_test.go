package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type textReport struct{ lines []string }

func (r textReport) Text() string { return strings.Join(r.lines, "\n") }

type stringer struct{}

func (stringer) String() string { return "from String" }

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name string
		data interface{}
		want string
	}{
		{name: "plain value", data: "test message", want: "test message\n"},
		{name: "Text method wins", data: textReport{lines: []string{"a", "b"}}, want: "a\nb\n"},
		{name: "Stringer", data: stringer{}, want: "from String\n"},
		{name: "trailing newline kept", data: "done\n", want: "done\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TextFormatter{}
			output, err := formatter.Format(tt.data)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			if string(output) != tt.want {
				t.Errorf("Format() = %q, want %q", string(output), tt.want)
			}

			buf := &bytes.Buffer{}
			if err := formatter.FormatTo(buf, tt.data); err != nil {
				t.Fatalf("FormatTo() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("FormatTo() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	tests := []struct {
		name   string
		indent bool
	}{
		{name: "compact", indent: false},
		{name: "indented", indent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &JSONFormatter{Indent: tt.indent}
			data := map[string]string{"key": "value"}

			output, err := formatter.Format(data)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			if got := strings.Contains(string(output), "\n"); got != tt.indent {
				t.Errorf("indented = %v, want %v", got, tt.indent)
			}

			var result map[string]string
			if err := json.Unmarshal(output, &result); err != nil {
				t.Errorf("Format() produced invalid JSON: %v", err)
			}
		})
	}
}

func TestJSONFormatterWriter(t *testing.T) {
	formatter := &JSONFormatter{Indent: true}
	data := map[string]string{"test": "value"}
	buf := &bytes.Buffer{}

	if err := formatter.FormatTo(buf, data); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	var result map[string]string
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Errorf("FormatTo() produced invalid JSON: %v", err)
	}
	if result["test"] != "value" {
		t.Errorf("FormatTo() = %v, want %v", result, data)
	}
}

func TestYAMLFormatter(t *testing.T) {
	type report struct {
		Level   string   `yaml:"level"`
		Reasons []string `yaml:"reasons"`
	}
	data := report{Level: "warning", Reasons: []string{"copy is simulated"}}

	buf := &bytes.Buffer{}
	if err := (&YAMLFormatter{}).FormatTo(buf, data); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	var got report
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("FormatTo() produced invalid YAML: %v", err)
	}
	if got.Level != "warning" || len(got.Reasons) != 1 {
		t.Errorf("round trip = %+v, want %+v", got, data)
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name   string
		format OutputFormat
		want   string
	}{
		{name: "text formatter", format: FormatText, want: "*cli.TextFormatter"},
		{name: "json formatter", format: FormatJSON, want: "*cli.JSONFormatter"},
		{name: "yaml formatter", format: FormatYAML, want: "*cli.YAMLFormatter"},
		{name: "default to text", format: "unknown", want: "*cli.TextFormatter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := NewFormatter(tt.format)
			got := fmt.Sprintf("%T", formatter)
			if got != tt.want {
				t.Errorf("NewFormatter(%q) type = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "text", want: FormatText},
		{in: "JSON", want: FormatJSON},
		{in: " yaml ", want: FormatYAML},
		{in: "csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
