package agentcore

import (
	"regexp"
	"strings"
)

// Delegation is a parsed DELEGATE_TO/TASK/INSTRUCTIONS directive
// triple, per spec.md §4.3 step 4.
type Delegation struct {
	DelegateTo   string
	Task         string
	Instructions string
}

// Complete reports whether both DelegateTo and Task were found; the
// turn only emits a delegation message when this holds (spec.md §4.3:
// "If both DELEGATE_TO ... and TASK are found").
func (d Delegation) Complete() bool {
	return d.DelegateTo != "" && d.Task != ""
}

var (
	// plainMarker matches "KEY: value" at the start of a line.
	plainMarker = regexp.MustCompile(`^(DELEGATE_TO|TASK|INSTRUCTIONS):\s*(.*)$`)
	// emphasizedMarker matches "**KEY:** value".
	emphasizedMarker = regexp.MustCompile(`^\*\*(DELEGATE_TO|TASK|INSTRUCTIONS):\*\*\s*(.*)$`)
	// jsonFieldMarker matches a JSON object field on its own line, e.g.
	// `"delegate_to": "code_editing"` or `{"task": "write_hello"}`.
	jsonFieldMarker = regexp.MustCompile(`(?i)"(delegate_to|task|instructions)"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// ParseDelegation scans text line-by-line for the three directive
// markers, in any order, each in one of three surface syntaxes: plain
// "KEY: value", emphasized "**KEY:** value", or a JSON object field on
// its own line. INSTRUCTIONS concatenates to end-of-line, tolerating
// embedded colons (the regex capture already spans past the first
// colon to the newline).
//
// Grounded on the teacher's internal/tools/delegate.go DelegationTask
// shape, reworked from a tool-call surface into the supervisor's
// free-text scanning grammar spec.md §9 describes.
func ParseDelegation(text string) Delegation {
	var d Delegation
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := plainMarker.FindStringSubmatch(trimmed); m != nil {
			applyMarker(&d, m[1], m[2])
			continue
		}
		if m := emphasizedMarker.FindStringSubmatch(trimmed); m != nil {
			applyMarker(&d, m[1], m[2])
			continue
		}
		if m := jsonFieldMarker.FindStringSubmatch(trimmed); m != nil {
			applyMarker(&d, strings.ToUpper(m[1]), m[2])
			continue
		}
	}
	return d
}

func applyMarker(d *Delegation, key, value string) {
	value = strings.TrimSpace(value)
	switch strings.ToUpper(key) {
	case "DELEGATE_TO":
		d.DelegateTo = value
	case "TASK":
		d.Task = value
	case "INSTRUCTIONS":
		d.Instructions = value
	}
}
